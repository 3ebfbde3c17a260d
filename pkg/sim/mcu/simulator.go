// Package mcu simulates the MCU firmware on the other end of the link.
package mcu

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l0/protocol"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Defaults.
const (
	DefaultMaxSpeed float64 = 5
	DefaultAccel    float64 = 2
)

var reportAttrs = []string{protocol.AttrSpeed, protocol.AttrThrottle, protocol.AttrSteering}

// Simulator speaks the MCU side of the line protocol over a stream.
//
// It reports all attributes when it starts and on a bare poll, and
// the named attribute on "poll <attribute>". In auto mode it follows
// the commanded speed or throttle and steering, in manual mode it
// follows the inputs set by SetManual. After "command shutdown" it
// goes quiet for good.
type Simulator struct {
	// MaxSpeed is the speed at full throttle.
	MaxSpeed float64

	conn  io.ReadWriteCloser
	outCh chan []byte

	lock     sync.Mutex
	mode     vehicle.Mode
	speed    ramp
	throttle float64
	steering float64
	silent   bool
	stopped  bool
	received []string

	shutdownCh chan struct{}
}

// New creates a Simulator over conn.
func New(conn io.ReadWriteCloser, mode vehicle.Mode) *Simulator {
	return &Simulator{
		MaxSpeed:   DefaultMaxSpeed,
		conn:       conn,
		outCh:      make(chan []byte, 64),
		mode:       mode,
		speed:      ramp{accel: DefaultAccel},
		shutdownCh: make(chan struct{}),
	}
}

// SetAccel sets the acceleration, 0 for immediate speed changes.
func (s *Simulator) SetAccel(accel float64) {
	s.lock.Lock()
	s.speed.accel = accel
	s.lock.Unlock()
}

// Run implements framework.Runnable.
func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.writeLoop(ctx)

	s.lock.Lock()
	s.reportLocked(reportAttrs...)
	s.lock.Unlock()

	return fx.RunWithContextCloser(ctx, s.conn, func() error {
		scanner := bufio.NewScanner(s.conn)
		for scanner.Scan() {
			s.handleLine(scanner.Text())
		}
		return scanner.Err()
	})
}

// Mode returns the current mode.
func (s *Simulator) Mode() vehicle.Mode {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.mode
}

// SetMode switches the mode as if flipped on the RC transmitter and
// notifies the host.
func (s *Simulator) SetMode(mode vehicle.Mode) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.mode = mode
	s.sendLocked(protocol.AttrMode + " " + mode.String())
}

// SetManual sets the RC inputs, effective in manual mode.
func (s *Simulator) SetManual(throttle, steering float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.mode != vehicle.ModeManual {
		return
	}
	s.setThrottleLocked(throttle)
	s.steering = clamp(steering, -1, 1)
}

// Silence stops (or resumes) all output.
func (s *Simulator) Silence(silent bool) {
	s.lock.Lock()
	s.silent = silent
	s.lock.Unlock()
}

// State returns what the simulator would report now.
func (s *Simulator) State() vehicle.State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return vehicle.State{
		Speed:    s.speed.estimate(time.Now()),
		Throttle: s.throttle,
		Steering: s.steering,
		Mode:     s.mode,
	}
}

// ShutdownReceived is closed when the host commands shutdown.
func (s *Simulator) ShutdownReceived() <-chan struct{} {
	return s.shutdownCh
}

// Received returns all lines received from the host.
func (s *Simulator) Received() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.received...)
}

func (s *Simulator) handleLine(line string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	glog.V(3).Infof("MCU RX %q", line)
	s.received = append(s.received, line)
	if s.stopped {
		return
	}
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "poll":
		if len(fields) == 1 {
			s.reportLocked(reportAttrs...)
		} else {
			s.reportLocked(fields[1])
		}
	case "command":
		s.commandLocked(fields[1:])
	default:
		glog.Warningf("MCU: unknown line %q", line)
	}
}

func (s *Simulator) commandLocked(args []string) {
	if len(args) == 0 {
		return
	}
	if args[0] == "shutdown" {
		s.stopped = true
		s.speed.setDesired(0, time.Now())
		close(s.shutdownCh)
		return
	}
	if len(args) < 2 || s.mode != vehicle.ModeAuto {
		return
	}
	val, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		glog.Warningf("MCU: invalid command value %q", args[1])
		return
	}
	switch args[0] {
	case protocol.AttrSpeed:
		speed := clamp(val, -s.MaxSpeed, s.MaxSpeed)
		s.speed.setDesired(speed, time.Now())
		s.throttle = speed / s.MaxSpeed
	case protocol.AttrThrottle:
		s.setThrottleLocked(val)
	case protocol.AttrSteering:
		s.steering = clamp(val, -1, 1)
	}
}

func (s *Simulator) setThrottleLocked(throttle float64) {
	s.throttle = clamp(throttle, -1, 1)
	s.speed.setDesired(s.throttle*s.MaxSpeed, time.Now())
}

func (s *Simulator) reportLocked(attrs ...string) {
	for _, attr := range attrs {
		var val float64
		switch attr {
		case protocol.AttrSpeed:
			val = s.speed.estimate(time.Now())
		case protocol.AttrThrottle:
			val = s.throttle
		case protocol.AttrSteering:
			val = s.steering
		default:
			continue
		}
		str, err := protocol.FormatValue(val)
		if err != nil {
			continue
		}
		s.sendLocked(attr + " " + str)
	}
}

func (s *Simulator) sendLocked(line string) {
	if s.silent || s.stopped {
		return
	}
	select {
	case s.outCh <- []byte(line + "\n"):
	default:
		glog.Warningf("MCU: output overflow, drop %q", line)
	}
}

func (s *Simulator) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.outCh:
			glog.V(3).Infof("MCU TX %q", line)
			if _, err := s.conn.Write(line); err != nil {
				glog.Warningf("MCU: write error: %v", err)
				return
			}
		}
	}
}
