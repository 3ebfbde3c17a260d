package link

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/teensy.go/pkg/l0/protocol"
	"github.com/robotalks/teensy.go/pkg/l0/watchdog"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Driver is the host side of the MCU link.
//
// PollStep, CommandStep, SetMode, State and Shutdown are safe to be
// called from different goroutines. At most one PollStep blocks on the
// transport at a time.
type Driver struct {
	config    Config
	transport Transport
	store     *vehicle.Store
	watchdogs *watchdog.Pair

	pollLock sync.Mutex

	lock    sync.Mutex
	running bool
	err     error
	doneCh  chan struct{}
}

// New creates a Driver and arms its watchdogs.
func New(t Transport, conf Config) *Driver {
	conf.normalize()
	d := &Driver{
		config:    conf,
		transport: t,
		store:     vehicle.NewStore(conf.Mode),
		running:   true,
		doneCh:    make(chan struct{}),
	}
	d.watchdogs = watchdog.NewPair(
		conf.LinkTimeout, d.linkLost,
		conf.HostTimeout, d.hostStalled)
	d.watchdogs.Start(conf.Grace)
	return d
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.config
}

// Watchdogs exposes the watchdogs for inspection.
func (d *Driver) Watchdogs() *watchdog.Pair {
	return d.watchdogs
}

// State returns a snapshot of the vehicle state.
func (d *Driver) State() vehicle.State {
	return d.store.Snapshot()
}

// SetMode changes the mode locally.
// The MCU may change it again with a mode message, last one wins.
func (d *Driver) SetMode(mode vehicle.Mode) {
	d.store.SetMode(mode)
	glog.Infof("mode set to %s", mode)
}

// Running returns false once the Driver shut down.
func (d *Driver) Running() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.running
}

// Done is closed when the Driver shuts down.
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}

// Err returns why the Driver shut down, or nil if it's still running.
func (d *Driver) Err() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.err
}

// PollStep waits for one line from the MCU and processes it: the line
// is decoded, the receive watchdog is reset, the state is updated and
// the ack is sent back. Lines which can't be decoded are still acked.
//
// It returns ctx.Err() if ctx is done before a line arrives and the
// reason of shutdown if the Driver is (or gets) shut down.
func (d *Driver) PollStep(ctx context.Context) error {
	d.pollLock.Lock()
	defer d.pollLock.Unlock()
	for {
		if err := d.Err(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := d.transport.ReadLine(d.config.ReadSlice)
		if errors.Is(err, ErrReadTimeout) {
			continue
		}
		if err != nil {
			if e := d.Err(); e != nil {
				// transport closed by shutdown.
				return e
			}
			return d.fail(&TransportError{Op: "read", Err: err})
		}
		return d.handleLine(line)
	}
}

// CommandStep is called by the host control loop on every iteration.
// It proves the host alive and, in auto mode only, records speed and
// steering and sends them to the MCU.
func (d *Driver) CommandStep(speed, steering float64) error {
	return d.command(protocol.Command{Speed: speed, Steering: steering})
}

// CommandThrottle is CommandStep commanding throttle instead of speed.
func (d *Driver) CommandThrottle(throttle, steering float64) error {
	return d.command(protocol.Command{Throttle: throttle, Steering: steering, UseThrottle: true})
}

// Shutdown stops the MCU and closes the transport. It's idempotent.
func (d *Driver) Shutdown() {
	d.shutdown(ErrShutdown)
}

// Close implements io.Closer.
func (d *Driver) Close() error {
	d.Shutdown()
	return nil
}

func (d *Driver) command(cmd protocol.Command) error {
	d.watchdogs.Liveness.Reset()

	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.running {
		return d.err
	}
	if d.store.Mode() != vehicle.ModeAuto {
		return nil
	}
	lines, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	d.store.Update(func(s *vehicle.State) {
		if cmd.UseThrottle {
			s.Throttle = cmd.Throttle
		} else {
			s.Speed = cmd.Speed
		}
		s.Steering = cmd.Steering
	})
	for _, line := range lines {
		if err := d.writeLocked(line); err != nil {
			return d.failLocked(err)
		}
	}
	return nil
}

func (d *Driver) handleLine(line string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.running {
		return d.err
	}
	glog.V(2).Infof("RX %q", line)
	msg, err := protocol.Decode(line)
	if err != nil {
		glog.Warningf("discard line: %v", err)
	}
	d.watchdogs.Receive.Reset()
	d.apply(msg)
	if err := d.writeLocked(protocol.EncodePoll(msg.Kind)); err != nil {
		return d.failLocked(err)
	}
	return nil
}

// apply updates the store from an MCU report. In auto mode speed and
// steering belong to CommandStep, reports of them are only acked.
func (d *Driver) apply(msg protocol.Message) {
	auto := d.store.Mode() == vehicle.ModeAuto
	switch msg.Kind {
	case protocol.KindSpeed:
		if !auto {
			d.store.SetSpeed(msg.Value)
		}
	case protocol.KindThrottle:
		d.store.SetThrottle(msg.Value)
	case protocol.KindSteering:
		if !auto {
			d.store.SetSteering(msg.Value)
		}
	case protocol.KindMode:
		if d.store.Mode() != msg.Mode {
			glog.Infof("MCU switched mode to %s", msg.Mode)
		}
		d.store.SetMode(msg.Mode)
	case protocol.KindUnknown:
	}
}

func (d *Driver) writeLocked(line []byte) error {
	glog.V(2).Infof("TX %q", line)
	if _, err := d.transport.Write(line); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (d *Driver) linkLost() {
	d.watchdogs.Receive.Shutdown()
	d.fail(ErrLinkLost)
}

func (d *Driver) hostStalled() {
	d.watchdogs.Liveness.Shutdown()
	d.fail(ErrHostStalled)
}

func (d *Driver) fail(cause error) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.failLocked(cause)
}

func (d *Driver) failLocked(cause error) error {
	if !d.running {
		return d.err
	}
	glog.Errorf("MCU link failed: %v", cause)
	d.shutdownLocked(cause)
	if fn := d.config.OnFatal; fn != nil {
		go fn(cause)
	}
	return cause
}

func (d *Driver) shutdown(cause error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.running {
		d.shutdownLocked(cause)
	}
}

func (d *Driver) shutdownLocked(cause error) {
	d.running = false
	d.err = cause
	if err := d.writeLocked(protocol.EncodeShutdown()); err != nil {
		glog.Warningf("send shutdown: %v", err)
	}
	if err := d.transport.Close(); err != nil {
		glog.Warningf("close transport: %v", err)
	}
	d.watchdogs.Shutdown()
	close(d.doneCh)
	glog.Infof("MCU link shut down: %v", cause)
}
