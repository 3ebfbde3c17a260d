package teensy

import (
	"context"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l0/serial"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
	"github.com/robotalks/teensy.go/pkg/sim/mcu"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

type testRegistrar struct {
	lock   sync.Mutex
	events []fx.Message
}

func (r *testRegistrar) SendEvent(ctx context.Context, msg fx.Message) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, msg)
	return nil
}

func (r *testRegistrar) statuses() (states []*msgs.VehicleState) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, msg := range r.events {
		if status, ok := msg.(*msgs.VehicleStatus); ok {
			states = append(states, status.State)
		}
	}
	return
}

func (r *testRegistrar) faults() (faults []*msgs.VehicleFault) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, msg := range r.events {
		if fault, ok := msg.(*msgs.VehicleFault); ok {
			faults = append(faults, fault)
		}
	}
	return
}

type testPublisher struct {
	lock   sync.Mutex
	states []vehicle.State
	faults []string
	closed bool
}

func (p *testPublisher) PublishState(ctx context.Context, st vehicle.State) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.states = append(p.states, st)
	return nil
}

func (p *testPublisher) PublishFault(ctx context.Context, reason, message string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.faults = append(p.faults, reason)
	return nil
}

func (p *testPublisher) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	return nil
}

func (p *testPublisher) publishedFaults() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.faults...)
}

func (p *testPublisher) publishedStates() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.states)
}

type testRelay struct {
	lock    sync.Mutex
	tripped int
}

func (r *testRelay) Trip() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tripped++
	return nil
}

func (r *testRelay) Close() error { return nil }

func (r *testRelay) trips() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.tripped
}

type testCommand struct {
	msg     fx.Message
	replyCh chan fx.Message
}

func (c *testCommand) Msg() fx.Message { return c.msg }

func (c *testCommand) Done(reply fx.Message) error {
	c.replyCh <- reply
	return nil
}

type testEnv struct {
	sim   *mcu.Simulator
	ctl   *Controller
	reg   *testRegistrar
	pub   *testPublisher
	relay *testRelay
	loop  *fx.Loop
	errCh chan error
	stop  context.CancelFunc
}

func startController(t *testing.T, conf link.Config) *testEnv {
	local, remote := net.Pipe()
	port, err := serial.NewPort(local)
	require.NoError(t, err)
	sim := mcu.New(remote, conf.Mode)
	sim.SetAccel(0)
	simCtx, simCancel := context.WithCancel(context.Background())
	go sim.Run(simCtx)

	e := &testEnv{
		sim:   sim,
		reg:   &testRegistrar{},
		pub:   &testPublisher{},
		relay: &testRelay{},
		loop:  fx.NewLoop(),
		errCh: make(chan error, 1),
	}
	e.ctl = NewController(e.reg, link.New(port, conf))
	e.ctl.Publisher, e.ctl.Relay = e.pub, e.relay
	e.loop.Interval = 5 * time.Millisecond
	e.loop.Add(e.ctl)

	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	go func() { e.errCh <- e.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		e.ctl.Close()
		simCancel()
	})
	return e
}

func (e *testEnv) do(t *testing.T, msg fx.Message) fx.Message {
	cmd := &testCommand{msg: msg, replyCh: make(chan fx.Message, 1)}
	e.loop.PostMessage(&l1.CommandMsg{Command: cmd})
	select {
	case reply := <-cmd.replyCh:
		return reply
	case <-time.After(2 * time.Second):
		require.Fail(t, "no reply")
	}
	return nil
}

func (e *testEnv) loopErr(t *testing.T) error {
	select {
	case err := <-e.errCh:
		return err
	case <-time.After(2 * time.Second):
		require.Fail(t, "loop still running")
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			require.Fail(t, "timeout waiting for "+what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testLinkConfig(mode vehicle.Mode) link.Config {
	return link.Config{
		LinkTimeout: 200 * time.Millisecond,
		HostTimeout: 200 * time.Millisecond,
		Mode:        mode,
	}
}

func requireOK(t *testing.T, reply fx.Message) {
	_, ok := reply.(*msgs.CommandOK)
	require.True(t, ok, "unexpected reply %v", reply)
}

func requireErr(t *testing.T, reply fx.Message) {
	_, ok := reply.(*msgs.CommandErr)
	require.True(t, ok, "unexpected reply %v", reply)
}

func TestControllerDrive(t *testing.T) {
	e := startController(t, testLinkConfig(vehicle.ModeAuto))

	requireOK(t, e.do(t, &msgs.VehicleDrive{Speed: 2, Steering: 0.25}))
	waitFor(t, "MCU follows drive target", func() bool {
		st := e.sim.State()
		return st.Speed == 2 && st.Steering == 0.25
	})
	waitFor(t, "status event", func() bool {
		for _, st := range e.reg.statuses() {
			if st.Speed == 2 && st.Steering == 0.25 && st.Running {
				return true
			}
		}
		return false
	})
	require.True(t, e.pub.publishedStates() > 0)

	reply := e.do(t, &msgs.VehicleStateQuery{})
	state, ok := reply.(*msgs.VehicleState)
	require.True(t, ok)
	require.Equal(t, "auto", state.Mode)
	require.True(t, state.Running)

	requireOK(t, e.do(t, &msgs.VehicleThrottle{Throttle: 0.5, Steering: -0.5}))
	waitFor(t, "MCU follows throttle target", func() bool {
		st := e.sim.State()
		return st.Throttle == 0.5 && st.Steering == -0.5
	})

	requireErr(t, e.do(t, &msgs.VehicleDrive{Speed: math.NaN()}))
	require.Equal(t, 0.5, e.sim.State().Throttle)

	requireErr(t, e.do(t, &msgs.VehicleMode{Mode: "cruise"}))
	requireOK(t, e.do(t, &msgs.VehicleMode{Mode: "manual"}))
	require.Equal(t, vehicle.ModeManual, e.ctl.Driver.State().Mode)
	require.Empty(t, e.reg.faults())
	require.Equal(t, 0, e.relay.trips())
}

func TestControllerKeepsLinkAliveInManual(t *testing.T) {
	e := startController(t, testLinkConfig(vehicle.ModeManual))

	requireOK(t, e.do(t, &msgs.VehicleDrive{Speed: 2}))
	e.sim.SetManual(0.2, 0.1)
	time.Sleep(400 * time.Millisecond)
	require.True(t, e.ctl.Driver.Running())
	st := e.ctl.Driver.State()
	require.Equal(t, 0.2, st.Throttle)
	require.Equal(t, 0.1, st.Steering)
	require.Equal(t, 0.2, e.sim.State().Throttle)
}

func TestControllerShutdownCommand(t *testing.T) {
	e := startController(t, testLinkConfig(vehicle.ModeAuto))

	requireOK(t, e.do(t, &msgs.VehicleShutdown{}))
	require.Equal(t, link.ErrShutdown, e.loopErr(t))
	select {
	case <-e.sim.ShutdownReceived():
	case <-time.After(time.Second):
		require.Fail(t, "MCU not shut down")
	}
	require.Equal(t, 0, e.relay.trips())
	require.Empty(t, e.reg.faults())
}

func TestControllerLinkLost(t *testing.T) {
	e := startController(t, testLinkConfig(vehicle.ModeAuto))

	waitFor(t, "link up", func() bool {
		return e.ctl.Driver.Watchdogs().Receive.Resets() > 3
	})
	e.sim.Silence(true)
	require.Equal(t, link.ErrLinkLost, e.loopErr(t))
	require.Equal(t, 1, e.relay.trips())
	faults := e.reg.faults()
	require.Len(t, faults, 1)
	require.Equal(t, msgs.FaultLinkLost, faults[0].Reason)
	require.Equal(t, []string{msgs.FaultLinkLost}, e.pub.publishedFaults())
}

func TestControllerStopsOnCancel(t *testing.T) {
	e := startController(t, testLinkConfig(vehicle.ModeAuto))

	waitFor(t, "link up", func() bool {
		return e.ctl.Driver.Watchdogs().Receive.Resets() > 0
	})
	e.stop()
	require.Equal(t, context.Canceled, e.loopErr(t))
	require.False(t, e.ctl.Driver.Running())
	select {
	case <-e.sim.ShutdownReceived():
	case <-time.After(time.Second):
		require.Fail(t, "MCU not shut down")
	}
	require.Empty(t, e.reg.faults())
	require.NoError(t, e.ctl.Close())
	assert.True(t, e.pub.closed)
}

func TestFaultReason(t *testing.T) {
	require.Equal(t, msgs.FaultLinkLost, FaultReason(link.ErrLinkLost))
	require.Equal(t, msgs.FaultHostStalled, FaultReason(link.ErrHostStalled))
	require.Equal(t, msgs.FaultTransport, FaultReason(&link.TransportError{Op: "read", Err: io.EOF}))
	require.Equal(t, "", FaultReason(link.ErrShutdown))
}
