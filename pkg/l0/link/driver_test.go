package link

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/teensy.go/pkg/l0/protocol"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

type testTransport struct {
	rxCh    chan string
	closeCh chan struct{}

	lock       sync.Mutex
	written    []string
	writeErr   error
	closed     int
	lateWrites int
}

func newTestTransport() *testTransport {
	return &testTransport{
		rxCh:    make(chan string, 16),
		closeCh: make(chan struct{}),
	}
}

func (t *testTransport) ReadLine(timeout time.Duration) (string, error) {
	select {
	case line := <-t.rxCh:
		return line, nil
	case <-t.closeCh:
		return "", io.ErrClosedPipe
	case <-time.After(timeout):
		return "", ErrReadTimeout
	}
}

func (t *testTransport) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.closed > 0 {
		t.lateWrites++
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.written = append(t.written, string(p))
	return len(p), nil
}

func (t *testTransport) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed++
	if t.closed == 1 {
		close(t.closeCh)
	}
	return nil
}

func (t *testTransport) lines() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.written...)
}

func (t *testTransport) closeCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.closed
}

// quietConfig keeps the watchdogs out of the way.
func quietConfig(mode vehicle.Mode) Config {
	return Config{
		LinkTimeout: time.Hour,
		HostTimeout: time.Hour,
		Mode:        mode,
		ReadSlice:   5 * time.Millisecond,
	}
}

func pollLine(t *testing.T, d *Driver, tr *testTransport, line string) {
	tr.rxCh <- line
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.PollStep(ctx))
}

func waitDone(t *testing.T, d *Driver) {
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		require.Fail(t, "driver didn't shut down")
	}
}

func TestPollStepAttributes(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))
	defer d.Shutdown()

	var last time.Time
	for _, line := range []string{"Speed 12.50\n", "throttle 0.4", "steering -0.3"} {
		pollLine(t, d, tr, line)
		require.True(t, d.Watchdogs().Receive.LastReset().After(last))
		last = d.Watchdogs().Receive.LastReset()
	}
	require.Equal(t, []string{"poll speed\n", "poll throttle\n", "poll steering\n"}, tr.lines())
	require.Equal(t, vehicle.State{Speed: 12.5, Throttle: 0.4, Steering: -0.3}, d.State())
	require.Equal(t, uint64(3), d.Watchdogs().Receive.Resets())
}

func TestPollStepGarbage(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))
	defer d.Shutdown()

	pollLine(t, d, tr, "garbage\n")
	pollLine(t, d, tr, "speed ???")
	require.Equal(t, []string{"poll\n", "poll\n"}, tr.lines())
	require.Equal(t, vehicle.State{}, d.State())
	require.Equal(t, uint64(2), d.Watchdogs().Receive.Resets())
}

func TestPollStepMode(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))
	defer d.Shutdown()

	pollLine(t, d, tr, "mode auto")
	require.Equal(t, vehicle.ModeAuto, d.State().Mode)
	pollLine(t, d, tr, "MODE Manual")
	require.Equal(t, vehicle.ModeManual, d.State().Mode)
	require.Equal(t, []string{"poll\n", "poll\n"}, tr.lines())

	// local change, then remote change: last one wins.
	d.SetMode(vehicle.ModeAuto)
	require.Equal(t, vehicle.ModeAuto, d.State().Mode)
	pollLine(t, d, tr, "mode manual")
	require.Equal(t, vehicle.ModeManual, d.State().Mode)
}

func TestPollStepContext(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))
	defer d.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := d.PollStep(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.True(t, d.Running())
	require.Empty(t, tr.lines())
}

func TestCommandStepAuto(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeAuto))
	defer d.Shutdown()

	require.NoError(t, d.CommandStep(3.0, -0.2))
	require.Equal(t, []string{"command speed 3.0\n", "command steering -0.2\n"}, tr.lines())
	st := d.State()
	require.Equal(t, 3.0, st.Speed)
	require.Equal(t, -0.2, st.Steering)
	require.Equal(t, uint64(1), d.Watchdogs().Liveness.Resets())

	require.NoError(t, d.CommandThrottle(0.5, 0.1))
	require.Equal(t, []string{"command throttle 0.5\n", "command steering 0.1\n"}, tr.lines()[2:])
	require.Equal(t, 0.5, d.State().Throttle)
}

func TestPollStepAutoKeepsCommandedValues(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeAuto))
	defer d.Shutdown()

	require.NoError(t, d.CommandStep(3.0, -0.2))
	pollLine(t, d, tr, "speed 9.0")
	pollLine(t, d, tr, "steering 0.7")
	pollLine(t, d, tr, "throttle 0.4")
	require.Equal(t, []string{"poll speed\n", "poll steering\n", "poll throttle\n"}, tr.lines()[2:])
	require.Equal(t, vehicle.State{Speed: 3.0, Throttle: 0.4, Steering: -0.2, Mode: vehicle.ModeAuto}, d.State())
	require.Equal(t, uint64(3), d.Watchdogs().Receive.Resets())

	// reports apply again once the MCU is back in manual.
	pollLine(t, d, tr, "mode manual")
	pollLine(t, d, tr, "speed 9.0")
	require.Equal(t, 9.0, d.State().Speed)
}

func TestCommandStepManual(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))
	defer d.Shutdown()

	require.NoError(t, d.CommandStep(3.0, -0.2))
	require.Empty(t, tr.lines())
	require.Equal(t, vehicle.State{}, d.State())
	require.Equal(t, uint64(1), d.Watchdogs().Liveness.Resets())
}

func TestCommandStepInvalidValue(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeAuto))
	defer d.Shutdown()

	err := d.CommandStep(math.NaN(), 0)
	require.True(t, errors.Is(err, protocol.ErrInvalidValue))
	require.Empty(t, tr.lines())
	require.True(t, d.Running())
}

func TestReceiveWatchdog(t *testing.T) {
	tr := newTestTransport()
	fatalCh := make(chan error, 2)
	conf := quietConfig(vehicle.ModeManual)
	conf.LinkTimeout = 100 * time.Millisecond
	conf.OnFatal = func(err error) { fatalCh <- err }
	started := time.Now()
	d := New(tr, conf)

	waitDone(t, d)
	require.True(t, time.Since(started) >= conf.LinkTimeout)
	require.Equal(t, ErrLinkLost, d.Err())
	require.True(t, IsFatal(d.Err()))
	require.Equal(t, []string{"command shutdown\n"}, tr.lines())
	require.Equal(t, 1, tr.closeCount())
	require.False(t, d.Watchdogs().Liveness.Armed())
	select {
	case err := <-fatalCh:
		require.Equal(t, ErrLinkLost, err)
	case <-time.After(time.Second):
		require.Fail(t, "OnFatal not invoked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Equal(t, ErrLinkLost, d.PollStep(ctx))
	require.Equal(t, ErrLinkLost, d.CommandStep(1, 1))
	require.Equal(t, 0, tr.lateWrites)
}

func TestLivenessWatchdog(t *testing.T) {
	tr := newTestTransport()
	conf := quietConfig(vehicle.ModeManual)
	conf.HostTimeout = 50 * time.Millisecond
	d := New(tr, conf)

	// the MCU keeps talking, the host never commands.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			select {
			case tr.rxCh <- "speed 1.0":
			default:
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	for d.PollStep(ctx) == nil {
	}

	waitDone(t, d)
	require.Equal(t, ErrHostStalled, d.Err())
	require.False(t, d.Watchdogs().Receive.Fired())
	lines := tr.lines()
	require.Equal(t, "command shutdown\n", lines[len(lines)-1])
	require.Equal(t, 0, tr.lateWrites)
}

func TestLivenessKeptByCommandStep(t *testing.T) {
	tr := newTestTransport()
	conf := quietConfig(vehicle.ModeManual)
	conf.HostTimeout = 40 * time.Millisecond
	d := New(tr, conf)
	defer d.Shutdown()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, d.CommandStep(0, 0))
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, d.Running())
}

func TestGraceDelaysWatchdogs(t *testing.T) {
	tr := newTestTransport()
	conf := quietConfig(vehicle.ModeManual)
	conf.LinkTimeout = 20 * time.Millisecond
	conf.Grace = 200 * time.Millisecond
	d := New(tr, conf)

	select {
	case <-d.Done():
		require.Fail(t, "watchdog fired during grace")
	case <-time.After(100 * time.Millisecond):
	}
	waitDone(t, d)
	require.Equal(t, ErrLinkLost, d.Err())
}

func TestShutdownIdempotent(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeAuto))

	d.Shutdown()
	d.Shutdown()
	require.NoError(t, d.Close())
	require.Equal(t, []string{"command shutdown\n"}, tr.lines())
	require.Equal(t, 1, tr.closeCount())
	require.False(t, d.Running())
	require.Equal(t, ErrShutdown, d.Err())
	require.False(t, IsFatal(d.Err()))

	require.Equal(t, ErrShutdown, d.CommandStep(1, 0))
	require.Equal(t, 0, tr.lateWrites)
	require.Len(t, tr.lines(), 1)
}

func TestShutdownUnblocksPollStep(t *testing.T) {
	tr := newTestTransport()
	d := New(tr, quietConfig(vehicle.ModeManual))

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.PollStep(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	d.Shutdown()
	select {
	case err := <-errCh:
		require.Equal(t, ErrShutdown, err)
	case <-time.After(time.Second):
		require.Fail(t, "PollStep still blocked")
	}
}

func TestWriteFailureEscalates(t *testing.T) {
	tr := newTestTransport()
	tr.writeErr = io.ErrClosedPipe
	d := New(tr, quietConfig(vehicle.ModeManual))

	tr.rxCh <- "speed 1.0"
	err := d.PollStep(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "write", te.Op)
	require.True(t, errors.Is(err, io.ErrClosedPipe))
	require.True(t, IsFatal(err))
	waitDone(t, d)
	require.Equal(t, 1, tr.closeCount())
}
