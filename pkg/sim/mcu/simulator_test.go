package mcu

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l0/serial"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			require.Fail(t, "timeout waiting for "+what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startSimulator(t *testing.T, mode vehicle.Mode) (*Simulator, *serial.Port) {
	local, remote := net.Pipe()
	port, err := serial.NewPort(local)
	require.NoError(t, err)
	sim := New(remote, mode)
	sim.SetAccel(0)
	ctx, cancel := context.WithCancel(context.Background())
	go sim.Run(ctx)
	t.Cleanup(func() {
		cancel()
		port.Close()
	})
	return sim, port
}

func readLines(t *testing.T, port *serial.Port, n int) []string {
	var lines []string
	for i := 0; i < n; i++ {
		line, err := port.ReadLine(time.Second)
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

func TestSimulatorPolls(t *testing.T) {
	_, port := startSimulator(t, vehicle.ModeManual)
	require.Equal(t, []string{"speed 0.0", "throttle 0.0", "steering 0.0"}, readLines(t, port, 3))

	_, err := port.Write([]byte("poll steering\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"steering 0.0"}, readLines(t, port, 1))

	_, err = port.Write([]byte("poll\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"speed 0.0", "throttle 0.0", "steering 0.0"}, readLines(t, port, 3))
}

func TestSimulatorCommands(t *testing.T) {
	sim, port := startSimulator(t, vehicle.ModeAuto)
	readLines(t, port, 3)

	_, err := port.Write([]byte("command speed 2.5\ncommand steering -0.5\npoll speed\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"speed 2.5"}, readLines(t, port, 1))
	st := sim.State()
	require.Equal(t, 2.5, st.Speed)
	require.Equal(t, 0.5, st.Throttle)
	require.Equal(t, -0.5, st.Steering)

	// commands are ignored in manual mode.
	sim.SetMode(vehicle.ModeManual)
	require.Equal(t, []string{"mode manual"}, readLines(t, port, 1))
	_, err = port.Write([]byte("command speed 1.0\npoll speed\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"speed 2.5"}, readLines(t, port, 1))

	_, err = port.Write([]byte("command shutdown\npoll\n"))
	require.NoError(t, err)
	select {
	case <-sim.ShutdownReceived():
	case <-time.After(time.Second):
		require.Fail(t, "shutdown not received")
	}
	_, err = port.ReadLine(50 * time.Millisecond)
	require.Equal(t, link.ErrReadTimeout, err)
}

func runDriver(t *testing.T, port *serial.Port, conf link.Config) *link.Driver {
	d := link.New(port, conf)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for d.PollStep(ctx) == nil {
		}
	}()
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.CommandStep(2, 0.25)
			}
		}
	}()
	t.Cleanup(func() {
		cancel()
		d.Shutdown()
	})
	return d
}

func TestDriverWithSimulator(t *testing.T) {
	sim, port := startSimulator(t, vehicle.ModeAuto)
	d := runDriver(t, port, link.Config{
		LinkTimeout: 200 * time.Millisecond,
		HostTimeout: 200 * time.Millisecond,
		Mode:        vehicle.ModeAuto,
	})

	waitFor(t, "MCU follows commands", func() bool {
		st := sim.State()
		return st.Speed == 2 && st.Steering == 0.25
	})
	waitFor(t, "MCU reports throttle", func() bool {
		return d.State().Throttle == 0.4
	})

	sim.SetManual(-1, 0)
	sim.SetMode(vehicle.ModeManual)
	waitFor(t, "mode reported", func() bool {
		return d.State().Mode == vehicle.ModeManual
	})
	sim.SetManual(-1, 0.5)
	waitFor(t, "manual inputs reported", func() bool {
		st := d.State()
		return st.Speed == -sim.MaxSpeed && st.Steering == 0.5
	})
	require.True(t, d.Running())

	d.Shutdown()
	select {
	case <-sim.ShutdownReceived():
	case <-time.After(time.Second):
		require.Fail(t, "MCU not shut down")
	}
}

func TestSilentSimulatorTripsWatchdog(t *testing.T) {
	sim, port := startSimulator(t, vehicle.ModeManual)
	d := runDriver(t, port, link.Config{
		LinkTimeout: 60 * time.Millisecond,
		HostTimeout: time.Second,
	})

	waitFor(t, "link up", func() bool {
		return d.Watchdogs().Receive.Resets() > 3
	})
	sim.Silence(true)
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		require.Fail(t, "driver still running")
	}
	require.Equal(t, link.ErrLinkLost, d.Err())
	waitFor(t, "shutdown received", func() bool {
		received := sim.Received()
		return len(received) > 0 && received[len(received)-1] == "command shutdown"
	})
}
