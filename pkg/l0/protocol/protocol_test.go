package protocol

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		kind  Kind
		value float64
		err   error
	}{
		{"speed", "Speed 12.50\n", KindSpeed, 12.5, nil},
		{"throttle negative", "throttle -0.25", KindThrottle, -0.25, nil},
		{"steering integer", "STEERING 1\r\n", KindSteering, 1, nil},
		{"no separator", "speed3.0", KindSpeed, 3, nil},
		{"first numeral", "speed 4 5", KindSpeed, 4, nil},
		{"speed wins", "throttle 0.5 speed 2.0", KindSpeed, 0.5, nil},
		{"throttle over steering", "steering 0.1 throttle 0.2", KindThrottle, 0.1, nil},
		{"garbage", "garbage\n", KindUnknown, 0, ErrNoKeyword},
		{"empty", "", KindUnknown, 0, ErrNoKeyword},
		{"missing numeral", "speed fast", KindUnknown, 0, ErrNoNumeral},
		{"lone minus", "steering -", KindUnknown, 0, ErrNoNumeral},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg, err := Decode(c.line)
			require.Equal(t, c.kind, msg.Kind)
			if c.err != nil {
				require.True(t, errors.Is(err, c.err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.value, msg.Value)
		})
	}
}

func TestDecodeMode(t *testing.T) {
	msg, err := Decode("MODE Auto\n")
	require.NoError(t, err)
	require.Equal(t, KindMode, msg.Kind)
	require.Equal(t, vehicle.ModeAuto, msg.Mode)

	msg, err = Decode("mode manual")
	require.NoError(t, err)
	require.Equal(t, KindMode, msg.Kind)
	require.Equal(t, vehicle.ModeManual, msg.Mode)

	msg, err = Decode("mode whatever")
	require.NoError(t, err)
	require.Equal(t, vehicle.ModeManual, msg.Mode)
}

func TestEncodePoll(t *testing.T) {
	require.Equal(t, "poll speed\n", string(EncodePoll(KindSpeed)))
	require.Equal(t, "poll throttle\n", string(EncodePoll(KindThrottle)))
	require.Equal(t, "poll steering\n", string(EncodePoll(KindSteering)))
	require.Equal(t, "poll\n", string(EncodePoll(KindMode)))
	require.Equal(t, "poll\n", string(EncodePoll(KindUnknown)))
}

func TestEncodeCommand(t *testing.T) {
	lines, err := EncodeCommand(Command{Speed: 3, Steering: -0.2})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "command speed 3.0\n", string(lines[0]))
	require.Equal(t, "command steering -0.2\n", string(lines[1]))

	lines, err = EncodeCommand(Command{Speed: 3, Throttle: 0.75, UseThrottle: true})
	require.NoError(t, err)
	require.Equal(t, "command throttle 0.75\n", string(lines[0]))
	require.Equal(t, "command steering 0.0\n", string(lines[1]))

	_, err = EncodeCommand(Command{Speed: math.NaN()})
	require.True(t, errors.Is(err, ErrInvalidValue))
	_, err = EncodeCommand(Command{Steering: math.Inf(-1)})
	require.True(t, errors.Is(err, ErrInvalidValue))

	require.Equal(t, "command shutdown\n", string(EncodeShutdown()))
}

func TestFormatValueDecodes(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 0.5, -0.125, 12.5, 1000, 1e-3} {
		s, err := FormatValue(v)
		require.NoError(t, err)
		require.Regexp(t, `^-?\d+\.\d+$`, s)
		msg, err := Decode("speed " + s)
		require.NoError(t, err)
		require.Equal(t, v, msg.Value)
	}
}
