package vehicle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFloatArgs(t *testing.T) {
	vals, err := ParseFloatArgs([]string{"1.5", "-0.25"}, "SPEED", "STEERING?")
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -0.25}, vals)

	vals, err = ParseFloatArgs([]string{"2"}, "SPEED", "STEERING?")
	require.NoError(t, err)
	require.Equal(t, []float64{2, 0}, vals)

	_, err = ParseFloatArgs(nil, "SPEED", "STEERING?")
	require.EqualError(t, err, "SPEED required")

	_, err = ParseFloatArgs([]string{"1", "left"}, "SPEED", "STEERING?")
	require.Error(t, err)
}
