package mcu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRampEstimate(t *testing.T) {
	testCases := []struct {
		name   string
		from   float64
		speed  float64
		accel  float64
		after  time.Duration
		expect float64
	}{
		{name: "no accel", speed: 1, after: time.Second, expect: 1},
		{name: "no accel reverse", speed: -1, after: time.Second, expect: -1},
		{name: "before accel ends", speed: 2, accel: 1, after: time.Second, expect: 1},
		{name: "at accel ends", speed: 2, accel: 1, after: 2 * time.Second, expect: 2},
		{name: "after accel ends", speed: 2, accel: 1, after: 3 * time.Second, expect: 2},
		{name: "reduce speed", from: 2, speed: 0, accel: 1, after: 500 * time.Millisecond, expect: 1.5},
		{name: "reverse", from: 1, speed: -1, accel: 4, after: 250 * time.Millisecond, expect: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Unix(1000, 0)
			r := &ramp{currentSpeed: tc.from, desiredSpeed: tc.from, accel: tc.accel}
			r.setDesired(tc.speed, start)
			require.InDelta(t, tc.expect, r.estimate(start.Add(tc.after)), 1e-9)
		})
	}
}

func TestRampIncremental(t *testing.T) {
	start := time.Unix(1000, 0)
	r := &ramp{accel: 2}
	r.setDesired(1, start)
	require.InDelta(t, 0.2, r.estimate(start.Add(100*time.Millisecond)), 1e-9)
	require.InDelta(t, 0.4, r.estimate(start.Add(200*time.Millisecond)), 1e-9)
	require.InDelta(t, 1, r.estimate(start.Add(time.Second)), 1e-9)
}
