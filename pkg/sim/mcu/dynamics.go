package mcu

import (
	"math"
	"time"
)

// ramp approaches the desired speed with a bounded acceleration.
type ramp struct {
	desiredSpeed float64
	currentSpeed float64
	// accel is in speed units per second, 0 means immediate.
	accel       float64
	lastEstTime time.Time
}

func (r *ramp) setDesired(speed float64, now time.Time) {
	r.estimate(now)
	r.desiredSpeed = speed
}

func (r *ramp) estimate(now time.Time) float64 {
	if r.lastEstTime.IsZero() || now.Before(r.lastEstTime) {
		r.lastEstTime = now
	}
	secs := now.Sub(r.lastEstTime).Seconds()
	r.lastEstTime = now
	if r.accel <= 0 {
		r.currentSpeed = r.desiredSpeed
		return r.currentSpeed
	}
	diff := r.desiredSpeed - r.currentSpeed
	if step := r.accel * secs; math.Abs(diff) <= step {
		r.currentSpeed = r.desiredSpeed
	} else {
		r.currentSpeed += math.Copysign(step, diff)
	}
	return r.currentSpeed
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
