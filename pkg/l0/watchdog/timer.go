// Package watchdog provides deadline timers which invoke a callback
// when they are not reset in time.
package watchdog

import (
	"sync"
	"time"
)

type timerState int

const (
	stateIdle timerState = iota
	stateArmed
	stateFired
	stateStopped
)

// Timer fires its callback once Threshold elapses without a Reset.
//
// The callback runs on its own goroutine, never inside Reset, Start or
// Shutdown. A fire racing with Reset or Shutdown is resolved under the
// timer lock: whichever gets the lock first wins and the callback is
// invoked at most once per arming. Start and Reset are ignored while
// the callback runs, so callbacks never overlap.
type Timer struct {
	Threshold time.Duration

	callback func()

	lock      sync.Mutex
	state     timerState
	firing    bool
	gen       uint64
	pending   *time.Timer
	lastReset time.Time
	resets    uint64
}

// New creates an idle Timer.
func New(threshold time.Duration, callback func()) *Timer {
	return &Timer{Threshold: threshold, callback: callback}
}

// Start arms the timer to fire after initialDelay plus Threshold.
func (t *Timer) Start(initialDelay time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.state == stateStopped || t.firing {
		return
	}
	t.armLocked(initialDelay + t.Threshold)
}

// Reset cancels the pending fire and re-arms the timer with Threshold
// from now. It re-arms a fired timer once the callback returned, and
// is a no-op after Shutdown. LastReset strictly increases with every
// Reset taking effect.
func (t *Timer) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.state == stateStopped || t.firing {
		return
	}
	now := time.Now()
	if !now.After(t.lastReset) {
		now = t.lastReset.Add(time.Nanosecond)
	}
	t.lastReset = now
	t.resets++
	t.armLocked(t.Threshold)
}

// Shutdown cancels the pending fire. The timer stays idle forever.
func (t *Timer) Shutdown() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.cancelLocked()
	t.state = stateStopped
}

// LastReset returns the time of the last Reset.
func (t *Timer) LastReset() time.Time {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.lastReset
}

// Resets returns the number of Resets taking effect.
func (t *Timer) Resets() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.resets
}

// Armed returns true if a fire is pending.
func (t *Timer) Armed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.state == stateArmed
}

// Fired returns true if the timer fired and wasn't re-armed since.
func (t *Timer) Fired() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.state == stateFired
}

func (t *Timer) armLocked(d time.Duration) {
	t.cancelLocked()
	gen := t.gen
	t.state = stateArmed
	t.pending = time.AfterFunc(d, func() { t.fire(gen) })
}

func (t *Timer) cancelLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	// invalidates a fire which already left the runtime timer
	// but hasn't acquired the lock yet.
	t.gen++
}

func (t *Timer) fire(gen uint64) {
	t.lock.Lock()
	if gen != t.gen || t.state != stateArmed {
		t.lock.Unlock()
		return
	}
	t.state = stateFired
	t.pending = nil
	t.firing = true
	t.lock.Unlock()
	defer func() {
		t.lock.Lock()
		t.firing = false
		t.lock.Unlock()
	}()
	if t.callback != nil {
		t.callback()
	}
}
