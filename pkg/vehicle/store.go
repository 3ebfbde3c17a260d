package vehicle

import "sync"

// Store guards a State for concurrent access.
// The zero value is a Store in manual mode with all values zero.
type Store struct {
	state State
	lock  sync.RWMutex
}

// NewStore creates a Store starting in the given mode.
func NewStore(mode Mode) *Store {
	return &Store{state: State{Mode: mode}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Mode returns the current mode.
func (s *Store) Mode() Mode {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.Mode
}

// SetMode changes the mode, last writer wins.
func (s *Store) SetMode(mode Mode) {
	s.lock.Lock()
	s.state.Mode = mode
	s.lock.Unlock()
}

// SetSpeed records the speed.
func (s *Store) SetSpeed(v float64) {
	s.lock.Lock()
	s.state.Speed = v
	s.lock.Unlock()
}

// SetThrottle records the throttle.
func (s *Store) SetThrottle(v float64) {
	s.lock.Lock()
	s.state.Throttle = v
	s.lock.Unlock()
}

// SetSteering records the steering.
func (s *Store) SetSteering(v float64) {
	s.lock.Lock()
	s.state.Steering = v
	s.lock.Unlock()
}

// Update applies fn to the state atomically.
func (s *Store) Update(fn func(*State)) {
	s.lock.Lock()
	fn(&s.state)
	s.lock.Unlock()
}
