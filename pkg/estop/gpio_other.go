//go:build !linux

package estop

// GPIORelay is unavailable on this platform.
type GPIORelay struct {
	Line Line
}

// OpenGPIO always fails with ErrUnsupported.
func OpenGPIO(l Line) (*GPIORelay, error) {
	return nil, ErrUnsupported
}

// Trip implements Relay.
func (r *GPIORelay) Trip() error { return ErrUnsupported }

// Close implements Relay.
func (r *GPIORelay) Close() error { return nil }
