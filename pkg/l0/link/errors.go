package link

import (
	"errors"
	"fmt"
)

var (
	// ErrLinkLost indicates nothing was received from the MCU in time.
	ErrLinkLost = errors.New("polling timeout")
	// ErrHostStalled indicates the host stopped calling CommandStep.
	ErrHostStalled = errors.New("control loop stalled")
	// ErrShutdown indicates the Driver was shut down on request.
	ErrShutdown = errors.New("driver shut down")
	// ErrReadTimeout is returned by Transport.ReadLine when no complete
	// line arrives in time. It is not an error of the link.
	ErrReadTimeout = errors.New("read timeout")
)

// TransportError wraps a failure of the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s error: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsFatal tells if err is a reason the Driver shut down by itself.
func IsFatal(err error) bool {
	if errors.Is(err, ErrLinkLost) || errors.Is(err, ErrHostStalled) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}
