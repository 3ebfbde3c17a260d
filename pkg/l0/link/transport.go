package link

import (
	"io"
	"time"
)

// Transport is the byte stream to the MCU.
type Transport interface {
	// ReadLine returns the next line without the line terminator.
	// It returns ErrReadTimeout if no complete line arrives within
	// timeout, any partially received line is kept for the next call.
	ReadLine(timeout time.Duration) (string, error)

	io.WriteCloser
}
