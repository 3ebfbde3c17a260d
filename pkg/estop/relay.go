// Package estop drives an emergency stop relay cutting the power of
// the drive train when the MCU link fails.
package estop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Relay is a kill switch.
type Relay interface {
	// Trip opens the relay. It's idempotent.
	Trip() error
	Close() error
}

// ErrUnsupported is returned where GPIO character devices aren't available.
var ErrUnsupported = errors.New("GPIO relay not supported on this platform")

// Line identifies a GPIO line.
type Line struct {
	Chip   string
	Offset int
	// ActiveLow means the relay is energized by driving the line low.
	ActiveLow bool
}

// ParseLine parses "gpiochip0:17", with an optional ":low" suffix for
// active-low relays.
func ParseLine(s string) (Line, error) {
	var l Line
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return l, fmt.Errorf("invalid GPIO line %q, expect chip:offset[:low]", s)
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return l, fmt.Errorf("invalid GPIO offset %q", parts[1])
	}
	l.Chip, l.Offset = parts[0], offset
	if len(parts) == 3 {
		if parts[2] != "low" {
			return l, fmt.Errorf("invalid GPIO polarity %q", parts[2])
		}
		l.ActiveLow = true
	}
	return l, nil
}

// String implements fmt.Stringer.
func (l Line) String() string {
	s := l.Chip + ":" + strconv.Itoa(l.Offset)
	if l.ActiveLow {
		s += ":low"
	}
	return s
}

// energized returns the line value keeping the relay closed.
func (l Line) energized() int {
	if l.ActiveLow {
		return 0
	}
	return 1
}

// Nop is a Relay doing nothing.
type Nop struct{}

// Trip implements Relay.
func (Nop) Trip() error { return nil }

// Close implements Relay.
func (Nop) Close() error { return nil }
