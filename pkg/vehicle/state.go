// Package vehicle holds the vehicle state shared between the MCU link
// driver and the host control loop.
package vehicle

import (
	"fmt"
	"strings"
)

// Mode is the driving mode of the vehicle.
type Mode int

// Driving modes.
const (
	// ModeManual: the MCU is driven by the RC receiver and only
	// reports what it senses.
	ModeManual Mode = iota
	// ModeAuto: the host commands speed and steering.
	ModeAuto
)

// String implements fmt.Stringer and flag.Value.
func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAuto:
		return "auto"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Set implements flag.Value.
func (m *Mode) Set(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}

// ParseMode parses the name of a mode, case insensitive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return ModeManual, nil
	case "auto":
		return ModeAuto, nil
	}
	return ModeManual, fmt.Errorf("unknown mode %q", s)
}

// State is a snapshot of the vehicle.
// Speed is in the unit reported by the MCU, Throttle and Steering
// are normalized to [-1, 1] by the firmware.
type State struct {
	Speed    float64
	Throttle float64
	Steering float64
	Mode     Mode
}

// String implements fmt.Stringer.
func (s State) String() string {
	return fmt.Sprintf("mode=%s speed=%g throttle=%g steering=%g",
		s.Mode, s.Speed, s.Throttle, s.Steering)
}
