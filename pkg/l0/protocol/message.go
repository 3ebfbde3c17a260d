package protocol

import (
	"errors"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Kind classifies a decoded line.
type Kind int

// Message kinds.
const (
	KindUnknown Kind = iota
	KindSpeed
	KindThrottle
	KindSteering
	KindMode
)

// Attribute keywords, also used as the attribute names in poll and
// command lines.
const (
	AttrSpeed    = "speed"
	AttrThrottle = "throttle"
	AttrSteering = "steering"
	AttrMode     = "mode"
)

// Errors of decoding and encoding.
var (
	ErrNoKeyword    = errors.New("no attribute keyword")
	ErrNoNumeral    = errors.New("no numeral")
	ErrInvalidValue = errors.New("invalid value")
)

// String returns the attribute name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSpeed:
		return AttrSpeed
	case KindThrottle:
		return AttrThrottle
	case KindSteering:
		return AttrSteering
	case KindMode:
		return AttrMode
	}
	return "unknown"
}

// Pollable returns true if the MCU accepts a poll naming this kind.
func (k Kind) Pollable() bool {
	switch k {
	case KindSpeed, KindThrottle, KindSteering:
		return true
	}
	return false
}

// Message is a decoded line from the MCU.
type Message struct {
	Kind Kind
	// Value is set for KindSpeed, KindThrottle and KindSteering.
	Value float64
	// Mode is set for KindMode.
	Mode vehicle.Mode
	// Line is the normalized (lower-cased, trimmed) line.
	Line string
}

// Command is the set of values the host sends in auto mode.
type Command struct {
	Speed    float64
	Throttle float64
	Steering float64
	// UseThrottle sends Throttle instead of Speed.
	UseThrottle bool
}
