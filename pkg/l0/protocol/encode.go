package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	pollVerb    = "poll"
	commandVerb = "command"
	shutdownArg = "shutdown"
)

// EncodePoll builds the ack of a consumed message.
// Only speed, throttle and steering are named, everything else is
// acked with a bare poll.
func EncodePoll(kind Kind) []byte {
	if kind.Pollable() {
		return []byte(pollVerb + " " + kind.String() + "\n")
	}
	return []byte(pollVerb + "\n")
}

// EncodeCommand builds the command lines for c: throttle or speed
// first, steering next.
func EncodeCommand(c Command) ([][]byte, error) {
	attr, val := AttrSpeed, c.Speed
	if c.UseThrottle {
		attr, val = AttrThrottle, c.Throttle
	}
	first, err := commandLine(attr, val)
	if err != nil {
		return nil, err
	}
	steering, err := commandLine(AttrSteering, c.Steering)
	if err != nil {
		return nil, err
	}
	return [][]byte{first, steering}, nil
}

// EncodeShutdown builds the shutdown command.
func EncodeShutdown() []byte {
	return []byte(commandVerb + " " + shutdownArg + "\n")
}

// FormatValue formats v as a decimal with at least one fractional
// digit so that the MCU always parses a float.
func FormatValue(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

func commandLine(attr string, v float64) ([]byte, error) {
	s, err := FormatValue(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", attr, err)
	}
	return []byte(commandVerb + " " + attr + " " + s + "\n"), nil
}
