package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

var numeralRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// keyword priority, first match wins.
var keywords = []struct {
	word string
	kind Kind
}{
	{AttrSpeed, KindSpeed},
	{AttrThrottle, KindThrottle},
	{AttrSteering, KindSteering},
	{AttrMode, KindMode},
}

// Decode parses a line received from the MCU.
// A line which can't be classified or lacks the numeral results in a
// message of KindUnknown together with an error explaining why. The
// message is still usable: it must be acked with a bare poll.
func Decode(line string) (Message, error) {
	msg := Message{Line: strings.ToLower(strings.TrimSpace(line))}
	kind := KindUnknown
	for _, kw := range keywords {
		if strings.Contains(msg.Line, kw.word) {
			kind = kw.kind
			break
		}
	}
	switch kind {
	case KindUnknown:
		return msg, fmt.Errorf("%w in %q", ErrNoKeyword, msg.Line)
	case KindMode:
		msg.Kind = KindMode
		msg.Mode = vehicle.ModeManual
		if strings.Contains(msg.Line, vehicle.ModeAuto.String()) {
			msg.Mode = vehicle.ModeAuto
		}
		return msg, nil
	}
	numeral := numeralRe.FindString(msg.Line)
	if numeral == "" {
		return msg, fmt.Errorf("%s: %w in %q", kind, ErrNoNumeral, msg.Line)
	}
	val, err := strconv.ParseFloat(numeral, 64)
	if err != nil {
		return msg, fmt.Errorf("%s: %w %q: %v", kind, ErrInvalidValue, numeral, err)
	}
	msg.Kind, msg.Value = kind, val
	return msg, nil
}
