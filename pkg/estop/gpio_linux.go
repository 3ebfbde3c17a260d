//go:build linux

package estop

import (
	"sync"

	"github.com/golang/glog"
	"github.com/warthog618/go-gpiocdev"
)

// GPIORelay holds the relay energized on a GPIO line until tripped.
type GPIORelay struct {
	Line Line

	line    *gpiocdev.Line
	lock    sync.Mutex
	tripped bool
}

// OpenGPIO requests the line as output and energizes the relay.
func OpenGPIO(l Line) (*GPIORelay, error) {
	line, err := gpiocdev.RequestLine(l.Chip, l.Offset,
		gpiocdev.AsOutput(l.energized()),
		gpiocdev.WithConsumer("teensyd"))
	if err != nil {
		return nil, err
	}
	glog.Infof("e-stop relay armed on %s", l)
	return &GPIORelay{Line: l, line: line}, nil
}

// Trip implements Relay.
func (r *GPIORelay) Trip() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.tripped {
		return nil
	}
	if err := r.line.SetValue(1 - r.Line.energized()); err != nil {
		return err
	}
	r.tripped = true
	glog.Warningf("e-stop relay tripped on %s", r.Line)
	return nil
}

// Close releases the line. A tripped relay stays open as the line
// keeps its value after release on most chips.
func (r *GPIORelay) Close() error {
	return r.line.Close()
}
