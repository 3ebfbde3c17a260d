package watchdog

import "time"

// Pair is the two watchdogs guarding the MCU link.
//
// Receive expires when nothing arrives from the MCU, Liveness expires
// when the host control loop stops calling in. They are independent:
// each has its own threshold and callback.
type Pair struct {
	Receive  *Timer
	Liveness *Timer
}

// NewPair creates an idle Pair.
func NewPair(receiveTimeout time.Duration, onLinkLost func(),
	livenessTimeout time.Duration, onStalled func()) *Pair {
	return &Pair{
		Receive:  New(receiveTimeout, onLinkLost),
		Liveness: New(livenessTimeout, onStalled),
	}
}

// Start arms both watchdogs with the startup grace delay.
func (p *Pair) Start(grace time.Duration) {
	p.Receive.Start(grace)
	p.Liveness.Start(grace)
}

// Shutdown disarms both watchdogs permanently.
func (p *Pair) Shutdown() {
	p.Receive.Shutdown()
	p.Liveness.Shutdown()
}
