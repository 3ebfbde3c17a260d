package comm

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

// DefaultCommandExpiration is how long a command waits for its reply.
const DefaultCommandExpiration = time.Second

// ControllerConn is the connector side of a Pipe, matching replies to
// commands by sequence. Events are posted to the loop.
// Commands without a reply in Expiration fail with
// context.DeadlineExceeded.
type ControllerConn struct {
	Expiration time.Duration

	pipe    Pipe
	lock    sync.Mutex
	lastSeq uint32
	pending map[uint32]*pendingCommand
}

type pendingCommand struct {
	deadline time.Time
	resultCh chan l1.Result
}

func (p *pendingCommand) ResultChan() <-chan l1.Result {
	return p.resultCh
}

func (p *pendingCommand) complete(res l1.Result) {
	p.resultCh <- res
	close(p.resultCh)
}

// Init sets rw as the transport.
func (c *ControllerConn) Init(rw PacketReadWriter) {
	c.Expiration = DefaultCommandExpiration
	c.pending = make(map[uint32]*pendingCommand)
	c.pipe.ReadWriter = rw
	c.pipe.Handler = c
}

// DoCommand implements l1.ControllerConn.
func (c *ControllerConn) DoCommand(msg fx.Message) l1.CommandFuture {
	cmd := &pendingCommand{
		deadline: time.Now().Add(c.Expiration),
		resultCh: make(chan l1.Result, 1),
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	// sequence 0 is never used by commands.
	if c.lastSeq++; c.lastSeq == 0 {
		c.lastSeq = 1
	}
	if err := c.pipe.SendCommandMsg(msg, c.lastSeq); err != nil {
		cmd.complete(l1.Result{Err: err})
		return cmd
	}
	c.pending[c.lastSeq] = cmd
	return cmd
}

// HandleTypedMsg implements msgs.TypedMsgHandler.
func (c *ControllerConn) HandleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		ctl := fx.LoopCtlFrom(ctx)
		ctl.PostMessage(msg)
		ctl.TriggerNext()
		return nil
	}
	c.lock.Lock()
	cmd, ok := c.pending[typed.Sequence]
	delete(c.pending, typed.Sequence)
	c.lock.Unlock()
	if !ok {
		glog.V(2).Infof("reply %x for seq %d: no pending command", typed.TypeID, typed.Sequence)
		return nil
	}
	res := l1.Result{Msg: msg}
	if cmdErr, isErr := msg.(*msgs.CommandErr); isErr {
		res.Err = cmdErr
	}
	cmd.complete(res)
	return nil
}

// Control expires pending commands.
func (c *ControllerConn) Control(cc fx.ControlContext) error {
	now := cc.Time()
	c.lock.Lock()
	defer c.lock.Unlock()
	for seq, cmd := range c.pending {
		if now.Before(cmd.deadline) {
			continue
		}
		delete(c.pending, seq)
		cmd.complete(l1.Result{Err: context.DeadlineExceeded})
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (c *ControllerConn) AddToLoop(l *fx.Loop) {
	l.Add(&c.pipe)
	l.AddController(fx.PrLvIdle, c)
}

// Close implements io.Closer.
func (c *ControllerConn) Close() error {
	return c.pipe.Close()
}
