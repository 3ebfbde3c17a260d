package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

// Registrar is the controller side of a Pipe. Received commands are
// posted to the loop as l1.CommandMsg, events as they are.
type Registrar struct {
	pipe Pipe
}

// Init sets rw as the transport.
func (r *Registrar) Init(rw PacketReadWriter) {
	r.pipe.ReadWriter = rw
	r.pipe.Handler = msgs.HandleTypedMsgFunc(r.received)
}

func (r *Registrar) received(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsCommand() {
		msg = &l1.CommandMsg{Command: &remoteCommand{msg: msg, seq: typed.Sequence, pipe: &r.pipe}}
	}
	ctl := fx.LoopCtlFrom(ctx)
	ctl.PostMessage(msg)
	ctl.TriggerNext()
	return nil
}

// SendEvent implements l1.Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.pipe.SendEventMsg(msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.pipe)
}

// remoteCommand replies at most once.
type remoteCommand struct {
	msg  fx.Message
	seq  uint32
	pipe *Pipe
	once sync.Once
}

func (c *remoteCommand) Msg() fx.Message { return c.msg }

func (c *remoteCommand) Done(reply fx.Message) (err error) {
	c.once.Do(func() {
		err = c.pipe.SendCommandMsg(reply, c.seq)
	})
	return
}

// RegistrarMux fans events out to all Registrars.
type RegistrarMux struct {
	Registrars []l1.Registrar
}

// Add appends regs.
func (r *RegistrarMux) Add(regs ...l1.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// SendEvent implements l1.Registrar.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (r *RegistrarMux) AddToLoop(loop *fx.Loop) {
	for _, reg := range r.Registrars {
		if adder, ok := reg.(fx.LoopAdder); ok {
			loop.Add(adder)
		}
	}
}

// UnsupportedCommands replies CommandErr to commands no controller
// took. It runs at the lowest priority.
type UnsupportedCommands struct{}

// AddToLoop implements LoopAdder.
func (c *UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}

// Control implements Controller.
func (c *UnsupportedCommands) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmd, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		glog.V(2).Infof("unsupported command %T", cmd.Command.Msg())
		if err := cmd.Command.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand)); err != nil {
			glog.Warningf("reply unsupported command: %v", err)
		}
	}))
	return nil
}
