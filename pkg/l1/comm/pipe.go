package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

// PacketReader reads whole packets.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes whole packets.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter is the transport under a Pipe, e.g. MQTT topics.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Pipe exchanges msgs.Typed packets over a PacketReadWriter.
// Received messages are dispatched to Handler from Run.
type Pipe struct {
	ReadWriter PacketReadWriter
	Handler    msgs.TypedMsgHandler

	writeLock sync.Mutex
}

// NewPipe creates a Pipe on rw.
func NewPipe(rw PacketReadWriter) *Pipe {
	return &Pipe{ReadWriter: rw}
}

// SendCommandMsg sends a command, or the reply to command seq.
func (p *Pipe) SendCommandMsg(msg fx.Message, seq uint32) error {
	typed, err := typedOfKind(msg, msgs.TypeIDKindCommand)
	if err != nil {
		return err
	}
	typed.Sequence = seq
	return p.SendTyped(typed)
}

// SendEventMsg sends an event.
func (p *Pipe) SendEventMsg(msg fx.Message) error {
	typed, err := typedOfKind(msg, msgs.TypeIDKindEvent)
	if err != nil {
		return err
	}
	return p.SendTyped(typed)
}

// SendTyped encodes and writes typed.
func (p *Pipe) SendTyped(typed *msgs.Typed) error {
	pkt, err := typed.Encode()
	if err != nil {
		return err
	}
	p.writeLock.Lock()
	err = p.ReadWriter.WritePacket(pkt)
	p.writeLock.Unlock()
	return err
}

func typedOfKind(msg fx.Message, kind uint32) (*msgs.Typed, error) {
	typed, err := msgs.TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	if typed.Kind() != kind {
		return nil, fmt.Errorf("message %T of type %x sent as kind %x", msg, typed.TypeID, kind)
	}
	return typed, nil
}

// Run implements Runnable. It reads until the transport fails, which
// is context.Canceled once ctx is done.
func (p *Pipe) Run(ctx context.Context) error {
	defer p.Close()
	for {
		pkt, err := p.ReadWriter.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := p.dispatch(ctx, pkt); err != nil {
			return err
		}
	}
}

// dispatch drops malformed packets. A command of an unknown type gets
// a CommandErr reply.
func (p *Pipe) dispatch(ctx context.Context, pkt []byte) error {
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		glog.Warningf("drop malformed packet: %v", err)
		return nil
	}
	msg, err := typed.Decode()
	switch {
	case err != nil && typed.IsCommand():
		return p.SendCommandMsg(msgs.NewCommandErr(err), typed.Sequence)
	case err != nil:
		glog.V(2).Infof("drop message: %v", err)
		return nil
	case p.Handler == nil:
		return nil
	}
	return p.Handler.HandleTypedMsg(ctx, msg, typed)
}

// Close closes the transport if it is an io.Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder. The transport is added as well
// when it has parts to run.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	switch rw := p.ReadWriter.(type) {
	case fx.LoopAdder:
		loop.Add(rw)
	case fx.Runnable:
		loop.AddRunnable(rw)
	}
	loop.AddRunnable(p)
}
