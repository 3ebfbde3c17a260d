// Package l1 defines how the vehicle controller (L1) talks to its
// clients (L2): commands in, replies and events out.
package l1

import (
	"context"
	"io"

	fx "github.com/robotalks/teensy.go/pkg/framework"
)

// ControllerRef identifies a controller by type and device ID.
type ControllerRef struct {
	Type string
	ID   string
}

// Name is "type/id", the key used in registries.
func (r ControllerRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid requires both Type and ID.
func (r ControllerRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// ControllerMeta is published on registration.
type ControllerMeta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ControllerInfo is what discovery finds.
type ControllerInfo struct {
	Ref  ControllerRef
	Meta ControllerMeta
}

// Registrar is the controller side. Received commands reach the loop
// as CommandMsg.
type Registrar interface {
	SendEvent(context.Context, fx.Message) error
}

// Command is a received command. Done sends the reply, only the first
// call counts.
type Command interface {
	Msg() fx.Message
	Done(reply fx.Message) error
}

// CommandMsg carries a Command through the loop.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// Connector is the client side.
type Connector interface {
	Discover(context.Context) ([]ControllerInfo, error)
	Connect(context.Context, ControllerRef) (ControllerConn, error)
}

// ControllerConn sends commands to one controller.
type ControllerConn interface {
	DoCommand(fx.Message) CommandFuture
	io.Closer
}

// CommandFuture delivers exactly one Result.
type CommandFuture interface {
	ResultChan() <-chan Result
}

// Result is the reply to a command. Err is set for a CommandErr reply
// or when no reply arrived.
type Result struct {
	Msg fx.Message
	Err error
}

// Do sends cmd and waits for the reply or ctx.
func Do(ctx context.Context, conn ControllerConn, cmd fx.Message) (fx.Message, error) {
	resultCh := conn.DoCommand(cmd).ResultChan()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-resultCh:
		if !ok {
			return nil, context.Canceled
		}
		return res.Msg, res.Err
	}
}
