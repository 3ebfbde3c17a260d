// Package teensy is the L1 controller of a vehicle driven by a Teensy MCU.
//
// It runs the MCU link inside a control loop: commands from L2 set the
// drive target, the target is sent to the MCU on every iteration, and
// state changes are reported as events and to telemetry. When the link
// fails by itself, the e-stop relay is tripped and a fault is reported.
package teensy

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/teensy.go/pkg/estop"
	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l0/protocol"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
	"github.com/robotalks/teensy.go/pkg/telemetry"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// FaultReportTimeout bounds reporting a fault after the loop stopped.
const FaultReportTimeout = time.Second

// Controller is the L1 controller.
type Controller struct {
	Registrar l1.Registrar
	Driver    *link.Driver
	Publisher telemetry.Publisher
	Relay     estop.Relay
	// PollPause is the pause between polls.
	PollPause time.Duration

	target protocol.Command

	notified    bool
	lastState   vehicle.State
	lastRunning bool
}

// NewController creates a Controller over an MCU link.
func NewController(reg l1.Registrar, d *link.Driver) *Controller {
	return &Controller{
		Registrar: reg,
		Driver:    d,
		Publisher: telemetry.Nop{},
		Relay:     estop.Nop{},
	}
}

// Name implements Named.
func (c *Controller) Name() string {
	return "mcu-link"
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(l *fx.Loop) {
	l.AddRunnable(c)
	l.AddController(fx.PrLvControl, fx.ControlFunc(c.HandleCommand))
	l.AddController(fx.PrLvActuate, fx.ControlFunc(c.Actuate))
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(c.NotifyChanges))
}

// Run implements Runnable. It keeps polling the MCU until ctx is done
// or the link shuts down, and returns the reason.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Driver.Shutdown()
	for {
		err := c.Driver.PollStep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if link.IsFatal(err) {
				c.reportFault(err)
			}
			return err
		}
		if c.PollPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.PollPause):
			}
		}
	}
}

// Close releases telemetry and the e-stop relay. The relay is left in
// its current state.
func (c *Controller) Close() error {
	c.Driver.Shutdown()
	var errs fx.AggregatedError
	errs.Add(c.Publisher.Close(), c.Relay.Close())
	return errs.Aggregate()
}

// HandleCommand is a controller processing L1 commands.
func (c *Controller) HandleCommand(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*l1.CommandMsg)
		if !ok {
			return
		}
		var reply fx.Message
		switch m := cmdMsg.Command.Msg().(type) {
		case *msgs.VehicleStateQuery:
			reply = msgs.NewVehicleState(c.Driver.State(), c.Driver.Running())
		case *msgs.VehicleDrive:
			reply = c.setTarget(protocol.Command{Speed: m.Speed, Steering: m.Steering})
		case *msgs.VehicleThrottle:
			reply = c.setTarget(protocol.Command{Throttle: m.Throttle, Steering: m.Steering, UseThrottle: true})
		case *msgs.VehicleMode:
			mode, err := vehicle.ParseMode(m.Mode)
			if err != nil {
				reply = msgs.NewCommandErr(err)
				break
			}
			c.Driver.SetMode(mode)
			reply = msgs.NewCommandOK()
		case *msgs.VehicleShutdown:
			glog.Info("shutdown requested")
			c.Driver.Shutdown()
			reply = msgs.NewCommandOK()
		default:
			return
		}
		mctx.MessageTaken()
		if err := cmdMsg.Command.Done(reply); err != nil {
			glog.Warningf("reply %T error: %v", cmdMsg.Command.Msg(), err)
		}
	}))
	return nil
}

func (c *Controller) setTarget(cmd protocol.Command) fx.Message {
	if _, err := protocol.EncodeCommand(cmd); err != nil {
		return msgs.NewCommandErr(err)
	}
	c.target = cmd
	return msgs.NewCommandOK()
}

// Actuate sends the drive target to the MCU. It runs on every
// iteration as the loop must prove alive even without new commands.
func (c *Controller) Actuate(cc fx.ControlContext) error {
	var err error
	if c.target.UseThrottle {
		err = c.Driver.CommandThrottle(c.target.Throttle, c.target.Steering)
	} else {
		err = c.Driver.CommandStep(c.target.Speed, c.target.Steering)
	}
	if err != nil && !c.Driver.Running() {
		// reported by Run.
		return nil
	}
	return err
}

// NotifyChanges reports state changes.
func (c *Controller) NotifyChanges(cc fx.ControlContext) error {
	st, running := c.Driver.State(), c.Driver.Running()
	if c.notified && st == c.lastState && running == c.lastRunning {
		return nil
	}
	c.notified, c.lastState, c.lastRunning = true, st, running
	ctx := cc.Context()
	var errs fx.AggregatedError
	errs.Add(
		c.Registrar.SendEvent(ctx, &msgs.VehicleStatus{State: msgs.NewVehicleState(st, running)}),
		c.Publisher.PublishState(ctx, st),
	)
	return errs.Aggregate()
}

func (c *Controller) reportFault(cause error) {
	if err := c.Relay.Trip(); err != nil {
		glog.Errorf("trip e-stop error: %v", err)
	}
	reason := FaultReason(cause)
	// the loop context is going away with the loop.
	ctx, cancel := context.WithTimeout(context.Background(), FaultReportTimeout)
	defer cancel()
	fault := &msgs.VehicleFault{Reason: reason, Message: cause.Error()}
	if err := c.Registrar.SendEvent(ctx, fault); err != nil {
		glog.Warningf("send fault event error: %v", err)
	}
	if err := c.Publisher.PublishFault(ctx, reason, cause.Error()); err != nil {
		glog.Warningf("publish fault error: %v", err)
	}
}

// FaultReason maps a fatal link error to the reason reported in
// VehicleFault.
func FaultReason(err error) string {
	var te *link.TransportError
	switch {
	case errors.Is(err, link.ErrLinkLost):
		return msgs.FaultLinkLost
	case errors.Is(err, link.ErrHostStalled):
		return msgs.FaultHostStalled
	case errors.As(err, &te):
		return msgs.FaultTransport
	}
	return ""
}
