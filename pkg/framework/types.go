package framework

import (
	"context"
	"time"
)

// Named is implemented by parts which have a name for logging.
type Named interface {
	Name() string
}

// Runnable runs in background until the context is done or it fails.
type Runnable interface {
	Run(context.Context) error
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is anything posted to the loop: commands, events or
// internal notifications.
type Message interface {
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}

// Controller is invoked once per iteration at its priority level.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// PriorityLevels is the number of priority levels. Level 0 runs first.
const PriorityLevels int = 16

// Priority levels.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense is for reading sensors.
	PrLvSense = PrLvHigh
	// PrLvControl is for handling commands and deciding targets.
	PrLvControl = PrLvNormal
	// PrLvActuate is for sending targets to actuators.
	PrLvActuate = PrLvLow
	// PrLvPostProc is for reporting the outcome of the iteration.
	PrLvPostProc = PrLvIdle - 1
)

// LoopControl is available to Runnables from their context, see
// LoopCtlFrom.
type LoopControl interface {
	// PostMessage queues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext starts the next iteration without waiting for
	// the interval.
	TriggerNext()
	// PreRunAt installs one-shot controllers running before the
	// regular ones at the level in the next iteration reaching it.
	PreRunAt(priorityLevel int, controllers ...Controller)
	// PostRunAt installs one-shot controllers running after the
	// regular ones at the level.
	PostRunAt(priorityLevel int, controllers ...Controller)
}

// ControlContext is passed to controllers in an iteration.
type ControlContext interface {
	LoopControl

	// Context is canceled when the loop stops.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// PriorityLevel is the level being run.
	PriorityLevel() int
	// Messages are those queued before the iteration started,
	// less the ones taken at higher priority levels.
	Messages() MessageStore
	// PostRun is PostRunAt the current level. Hooks installed by
	// a post-run hook run in the next iteration.
	PostRun(controllers ...Controller)
}

// MessageStore holds the messages of an iteration.
type MessageStore interface {
	ProcessMessages(MessageProcessor)
	AddMessages(msgs ...Message)
}

// MessageProcessor examines messages one by one.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is passed to a MessageProcessor for each
// message.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message, lower levels won't see it.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()
	// AddMessages appends messages visible to lower levels.
	AddMessages(msgs ...Message)
}
