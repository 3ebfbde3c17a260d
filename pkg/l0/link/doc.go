// Package link drives the serial link to the MCU.
//
// The Driver keeps the vehicle state up to date with what the MCU
// reports (PollStep), forwards commands from the host in auto mode
// (CommandStep) and guards the session with two watchdogs. When the
// MCU goes silent or the host stops calling CommandStep, the Driver
// shuts down: the MCU is told to stop and the transport is closed.
// A Driver which shut down is never revived, create a new one.
package link
