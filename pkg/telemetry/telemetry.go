// Package telemetry publishes the vehicle state to local consumers.
package telemetry

import (
	"context"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Publisher publishes state changes and faults.
type Publisher interface {
	PublishState(ctx context.Context, st vehicle.State) error
	PublishFault(ctx context.Context, reason, message string) error
	Close() error
}

// Nop is a Publisher doing nothing.
type Nop struct{}

// PublishState implements Publisher.
func (Nop) PublishState(context.Context, vehicle.State) error { return nil }

// PublishFault implements Publisher.
func (Nop) PublishFault(context.Context, string, string) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
