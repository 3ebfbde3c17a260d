// Package vehicle provides shell commands to drive a vehicle.
package vehicle

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/teensy.go/pkg/cli/sh"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// ParseFloatArgs parses positional float arguments, names of the
// optional ones end with "?". Missing optional ones are 0.
func ParseFloatArgs(args []string, names ...string) ([]float64, error) {
	vals := make([]float64, len(names))
	for n, name := range names {
		optional := name[len(name)-1] == '?'
		if optional {
			name = name[:len(name)-1]
		}
		if n >= len(args) {
			if optional {
				continue
			}
			return nil, fmt.Errorf("%s required", name)
		}
		val, err := strconv.ParseFloat(args[n], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", name, err)
		}
		vals[n] = val
	}
	return vals, nil
}

var (
	// StateCmd exposes VehicleStateQuery command.
	StateCmd = ishell.Cmd{
		Name:    "vehicle.state",
		Aliases: []string{"vs"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.VehicleStateQuery{})
		}),
	}

	// DriveCmd exposes VehicleDrive command.
	DriveCmd = ishell.Cmd{
		Name:    "vehicle.drive",
		Aliases: []string{"vd"},
		Help:    "SPEED [STEERING(-1..1)]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			vals, err := ParseFloatArgs(c.Args, "SPEED", "STEERING?")
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, &msgs.VehicleDrive{Speed: vals[0], Steering: vals[1]})
		}),
	}

	// ThrottleCmd exposes VehicleThrottle command.
	ThrottleCmd = ishell.Cmd{
		Name:    "vehicle.throttle",
		Aliases: []string{"vt"},
		Help:    "THROTTLE(-1..1) [STEERING(-1..1)]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			vals, err := ParseFloatArgs(c.Args, "THROTTLE", "STEERING?")
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, &msgs.VehicleThrottle{Throttle: vals[0], Steering: vals[1]})
		}),
	}

	// ModeCmd exposes VehicleMode command.
	ModeCmd = ishell.Cmd{
		Name:    "vehicle.mode",
		Aliases: []string{"vm"},
		Help:    "manual|auto",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("MODE required"))
				return
			}
			mode, err := vehicle.ParseMode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, &msgs.VehicleMode{Mode: mode.String()})
		}),
	}

	// ShutdownCmd exposes VehicleShutdown command.
	ShutdownCmd = ishell.Cmd{
		Name:    "vehicle.shutdown",
		Aliases: []string{"vx"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, &msgs.VehicleShutdown{})
		}),
	}
)

func init() {
	sh.AddCmds(
		&StateCmd,
		&DriveCmd,
		&ThrottleCmd,
		&ModeCmd,
		&ShutdownCmd,
	)
}
