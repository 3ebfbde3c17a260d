// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/teensy.go/pkg/cli/cmds/vehicle"
)
