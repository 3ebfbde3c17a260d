package link

import (
	"flag"
	"time"

	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Defaults.
const (
	DefaultLinkTimeout = 100 * time.Millisecond
	DefaultHostTimeout = 100 * time.Millisecond
	DefaultGrace       = time.Second
	DefaultReadSlice   = 20 * time.Millisecond
)

// Config defines the configuration of a Driver.
type Config struct {
	// LinkTimeout is the threshold of the receive watchdog.
	LinkTimeout time.Duration `yaml:"link-timeout"`
	// HostTimeout is the threshold of the liveness watchdog.
	HostTimeout time.Duration `yaml:"host-timeout"`
	// Grace delays both watchdogs after start, giving the MCU
	// time to come up.
	Grace time.Duration `yaml:"grace"`
	// ReadSlice bounds a single blocking read, PollStep checks for
	// shutdown and cancellation between slices.
	ReadSlice time.Duration `yaml:"read-slice"`
	// Mode is the initial mode.
	Mode vehicle.Mode `yaml:"mode"`

	// OnFatal is invoked once on its own goroutine when the Driver
	// shuts down by itself.
	OnFatal func(error) `yaml:"-"`
}

var defaultConfig = Config{
	LinkTimeout: DefaultLinkTimeout,
	HostTimeout: DefaultHostTimeout,
	Grace:       DefaultGrace,
	ReadSlice:   DefaultReadSlice,
	Mode:        vehicle.ModeManual,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.LinkTimeout, "link-timeout", defaultConfig.LinkTimeout, "Shutdown if nothing is received from MCU in this duration.")
	flag.DurationVar(&defaultConfig.HostTimeout, "host-timeout", defaultConfig.HostTimeout, "Shutdown if the control loop doesn't command in this duration.")
	flag.DurationVar(&defaultConfig.Grace, "grace", defaultConfig.Grace, "Delay of watchdogs after start.")
	flag.Var(&defaultConfig.Mode, "mode", "Initial mode: manual or auto.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewDriver creates a Driver over t.
func (c *Config) NewDriver(t Transport) *Driver {
	return New(t, *c)
}

func (c *Config) normalize() {
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = DefaultLinkTimeout
	}
	if c.HostTimeout <= 0 {
		c.HostTimeout = DefaultHostTimeout
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	if c.ReadSlice <= 0 {
		c.ReadSlice = DefaultReadSlice
	}
}
