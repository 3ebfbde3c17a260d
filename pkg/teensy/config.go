package teensy

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/teensy.go/pkg/estop"
	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l0/serial"
	env "github.com/robotalks/teensy.go/pkg/l1/env/controller"
	"github.com/robotalks/teensy.go/pkg/telemetry"
)

// ControllerType is the L1 controller type registered by teensyd.
const ControllerType = "teensy"

// Config defines the configuration of the vehicle controller.
// It's populated from flags and optionally a YAML file, see LoadFile.
type Config struct {
	Serial serial.Config `yaml:"serial"`
	Link   link.Config   `yaml:"link"`
	// PollPause is the pause after each poll, 0 polls back to back.
	PollPause time.Duration `yaml:"poll-pause"`
	// LoopInterval is the cadence of the control loop, which is
	// also how often the host proves alive to the MCU.
	LoopInterval time.Duration `yaml:"loop-interval"`
	// RedisURL enables state publishing to redis.
	RedisURL string `yaml:"redis"`
	// EStop is the GPIO line of the e-stop relay, e.g. gpiochip0:17.
	EStop string `yaml:"estop"`
}

// DefaultPollPause is the pause after each poll, matching the MCU
// reporting pace.
const DefaultPollPause = 5 * time.Millisecond

var (
	defaultConfig = Config{
		PollPause:    DefaultPollPause,
		LoopInterval: 25 * time.Millisecond,
	}
	configFile string
)

func init() {
	if val := os.Getenv("TEENSY_REDIS_URL"); val != "" {
		defaultConfig.RedisURL = val
	}
	if val := os.Getenv("TEENSY_CONFIG"); val != "" {
		configFile = val
	}
}

// SetupFlags sets command line flags, including those of serial and link.
func SetupFlags() {
	serial.SetupFlags()
	link.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML config file, values in the file override flags.")
	flag.DurationVar(&defaultConfig.PollPause, "poll-pause", defaultConfig.PollPause, "Pause between polls.")
	flag.DurationVar(&defaultConfig.LoopInterval, "loop-interval", defaultConfig.LoopInterval, "Control loop interval, must be shorter than -host-timeout.")
	flag.StringVar(&defaultConfig.RedisURL, "redis", defaultConfig.RedisURL, "Redis URL to publish state, e.g. redis://localhost:6379/0.")
	flag.StringVar(&defaultConfig.EStop, "estop", defaultConfig.EStop, "GPIO line of e-stop relay: chip:offset[:low].")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config from flags, then the config file if any.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Serial = *serial.Default()
	conf.Link = *link.Default()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	return &conf, conf.Validate()
}

// LoadFile decodes a YAML file over the current values.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	return c.Load(data)
}

// Load decodes YAML over the current values.
func (c *Config) Load(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks values which can't work together.
func (c *Config) Validate() error {
	hostTimeout := c.Link.HostTimeout
	if hostTimeout <= 0 {
		hostTimeout = link.DefaultHostTimeout
	}
	if c.LoopInterval >= hostTimeout {
		return fmt.Errorf("loop interval %v must be shorter than host timeout %v", c.LoopInterval, hostTimeout)
	}
	if c.EStop != "" {
		if _, err := estop.ParseLine(c.EStop); err != nil {
			return err
		}
	}
	return nil
}

// NewController opens the MCU link and creates the Controller.
// The returned Controller owns the link, telemetry and e-stop.
func (c *Config) NewController(ctx context.Context, e *env.Env) (*Controller, error) {
	var relay estop.Relay = estop.Nop{}
	if c.EStop != "" {
		line, _ := estop.ParseLine(c.EStop)
		r, err := estop.OpenGPIO(line)
		if err != nil {
			return nil, fmt.Errorf("e-stop %s: %w", line, err)
		}
		relay = r
	}
	var pub telemetry.Publisher = telemetry.Nop{}
	if c.RedisURL != "" {
		p, err := telemetry.NewRedisPublisher(ctx, c.RedisURL)
		if err != nil {
			relay.Close()
			return nil, err
		}
		pub = p
	}
	port, err := c.Serial.Open()
	if err != nil {
		relay.Close()
		pub.Close()
		return nil, err
	}
	glog.Infof("MCU link: %s, mode %s", c.Serial.Device, c.Link.Mode)
	ctl := NewController(e.Registrar, c.Link.NewDriver(port))
	ctl.PollPause = c.PollPause
	ctl.Publisher = pub
	ctl.Relay = relay
	return ctl, nil
}
