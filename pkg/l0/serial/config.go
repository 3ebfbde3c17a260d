package serial

import (
	"flag"
	"os"
	"strconv"
)

// Defaults.
const (
	DefaultDevice = "/dev/ttyACM0"
	DefaultBaud   = 9600
)

// Config defines the serial port settings.
type Config struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

var defaultConfig = Config{
	Device: DefaultDevice,
	Baud:   DefaultBaud,
}

func init() {
	if val := os.Getenv("TEENSY_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val, err := strconv.Atoi(os.Getenv("TEENSY_BAUD")); err == nil && val > 0 {
		defaultConfig.Baud = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device of the MCU.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate.")
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
