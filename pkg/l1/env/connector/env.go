// Package connector sets up the client side for tools talking to a
// running teensyd.
package connector

import (
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/comm/mqtt"
)

// DefaultType is the controller type registered by teensyd.
const DefaultType = "teensy"

// Config selects the registry and, optionally, the controller.
type Config struct {
	Ref l1.ControllerRef

	// RegistryURL is mqtt://host:port/topic-prefix. tcp, ssl, ws and
	// wss schemes reach the broker as paho does.
	RegistryURL string
}

var flagConfig = Config{
	Ref:         l1.ControllerRef{Type: envOr("TEENSY_TYPE", DefaultType), ID: os.Getenv("TEENSY_ID")},
	RegistryURL: envOr("ROBO_MQTT_URL", "mqtt://localhost:1883/robo/"),
}

func envOr(name, def string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return def
}

// SetupFlags registers -vehicle-type, -vehicle-id and -registry.
func SetupFlags() {
	flag.StringVar(&flagConfig.Ref.Type, "vehicle-type", flagConfig.Ref.Type, "Controller type of the vehicle")
	flag.StringVar(&flagConfig.Ref.ID, "vehicle-id", flagConfig.Ref.ID, "Controller ID of the vehicle")
	flag.StringVar(&flagConfig.RegistryURL, "registry", flagConfig.RegistryURL, "Registry URL")
}

// NewConfig returns a copy of the flag/environment configuration.
func NewConfig() *Config {
	conf := flagConfig
	return &conf
}

var registrySchemes = map[string]func(string) (l1.Connector, error){
	"mqtt": newMQTTConnector,
	"tcp":  newMQTTConnector,
	"ssl":  newMQTTConnector,
	"ws":   newMQTTConnector,
	"wss":  newMQTTConnector,
}

func newMQTTConnector(registryURL string) (l1.Connector, error) {
	return mqtt.NewConnector(registryURL)
}

// NewConnector creates the Connector for RegistryURL.
func (c *Config) NewConnector() (l1.Connector, error) {
	u, err := url.Parse(c.RegistryURL)
	if err != nil {
		return nil, fmt.Errorf("registry URL %q: %w", c.RegistryURL, err)
	}
	create, ok := registrySchemes[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("registry URL %q: unsupported scheme %q", c.RegistryURL, u.Scheme)
	}
	return create(c.RegistryURL)
}
