// Package controller sets up the registry side of teensyd: who it is
// and where L2 clients find it.
package controller

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/comm"
	"github.com/robotalks/teensy.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/teensy.go/pkg/l1/env"
)

// Config identifies the controller and its registries.
type Config struct {
	Info l1.ControllerInfo

	// MQTTBrokerURLs is a comma separated list of
	// mqtt://host:port/topic-prefix. Empty disables L1 commands.
	MQTTBrokerURLs string
}

var flagConfig = Config{
	MQTTBrokerURLs: "mqtt://localhost:1883/robo/",
}

func init() {
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		flagConfig.MQTTBrokerURLs = val
	}
	flagConfig.Info.Ref.ID = os.Getenv("TEENSY_ID")
}

// SetControllerType is called from init of the daemon.
func SetControllerType(typ string, meta l1.ControllerMeta) {
	flagConfig.Info.Ref.Type = typ
	flagConfig.Info.Meta = meta
}

// SetupFlags registers -type, -id and -mqtt.
func SetupFlags() {
	flag.StringVar(&flagConfig.Info.Ref.Type, "type", flagConfig.Info.Ref.Type, "Controller type")
	flag.StringVar(&flagConfig.Info.Ref.ID, "id", flagConfig.Info.Ref.ID, "Controller ID, default is derived from machine ID")
	flag.StringVar(&flagConfig.MQTTBrokerURLs, "mqtt", flagConfig.MQTTBrokerURLs, "MQTT broker URLs, comma separated, empty to disable")
}

// NewConfig returns a copy of the flag/environment configuration.
func NewConfig() *Config {
	conf := flagConfig
	if conf.Info.Ref.ID == "" {
		conf.Info.Ref.ID = env.MachineID()
	}
	return &conf
}

// AddLabel sets a label in the published meta. Labels of other copies
// of the Config are not affected.
func (c *Config) AddLabel(key, value string) {
	labels := map[string]string{key: value}
	for k, v := range c.Info.Meta.Labels {
		if k != key {
			labels[k] = v
		}
	}
	c.Info.Meta.Labels = labels
}

// BrokerURLs splits MQTTBrokerURLs.
func (c *Config) BrokerURLs() []string {
	var urls []string
	for _, u := range strings.Split(c.MQTTBrokerURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Env is what the controller needs to be reachable.
type Env struct {
	Config    *Config
	Registrar *comm.RegistrarMux
}

// NewEnv creates a registrar per broker.
func (c *Config) NewEnv() (*Env, error) {
	if !c.Info.Ref.IsValid() {
		return nil, errors.New("controller type and id must be specified")
	}
	e := &Env{Config: c, Registrar: &comm.RegistrarMux{}}
	for _, u := range c.BrokerURLs() {
		reg, err := mqtt.NewRegistrar(u, c.Info)
		if err != nil {
			return nil, fmt.Errorf("MQTT registrar %s: %w", u, err)
		}
		e.Registrar.Add(reg)
	}
	if len(e.Registrar.Registrars) == 0 {
		glog.Warning("no registrar configured, L1 commands are not accepted")
	}
	return e, nil
}

// MustNewEnv is NewEnv exiting on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		glog.Exit(err)
	}
	return e
}

// AddToLoop implements LoopAdder.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Registrar, &comm.UnsupportedCommands{})
}
