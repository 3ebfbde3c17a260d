package sh

import (
	"encoding/json"
	"errors"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/teensy.go/pkg/l1"
)

var (
	// DiscoverCmd lists registered controllers.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list controllers",
		Func:    discover,
	}

	// ConnectCmd connects to a controller, discovering it if TYPE ID
	// is incomplete.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE [ID]]",
		Func:    connect,
	}

	// DisconnectCmd ends the session.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "end the session",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// WatchCmd switches printing events.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[on|off]",
		Func:    watch,
	}
)

func discover(c *ishell.Context) {
	s := ShellFrom(c)
	found, err := s.DiscoverControllers(nil)
	if err != nil {
		c.Err(err)
		return
	}
	if s.OutputJSON {
		if found == nil {
			found = []l1.ControllerInfo{}
		}
		out, err := json.Marshal(found)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if len(found) == 0 {
		c.Println("No controllers found")
	}
	for _, info := range found {
		c.Println(FormatInfo(info))
	}
}

func connect(c *ishell.Context) {
	s := ShellFrom(c)
	if len(c.Args) >= 2 {
		if err := s.Connect(l1.ControllerRef{Type: c.Args[0], ID: c.Args[1]}); err != nil {
			c.Err(err)
		}
		return
	}
	var filter func(l1.ControllerInfo) bool
	if len(c.Args) == 1 {
		typ := c.Args[0]
		filter = func(info l1.ControllerInfo) bool { return info.Ref.Type == typ }
	}
	info, err := s.SelectController(filter)
	if err == nil && info == nil {
		err = errors.New("no controller discovered")
	}
	if err == nil {
		err = s.Connect(info.Ref)
	}
	if err != nil {
		c.Err(err)
	}
}

func watch(c *ishell.Context) {
	s := ShellFrom(c)
	if len(c.Args) > 0 {
		s.WatchEvents = c.Args[0] == "on"
	} else {
		s.WatchEvents = !s.WatchEvents
	}
	if s.WatchEvents {
		c.Println("watching events")
	} else {
		c.Println("not watching events")
	}
}
