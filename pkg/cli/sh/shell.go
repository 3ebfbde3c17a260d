// Package sh is the interactive shell of teensycli. Command providers
// add their commands with AddCmds from init.
package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	env "github.com/robotalks/teensy.go/pkg/l1/env/connector"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

// CommandTimeout bounds waiting for the reply of a command.
var CommandTimeout = time.Second

// DiscoverTimeout bounds discovery.
var DiscoverTimeout = 5 * time.Second

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var errNotConnected = errors.New("not connected")

var (
	evalOnly    bool
	outputJSON  bool
	watchEvents bool

	commands = []*ishell.Cmd{&DiscoverCmd, &ConnectCmd, &DisconnectCmd, &WatchCmd}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluate the arguments only, no interactive shell")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON")
	flag.BoolVar(&watchEvents, "watch", watchEvents, "Print events from the connected controller")
}

// AddCmds adds commands to every Shell created later.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// Shell wraps an ishell.Shell with at most one controller session.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	WatchEvents bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

// Session is a connection to a controller with the loop receiving
// its replies and events.
type Session struct {
	Ref  l1.ControllerRef
	Conn l1.ControllerConn
	Loop *fx.Loop

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Shell from flags.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		WatchEvents: watchEvents,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// WithAutoConnect connects Config.Ref on Run if it's valid.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// ShellFrom gets the Shell in a command.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected guards command funcs needing a session.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(errNotConnected)
			return
		}
		fn(c)
	}
}

// FormatMessage formats msg as selected by OutputJSON.
func (s *Shell) FormatMessage(msg fx.Message) (string, error) {
	return FormatMessage(msg, s.OutputJSON)
}

// DoCommand sends msg to the connected controller and prints the reply.
func DoCommand(c *ishell.Context, msg fx.Message) error {
	err := doCommand(c, msg)
	if err != nil {
		c.Err(err)
	}
	return err
}

func doCommand(c *ishell.Context, msg fx.Message) error {
	s := ShellFrom(c)
	if s.Session == nil {
		return errNotConnected
	}
	ctx, cancel := context.WithTimeout(s.Session.ctx, CommandTimeout)
	defer cancel()
	reply, err := l1.Do(ctx, s.Session.Conn, msg)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no reply in %v", CommandTimeout)
	}
	if err != nil {
		return err
	}
	out, err := s.FormatMessage(reply)
	if err != nil {
		return err
	}
	c.Println(out)
	return nil
}

// DiscoverControllers lists registered controllers accepted by filter,
// or all when filter is nil.
func (s *Shell) DiscoverControllers(filter func(l1.ControllerInfo) bool) ([]l1.ControllerInfo, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), DiscoverTimeout)
	defer cancel()
	found, err := connector.Discover(ctx)
	if err != nil || filter == nil {
		return found, err
	}
	var accepted []l1.ControllerInfo
	for _, info := range found {
		if filter(info) {
			accepted = append(accepted, info)
		}
	}
	return accepted, nil
}

// SelectController discovers controllers and asks which one to use
// when there are several. It returns nil if none is found.
func (s *Shell) SelectController(filter func(l1.ControllerInfo) bool) (*l1.ControllerInfo, error) {
	found, err := s.DiscoverControllers(filter)
	switch {
	case err != nil:
		return nil, err
	case len(found) == 0:
		return nil, nil
	case len(found) == 1:
		return &found[0], nil
	case !s.Interactive:
		return nil, fmt.Errorf("%d controllers discovered, specify one", len(found))
	}
	choices := make([]string, len(found))
	for n, info := range found {
		choices[n] = FormatInfo(info)
	}
	return &found[s.Shell.MultiChoice(choices, "Which one to connect?")], nil
}

// Connect replaces the current session with one to ref.
func (s *Shell) Connect(ref l1.ControllerRef) error {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return err
	}
	sess := &Session{Ref: ref, Loop: fx.NewLoop()}
	sess.ctx, sess.cancel = context.WithCancel(context.Background())
	if sess.Conn, err = connector.Connect(sess.ctx, ref); err != nil {
		sess.cancel()
		return err
	}
	if adder, ok := sess.Conn.(fx.LoopAdder); ok {
		sess.Loop.Add(adder)
	}
	sess.Loop.AddController(fx.PrLvControl, fx.ControlFunc(s.printEvents))

	s.Disconnect()
	s.Session = sess
	go func() {
		if err := sess.Loop.Run(sess.ctx); err != nil && !errors.Is(err, context.Canceled) {
			glog.Errorf("session %s stopped: %v", ref.Name(), err)
		}
	}()
	s.Shell.SetPrompt(ref.Name() + " > ")
	return nil
}

// Disconnect ends the current session if any.
func (s *Shell) Disconnect() {
	sess := s.Session
	if sess == nil {
		return
	}
	s.Session = nil
	sess.cancel()
	if err := sess.Conn.Close(); err != nil {
		glog.Warningf("close session %s: %v", sess.Ref.Name(), err)
	}
	s.Shell.SetPrompt(unconnectedPrompt)
}

// printEvents drains events, printing them if WatchEvents is set.
func (s *Shell) printEvents(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		msg := mctx.CurrentMessage()
		if _, ok := msg.(msgs.SerializableMessage); !ok {
			return
		}
		mctx.MessageTaken()
		if !s.WatchEvents {
			return
		}
		if out, err := s.FormatMessage(msg); err != nil {
			glog.Warning(err)
		} else {
			s.Shell.Println(out)
		}
	}))
	return nil
}

// Run evaluates args, or runs interactively without args.
func (s *Shell) Run(args ...string) {
	if ref := s.Config.Ref; s.AutoConnect && ref.IsValid() {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", ref.Name())
		}
		if err := s.Connect(ref); err != nil {
			glog.Exitf("connect %s: %v", ref.Name(), err)
		}
	}
	switch {
	case len(args) > 0:
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
	case s.Interactive:
		s.Shell.Run()
	default:
		glog.Exit("command expected")
	}
}

// Main runs the shell from command line flags.
func Main() {
	flag.Parse()
	defer glog.Flush()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
