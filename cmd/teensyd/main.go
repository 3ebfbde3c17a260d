package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l1"
	env "github.com/robotalks/teensy.go/pkg/l1/env/controller"
	"github.com/robotalks/teensy.go/pkg/teensy"
)

func init() {
	env.SetControllerType(teensy.ControllerType, l1.ControllerMeta{Description: "Teensy vehicle controller"})
	env.SetupFlags()
	teensy.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	runner := fx.NewRunner().HandleSignals()
	ctx := runner.Context
	conf, err := teensy.NewConfig()
	if err != nil {
		glog.Exit(err)
	}
	envConf := env.NewConfig()
	envConf.AddLabel("device", conf.Serial.Device)
	e := envConf.MustNewEnv()
	ctl, err := conf.NewController(ctx, e)
	if err != nil {
		glog.Exit(err)
	}

	loop := fx.NewLoop()
	loop.Interval = conf.LoopInterval
	err = runner.Go(loop.Add(e, ctl)).Wait()
	glog.Infof("loop ran %d iterations, %d overran", loop.Iterations(), loop.Overruns())
	if cerr := ctl.Close(); cerr != nil {
		glog.Warningf("close: %v", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, link.ErrShutdown) {
		glog.Exitf("stopped: %v", err)
	}
	glog.Infof("stopped: %v", err)
}
