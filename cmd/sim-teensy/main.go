package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"net"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/sim/mcu"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

var (
	device   string
	baud     = 9600
	listen   string
	mode     = vehicle.ModeManual
	accel    = mcu.DefaultAccel
	maxSpeed = mcu.DefaultMaxSpeed
	wiggleInputs   bool
)

func init() {
	flag.StringVar(&device, "device", device, "Serial device to serve, e.g. one end of a pty pair.")
	flag.IntVar(&baud, "baud", baud, "Baud rate.")
	flag.StringVar(&listen, "listen", listen, "Serve over TCP instead, e.g. :7700, connect with -device tcp://host:7700.")
	flag.Var(&mode, "mode", "Initial mode: manual or auto.")
	flag.Float64Var(&accel, "accel", accel, "Acceleration, 0 for immediate speed changes.")
	flag.Float64Var(&maxSpeed, "max-speed", maxSpeed, "Speed at full throttle.")
	flag.BoolVar(&wiggleInputs, "wiggle", wiggleInputs, "Wiggle RC inputs in manual mode.")
}

func newSimulator(conn io.ReadWriteCloser) *mcu.Simulator {
	sim := mcu.New(conn, mode)
	sim.MaxSpeed = maxSpeed
	sim.SetAccel(accel)
	return sim
}

// wiggle moves the RC inputs back and forth.
func wiggle(ctx context.Context, sim *mcu.Simulator) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	val, step := 0.0, 0.1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if val+step > 1 || val+step < -1 {
				step = -step
			}
			val += step
			sim.SetManual(val, -val)
		}
	}
}

func serve(ctx context.Context, conn io.ReadWriteCloser) error {
	sim := newSimulator(conn)
	if wiggleInputs {
		go wiggle(ctx, sim)
	}
	err := sim.Run(ctx)
	select {
	case <-sim.ShutdownReceived():
		glog.Info("shutdown received")
	default:
	}
	return err
}

func serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	glog.Infof("listening on %s", ln.Addr())
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.Infof("host connected from %s", conn.RemoteAddr())
			// one host at a time, like a serial port.
			if err := serve(ctx, conn); err != nil {
				glog.Warningf("host %s: %v", conn.RemoteAddr(), err)
			}
		}
	})
}

func serveDevice(ctx context.Context) error {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return err
	}
	glog.Infof("serving %s", device)
	return serve(ctx, port)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx := fx.NewRunner().HandleSignals().Context
	var err error
	switch {
	case listen != "":
		err = serveTCP(ctx)
	case device != "":
		err = serveDevice(ctx)
	default:
		glog.Exit("-device or -listen required")
	}
	if err != nil && ctx.Err() == nil {
		glog.Exit(err)
	}
}
