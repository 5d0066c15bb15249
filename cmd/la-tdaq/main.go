// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command la-tdaq starts a TDAQ process driving a logic analyzer.
//
// The analyzer samples a simulated square wave unless LA_FTDI_PID names
// the product id of a FTDI device in bit-bang mode. LA_FLASH names the
// directory backing flash buffer modes.
//
// Captures are published on the /samples output once they stop.
package main // import "github.com/go-lpc/sigcap/cmd/la-tdaq"

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/analyzer"
	"github.com/go-lpc/sigcap/daq"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/hal/ftdev"
)

func main() {
	cmd := flags.New()

	name := "la-tdaq"
	if len(cmd.Args) > 0 {
		name = cmd.Args[0]
	}

	node, cleanup, err := newNode(name, os.Getenv)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
	defer cleanup()

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", node.OnConfig)
	srv.CmdHandle("/init", node.OnInit)
	srv.CmdHandle("/reset", node.OnReset)
	srv.CmdHandle("/start", node.OnStart)
	srv.CmdHandle("/stop", node.OnStop)
	srv.CmdHandle("/quit", node.OnQuit)

	srv.OutputHandle("/samples", node.Samples)

	srv.RunHandle(node.Run)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

func newNode(name string, getenv func(string) string) (*daq.Node, func(), error) {
	var (
		clk     = hal.NewSystemClock()
		cleanup = func() {}
		opts    = []analyzer.Option{
			analyzer.WithLogger(tlog.NewMsgStream(name, tlog.LvlInfo, os.Stdout)),
			analyzer.WithClock(clk),
		}
	)

	if dir := getenv("LA_FLASH"); dir != "" {
		opts = append(opts, analyzer.WithStorage(flash.DirStorage{Root: dir}))
	}

	switch v := getenv("LA_FTDI_PID"); v {
	case "":
		opts = append(opts, analyzer.WithPin(hal.NewSignalPin(clk, 1000, 500)))
	default:
		pid, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid FTDI product id %q: %w", v, err)
		}
		pin, err := ftdev.OpenPin(0x0403, uint16(pid), 0)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open FTDI input: %w", err)
		}
		cleanup = func() { _ = pin.Close() }
		opts = append(opts, analyzer.WithPin(pin))
	}

	tick := 100 * time.Microsecond
	if v := getenv("LA_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("invalid acquisition tick %q: %w", v, err)
		}
		tick = d
	}

	dev := daq.NewDevice(analyzer.New(opts...))
	return daq.NewNode(dev, tick), cleanup, nil
}
