// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/sigcap/analyzer"
)

// Node drives an analyzer from tdaq run-control commands and
// publishes every finished capture on its /samples output.
type Node struct {
	dev  *Device
	tick time.Duration

	data      chan []byte
	capturing bool // capture state seen by the run loop
}

func NewNode(dev *Device, tick time.Duration) *Node {
	return &Node{
		dev:  dev,
		tick: tick,
		data: make(chan []byte, 16),
	}
}

// publish queues the current capture. It must be called under the
// device lock.
func (node *Node) publish(ctx tdaq.Context, a *analyzer.Analyzer) error {
	smpls, err := a.Samples()
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	err = EncodeCapture(buf, Capture{
		Session:    a.Session(),
		SampleRate: a.Config().SampleRate,
		Samples:    smpls,
	})
	if err != nil {
		return err
	}
	select {
	case node.data <- buf.Bytes():
		ctx.Msg.Infof("published capture %s (%d samples)", a.Session(), len(smpls))
	default:
		ctx.Msg.Errorf("output queue full: capture %s dropped", a.Session())
	}
	return nil
}

func (node *Node) drain() {
	for {
		select {
		case <-node.data:
		default:
			return
		}
	}
}

func (node *Node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) == 0 {
		return nil
	}
	cfg, err := DecodeConfig(bytes.NewReader(req.Body))
	if err != nil {
		ctx.Msg.Errorf("could not decode config: %+v", err)
		return err
	}
	return node.dev.Do(func(a *analyzer.Analyzer) error {
		a.Configure(cfg)
		node.capturing = false
		return nil
	})
}

func (node *Node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	node.drain()
	return node.dev.Do(func(a *analyzer.Analyzer) error {
		a.ClearBuffer()
		return nil
	})
}

func (node *Node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	err := node.dev.Do(func(a *analyzer.Analyzer) error {
		a.StopCapture()
		a.ClearBuffer()
		node.capturing = false
		return nil
	})
	node.drain()
	return err
}

func (node *Node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return node.dev.Do(func(a *analyzer.Analyzer) error {
		a.StartCapture()
		node.capturing = a.IsCapturing()
		return nil
	})
}

func (node *Node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return node.dev.Do(func(a *analyzer.Analyzer) error {
		if !node.capturing {
			return nil
		}
		a.StopCapture()
		node.capturing = false
		err := node.publish(ctx, a)
		if err != nil {
			return fmt.Errorf("daq: could not publish capture: %w", err)
		}
		return nil
	})
}

func (node *Node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return node.dev.Do(func(a *analyzer.Analyzer) error {
		a.StopCapture()
		node.capturing = false
		if a.UartMonitoring() {
			return a.DisableUartMonitoring()
		}
		return nil
	})
}

// Samples sends the next finished capture.
func (node *Node) Samples(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-node.data:
		dst.Body = data
	}
	return nil
}

// step runs one pass of the acquisition loop and publishes captures
// that stopped on their own.
func (node *Node) step(ctx tdaq.Context) {
	_ = node.dev.Do(func(a *analyzer.Analyzer) error {
		a.Process()
		if node.capturing && !a.IsCapturing() {
			node.capturing = false
			err := node.publish(ctx, a)
			if err != nil {
				ctx.Msg.Errorf("could not publish capture: %+v", err)
			}
		}
		return nil
	})
}

// Run runs the acquisition loop until the run-control context is done.
func (node *Node) Run(ctx tdaq.Context) error {
	tck := time.NewTicker(node.tick)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tck.C:
			node.step(ctx)
		}
	}
}
