// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq exposes a logic analyzer to run-control clients: a
// JSON control server, a tdaq process and the acquisition loop.
package daq // import "github.com/go-lpc/sigcap/daq"

import (
	"context"
	"sync"
	"time"

	"github.com/go-lpc/sigcap/analyzer"
)

// Device serialises the accesses to an analyzer made by the
// acquisition loop and by control clients.
type Device struct {
	mu  sync.Mutex
	ana *analyzer.Analyzer
}

func NewDevice(a *analyzer.Analyzer) *Device {
	return &Device{ana: a}
}

// Do runs f with exclusive access to the analyzer.
func (dev *Device) Do(f func(a *analyzer.Analyzer) error) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return f(dev.ana)
}

// Process runs one pass of the acquisition loop.
func (dev *Device) Process() {
	dev.mu.Lock()
	dev.ana.Process()
	dev.mu.Unlock()
}

// Loop runs the acquisition loop of dev every tick, until ctx is done.
func Loop(ctx context.Context, dev *Device, tick time.Duration) error {
	tck := time.NewTicker(tick)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tck.C:
			dev.Process()
		}
	}
}
