// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"sync"
	"time"
)

// SystemClock counts from its creation using the monotonic wall clock.
type SystemClock struct {
	t0 time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{t0: time.Now()}
}

func (clk *SystemClock) Micros() uint32 {
	return uint32(time.Since(clk.t0).Microseconds())
}

func (clk *SystemClock) Millis() uint32 {
	return uint32(time.Since(clk.t0).Milliseconds())
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu sync.Mutex
	us uint64
}

// Set sets the clock to us microseconds.
func (clk *ManualClock) Set(us uint32) {
	clk.mu.Lock()
	clk.us = uint64(us)
	clk.mu.Unlock()
}

// Advance moves the clock forward by d, rounded down to the microsecond.
func (clk *ManualClock) Advance(d time.Duration) {
	clk.mu.Lock()
	clk.us += uint64(d / time.Microsecond)
	clk.mu.Unlock()
}

func (clk *ManualClock) Micros() uint32 {
	clk.mu.Lock()
	defer clk.mu.Unlock()
	return uint32(clk.us)
}

func (clk *ManualClock) Millis() uint32 {
	clk.mu.Lock()
	defer clk.mu.Unlock()
	return uint32(clk.us / 1000)
}

var (
	_ Clock = (*SystemClock)(nil)
	_ Clock = (*ManualClock)(nil)
)
