// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

// SignalPin is a simulated input producing a square wave.
type SignalPin struct {
	clk    Clock
	t0     uint32
	period uint32 // in microseconds
	high   uint32 // in microseconds
}

// NewSignalPin returns a pin high during the first high microseconds
// of every period, driven by clk.
func NewSignalPin(clk Clock, period, high uint32) *SignalPin {
	if period == 0 {
		period = 1000000
	}
	if high > period {
		high = period
	}
	return &SignalPin{
		clk:    clk,
		t0:     clk.Micros(),
		period: period,
		high:   high,
	}
}

func (p *SignalPin) ReadPin() bool {
	elapsed := p.clk.Micros() - p.t0
	return elapsed%p.period < p.high
}

// SeqPin replays a fixed sequence of levels, then holds the last one.
type SeqPin struct {
	levels []bool
	i      int
}

func NewSeqPin(levels ...bool) *SeqPin {
	return &SeqPin{levels: levels}
}

func (p *SeqPin) ReadPin() bool {
	if len(p.levels) == 0 {
		return false
	}
	v := p.levels[p.i]
	if p.i < len(p.levels)-1 {
		p.i++
	}
	return v
}

var (
	_ Pin = (*SignalPin)(nil)
	_ Pin = (*SeqPin)(nil)
	_ Pin = PinFunc(nil)
)
