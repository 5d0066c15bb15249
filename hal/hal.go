// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hal describes the hardware seen by the logic analyzer:
// the monitored pin, the microsecond clock and the UART peripheral.
package hal // import "github.com/go-lpc/sigcap/hal"

// Sample is one reading of the monitored pin.
type Sample struct {
	Timestamp uint32 // microseconds, wraps after ~71min.
	Value     bool
}

// Pin is a digital input.
type Pin interface {
	ReadPin() bool
}

// PinFunc adapts a function to the Pin interface.
type PinFunc func() bool

func (f PinFunc) ReadPin() bool { return f() }

// Clock is a free running counter.
type Clock interface {
	Micros() uint32
	Millis() uint32
}

// Read samples pin, timestamped with clk.
func Read(pin Pin, clk Clock) Sample {
	return Sample{
		Timestamp: clk.Micros(),
		Value:     pin.ReadPin(),
	}
}

// Line describes the framing of a UART line.
type Line struct {
	Baud     uint32
	DataBits uint8
	Parity   uint8 // 0: none, 1: odd, 2: even
	StopBits uint8
	RX       int
	TX       int // negative when the line is single-wire.
}

// Port is a UART peripheral.
type Port interface {
	Begin(line Line) error
	End() error

	// Available returns the number of bytes that can be read without blocking.
	Available() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

// Direction is the role of a pin.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (dir Direction) String() string {
	switch dir {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "unknown"
}

// PinDirector switches a pin between input and output.
// idle is the level driven by an output pin between frames.
type PinDirector interface {
	SetDirection(pin int, dir Direction, idle bool) error
}
