// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/sigcap/hal"
)

// TXTimeout is the time, in ms, a single-wire line stays in TX mode
// after a command was sent.
const TXTimeout = 100

var (
	ErrBusy       = errors.New("uart: line busy")
	ErrFullDuplex = errors.New("uart: commands are not supported on full-duplex lines")
	ErrDisabled   = errors.New("uart: monitoring disabled")
)

// State is the role of a single-wire line.
type State uint8

const (
	StateRX State = iota
	StateTX
)

func (s State) String() string {
	switch s {
	case StateRX:
		return "RX"
	case StateTX:
		return "TX"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// HalfDuplex drives the turn-taking of a single-wire line.
//
// Entering TX switches the pin to an idle-high output; leaving TX
// switches it back to an input. At most one command waits to be sent.
type HalfDuplex struct {
	dir hal.PinDirector
	pin int

	state   State
	cmd     string
	queued  bool
	release bool   // switch back to RX requested
	since   uint32 // time TX was entered, in ms
	timeout uint32
}

func NewHalfDuplex(dir hal.PinDirector, pin int) *HalfDuplex {
	return &HalfDuplex{
		dir:     dir,
		pin:     pin,
		timeout: TXTimeout,
	}
}

func (hd *HalfDuplex) State() State { return hd.state }

// Busy reports whether a command is queued or being sent.
func (hd *HalfDuplex) Busy() bool { return hd.queued || hd.state == StateTX }

// Queue schedules cmd for transmission.
func (hd *HalfDuplex) Queue(cmd string) error {
	if hd.Busy() {
		return ErrBusy
	}
	hd.cmd = cmd
	hd.queued = true
	return nil
}

// Release requests an early switch back to RX.
func (hd *HalfDuplex) Release() {
	if hd.state == StateTX {
		hd.release = true
	}
}

// Step advances the state machine at now (in ms).
// It returns the command written to w, if any.
func (hd *HalfDuplex) Step(now uint32, w io.Writer) (string, bool, error) {
	switch hd.state {
	case StateRX:
		if !hd.queued {
			return "", false, nil
		}
		cmd := hd.cmd
		hd.queued = false
		hd.cmd = ""

		err := hd.enterTX(now)
		if err != nil {
			return "", false, err
		}
		_, err = w.Write([]byte(cmd + "\r\n"))
		if err != nil {
			return "", false, fmt.Errorf("uart: could not send %q: %w", cmd, err)
		}
		return cmd, true, nil

	case StateTX:
		if hd.release || now-hd.since >= hd.timeout {
			return "", false, hd.exitTX()
		}
	}
	return "", false, nil
}

func (hd *HalfDuplex) enterTX(now uint32) error {
	if hd.dir != nil {
		err := hd.dir.SetDirection(hd.pin, hal.Output, true)
		if err != nil {
			return fmt.Errorf("uart: could not switch pin %d to TX: %w", hd.pin, err)
		}
	}
	hd.state = StateTX
	hd.since = now
	hd.release = false
	return nil
}

func (hd *HalfDuplex) exitTX() error {
	hd.state = StateRX
	hd.release = false
	if hd.dir != nil {
		err := hd.dir.SetDirection(hd.pin, hal.Input, true)
		if err != nil {
			return fmt.Errorf("uart: could not switch pin %d to RX: %w", hd.pin, err)
		}
	}
	return nil
}
