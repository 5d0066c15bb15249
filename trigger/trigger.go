// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trigger implements the edge and level detector gating
// the recording of samples.
package trigger // import "github.com/go-lpc/sigcap/trigger"

import (
	"fmt"
	"strings"
)

// Mode is a trigger condition.
type Mode uint8

const (
	None Mode = iota
	Rising
	Falling
	BothEdges
	High
	Low
)

var modeNames = [...]string{
	None:      "NONE",
	Rising:    "RISING",
	Falling:   "FALLING",
	BothEdges: "BOTH_EDGES",
	High:      "HIGH",
	Low:       "LOW",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return int(m) < len(modeNames) }

// ParseMode parses a mode name, case insensitive.
// "both" and "edges" are accepted for BOTH_EDGES.
func ParseMode(s string) (Mode, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "BOTH", "EDGES", "BOTH-EDGES":
		return BothEdges, nil
	}
	for i, name := range modeNames {
		if v == name {
			return Mode(i), nil
		}
	}
	return None, fmt.Errorf("trigger: invalid mode %q", s)
}

func (m Mode) edge() bool {
	return m == Rising || m == Falling || m == BothEdges
}

// Engine tracks the trigger condition over a stream of pin levels.
// Once armed, an engine stays armed until Reset.
type Engine struct {
	mode   Mode
	armed  bool
	last   bool
	primed bool // last holds a real pin level
}

// New returns an engine for mode, reset as for a new capture.
func New(mode Mode) *Engine {
	e := &Engine{}
	e.Reset(mode)
	return e
}

// Reset starts a new capture with mode.
// NONE arms immediately, every other mode starts disarmed.
func (e *Engine) Reset(mode Mode) {
	e.mode = mode
	e.armed = mode == None
	e.primed = false
}

func (e *Engine) Mode() Mode  { return e.mode }
func (e *Engine) Armed() bool { return e.armed }

// Evaluate feeds the current pin level and reports whether the
// engine is armed.
// Edge conditions need a previous level: the first level after a
// Reset only seeds it.
func (e *Engine) Evaluate(v bool) bool {
	if e.armed {
		e.last = v
		return true
	}
	if e.mode.edge() && !e.primed {
		e.primed = true
		e.last = v
		return false
	}

	var fire bool
	switch e.mode {
	case None:
		fire = true
	case Rising:
		fire = !e.last && v
	case Falling:
		fire = e.last && !v
	case BothEdges:
		fire = e.last != v
	case High:
		fire = v
	case Low:
		fire = !v
	}
	e.last = v
	e.primed = true
	e.armed = fire
	return fire
}
