// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buffer routes acquired samples to the active storage
// strategy: RAM ring, flash log, flash streaming or compressed records.
package buffer // import "github.com/go-lpc/sigcap/buffer"

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
)

// Mode is a buffering strategy.
type Mode uint8

const (
	RAM Mode = iota
	Flash
	Streaming
	Compressed
)

var modeNames = [...]string{
	RAM:        "RAM",
	Flash:      "FLASH",
	Streaming:  "STREAMING",
	Compressed: "COMPRESSED",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func (m Mode) Valid() bool { return int(m) < len(modeNames) }

// NeedsFlash reports whether m writes to the block storage.
func (m Mode) NeedsFlash() bool { return m == Flash || m == Streaming }

func ParseMode(s string) (Mode, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range modeNames {
		if v == name {
			return Mode(i), nil
		}
	}
	return RAM, fmt.Errorf("buffer: invalid mode %q", s)
}

// ErrFull is returned when recording into a full buffer.
var ErrFull = errors.New("buffer: full")

const (
	DefaultCapacity = 16384
	DefaultFile     = "capture.bin"
	StreamEvery     = 256 // samples between two streaming checkpoints
)

// Config describes a buffer.
type Config struct {
	Mode Mode
	// Capacity is the number of slots of the RAM ring, or the maximum
	// number of samples of the other modes.
	Capacity    uint32
	Compression compress.Kind
	SampleRate  uint32
	File        string // capture file on the block storage
	StreamEvery int
}

func (cfg *Config) defaults() {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.File == "" {
		cfg.File = DefaultFile
	}
	if cfg.StreamEvery <= 0 {
		cfg.StreamEvery = StreamEvery
	}
	if cfg.Mode == Compressed && cfg.Compression == compress.None {
		cfg.Compression = compress.Hybrid
	}
}

func (cfg Config) interval() uint32 {
	if cfg.SampleRate == 0 || cfg.SampleRate > 1000000 {
		return 1
	}
	return 1000000 / cfg.SampleRate
}

type strategy interface {
	begin() error
	record(s hal.Sample) error
	usage() uint32
	full() bool
	clear() error
	flush() error
	finish() error
	samples() ([]hal.Sample, error)
}
