// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uart monitors a UART line: received bytes are framed into
// log lines, and commands can be sent on single-wire lines.
package uart // import "github.com/go-lpc/sigcap/uart"

import (
	"fmt"
	"strings"

	"github.com/go-lpc/sigcap/hal"
)

// Parity of a UART frame.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "None"
	case ParityOdd:
		return "Odd"
	case ParityEven:
		return "Even"
	}
	return fmt.Sprintf("Parity(%d)", uint8(p))
}

func (p Parity) letter() string {
	switch p {
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	}
	return "N"
}

// Duplex tells whether a line has separate RX and TX wires.
type Duplex uint8

const (
	Full Duplex = iota
	Half
)

func (d Duplex) String() string {
	switch d {
	case Full:
		return "FULL"
	case Half:
		return "HALF"
	}
	return fmt.Sprintf("Duplex(%d)", uint8(d))
}

func ParseDuplex(s string) (Duplex, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FULL":
		return Full, nil
	case "HALF":
		return Half, nil
	}
	return Full, fmt.Errorf("uart: invalid duplex mode %q", s)
}

const (
	MinBaud = 300
	MaxBaud = 5000000
	MaxPin  = 48

	NoPin = -1
)

// Config describes a monitored UART line.
type Config struct {
	Baud     uint32 `json:"baudrate"`
	DataBits uint8  `json:"data_bits"`
	Parity   Parity `json:"parity"`
	StopBits uint8  `json:"stop_bits"`
	RX       int    `json:"rx_pin"`
	TX       int    `json:"tx_pin"` // NoPin on single-wire lines.
	Duplex   Duplex `json:"duplex"`
}

func DefaultConfig() Config {
	return Config{
		Baud:     115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
		RX:       43,
		TX:       44,
		Duplex:   Full,
	}
}

// Clamp brings every field of cfg within its valid range.
// It returns the clamped configuration and a description of each
// modified field.
func (cfg Config) Clamp() (Config, []string) {
	var msgs []string
	clamp := func(name string, v, lo, hi int64) int64 {
		switch {
		case v < lo:
			msgs = append(msgs, fmt.Sprintf("UART %s %d clamped to %d", name, v, lo))
			return lo
		case v > hi:
			msgs = append(msgs, fmt.Sprintf("UART %s %d clamped to %d", name, v, hi))
			return hi
		}
		return v
	}

	cfg.Baud = uint32(clamp("baud rate", int64(cfg.Baud), MinBaud, MaxBaud))
	cfg.DataBits = uint8(clamp("data bits", int64(cfg.DataBits), 5, 8))
	cfg.StopBits = uint8(clamp("stop bits", int64(cfg.StopBits), 1, 2))
	cfg.Parity = Parity(clamp("parity", int64(cfg.Parity), int64(ParityNone), int64(ParityEven)))
	cfg.RX = int(clamp("rx pin", int64(cfg.RX), 0, MaxPin))
	cfg.Duplex = Duplex(clamp("duplex mode", int64(cfg.Duplex), int64(Full), int64(Half)))

	switch cfg.Duplex {
	case Half:
		if cfg.TX != NoPin {
			msgs = append(msgs, fmt.Sprintf("UART tx pin %d ignored on a half-duplex line", cfg.TX))
		}
		cfg.TX = NoPin
	default:
		cfg.TX = int(clamp("tx pin", int64(cfg.TX), 0, MaxPin))
	}
	return cfg, msgs
}

// Line returns the framing of the line.
func (cfg Config) Line() hal.Line {
	return hal.Line{
		Baud:     cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   uint8(cfg.Parity),
		StopBits: cfg.StopBits,
		RX:       cfg.RX,
		TX:       cfg.TX,
	}
}

func (cfg Config) String() string {
	return fmt.Sprintf("%d %d%s%d", cfg.Baud, cfg.DataBits, cfg.Parity.letter(), cfg.StopBits)
}
