// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"github.com/go-lpc/sigcap/buffer"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/trigger"
	"github.com/go-lpc/sigcap/uart"
)

// Namespace is the preferences namespace of the analyzer.
const Namespace = "logic_analyzer"

func (a *Analyzer) loadConfig(def Config) Config {
	p := a.prefs
	cfg := Config{
		SampleRate:  p.U32("sample_rate", def.SampleRate),
		Pin:         p.U8("gpio_pin", def.Pin),
		Trigger:     trigger.Mode(p.U8("trigger_mode", uint8(def.Trigger))),
		Mode:        buffer.Mode(p.U8("buffer_mode", uint8(def.Mode))),
		Capacity:    p.U32("buffer_size", def.Capacity),
		PreTrigger:  p.U8("pre_trigger", def.PreTrigger),
		Compression: compress.Kind(p.U8("compression", uint8(def.Compression))),
	}
	if err := p.Err(); err != nil {
		a.errorf("Could not load capture configuration: %v", err)
	}
	return cfg
}

func (a *Analyzer) saveConfig() {
	p := a.prefs
	if p == nil {
		return
	}
	for _, err := range []error{
		p.PutU32("sample_rate", a.cfg.SampleRate),
		p.PutU8("gpio_pin", a.cfg.Pin),
		p.PutU8("trigger_mode", uint8(a.cfg.Trigger)),
		p.PutU8("buffer_mode", uint8(a.cfg.Mode)),
		p.PutU32("buffer_size", a.cfg.Capacity),
		p.PutU8("pre_trigger", a.cfg.PreTrigger),
		p.PutU8("compression", uint8(a.cfg.Compression)),
	} {
		if err != nil {
			a.errorf("Could not save capture configuration: %v", err)
			return
		}
	}
}

func (a *Analyzer) loadUartConfig(def uart.Config) uart.Config {
	p := a.prefs
	cfg := uart.Config{
		Baud:     p.U32("uart_baud", def.Baud),
		DataBits: p.U8("uart_bits", def.DataBits),
		Parity:   uart.Parity(p.U8("uart_parity", uint8(def.Parity))),
		StopBits: p.U8("uart_stop", def.StopBits),
		RX:       p.Int("uart_rx", def.RX),
		TX:       p.Int("uart_tx", def.TX),
		Duplex:   uart.Duplex(p.U8("uart_duplex", uint8(def.Duplex))),
	}
	if err := p.Err(); err != nil {
		a.errorf("Could not load UART configuration: %v", err)
	}
	return cfg
}

func (a *Analyzer) saveUartConfig() {
	p := a.prefs
	if p == nil {
		return
	}
	cfg := a.uart.Config()
	for _, err := range []error{
		p.PutU32("uart_baud", cfg.Baud),
		p.PutU8("uart_bits", cfg.DataBits),
		p.PutU8("uart_parity", uint8(cfg.Parity)),
		p.PutU8("uart_stop", cfg.StopBits),
		p.PutInt("uart_rx", cfg.RX),
		p.PutInt("uart_tx", cfg.TX),
		p.PutU8("uart_duplex", uint8(cfg.Duplex)),
	} {
		if err != nil {
			a.errorf("Could not save UART configuration: %v", err)
			return
		}
	}
}
