// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/prefs"
	"github.com/go-lpc/sigcap/uart"
)

type config struct {
	msg   log.MsgStream
	clk   hal.Clock
	pin   hal.Pin
	st    flash.Storage
	mnt   flash.Mounter
	prefs *prefs.Store
	port  hal.Port
	dir   hal.PinDirector
	cfg   Config
	ucfg  uart.Config
}

// Option configures an Analyzer.
type Option func(*config)

func WithLogger(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

func WithClock(clk hal.Clock) Option {
	return func(cfg *config) {
		cfg.clk = clk
	}
}

// WithPin sets the sampled input.
func WithPin(pin hal.Pin) Option {
	return func(cfg *config) {
		cfg.pin = pin
	}
}

// WithStorage sets the block storage backing flash buffer modes and
// the UART flash log.
func WithStorage(st flash.Storage) Option {
	return func(cfg *config) {
		cfg.st = st
	}
}

// WithMounter sets the storage to mount at start-up.
// A storage that can not be mounted is disabled.
func WithMounter(m flash.Mounter) Option {
	return func(cfg *config) {
		cfg.mnt = m
	}
}

// WithPrefs sets the store the configurations are loaded from and
// saved to.
func WithPrefs(p *prefs.Store) Option {
	return func(cfg *config) {
		cfg.prefs = p
	}
}

func WithPort(port hal.Port) Option {
	return func(cfg *config) {
		cfg.port = port
	}
}

// WithDirector sets the pin driver used to turn half-duplex lines.
func WithDirector(dir hal.PinDirector) Option {
	return func(cfg *config) {
		cfg.dir = dir
	}
}

// WithConfig sets the capture configuration used when no preference
// is stored.
func WithConfig(c Config) Option {
	return func(cfg *config) {
		cfg.cfg = c
	}
}

// WithUartConfig sets the UART configuration used when no preference
// is stored.
func WithUartConfig(c uart.Config) Option {
	return func(cfg *config) {
		cfg.ucfg = c
	}
}
