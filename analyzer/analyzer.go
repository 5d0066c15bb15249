// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analyzer drives a single-pin logic analyzer: capture
// sessions, the acquisition loop, UART monitoring and the dual-mode
// coordination of both on one pin.
//
// An Analyzer is not safe for concurrent use: every method is
// expected to be called from the goroutine running the acquisition
// loop, or under a lock shared with it.
package analyzer // import "github.com/go-lpc/sigcap/analyzer"

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/buffer"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/prefs"
	"github.com/go-lpc/sigcap/trigger"
	"github.com/go-lpc/sigcap/uart"
	"github.com/google/uuid"
)

// Analyzer owns the capture and monitoring state of one device.
type Analyzer struct {
	msg   log.MsgStream
	clk   hal.Clock
	pin   hal.Pin
	st    flash.Storage // nil when no storage is usable
	prefs *prefs.Store

	cfg  Config
	trig *trigger.Engine
	buf  *buffer.Manager
	uart *uart.Monitor
	log  *sysLog

	t0        uint32 // creation time, in ms
	capturing bool
	session   string
	primed    bool   // last holds the timestamp of a sample
	last      uint32 // timestamp of the last sample, in us
	dt        uint32 // sampling interval, in us
	dual      bool
	alerted   bool

	pinErrs uint64 // pin read errors of the current session
	pinErr  error  // last pin read error

	alert func(msg string)
}

// New creates an analyzer.
// Storage failures are not fatal: they are logged and the analyzer
// runs without flash-backed features.
func New(opts ...Option) *Analyzer {
	cfg := config{
		cfg:  DefaultConfig(),
		ucfg: uart.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.NewMsgStream("analyzer", log.LvlInfo, os.Stdout)
	}
	if cfg.clk == nil {
		cfg.clk = hal.NewSystemClock()
	}
	if cfg.pin == nil {
		cfg.pin = hal.PinFunc(func() bool { return false })
	}
	if cfg.mnt == nil {
		if m, ok := cfg.st.(flash.Mounter); ok {
			cfg.mnt = m
		}
	}

	a := &Analyzer{
		msg:   cfg.msg,
		clk:   cfg.clk,
		pin:   cfg.pin,
		st:    cfg.st,
		prefs: cfg.prefs,
		log:   newSysLog(MaxLogEntries),
		t0:    cfg.clk.Millis(),
	}

	if a.st != nil && cfg.mnt != nil {
		formatted, err := flash.Mount(cfg.mnt)
		switch {
		case err != nil:
			a.errorf("Flash unavailable: %v", err)
			a.st = nil
		case formatted:
			a.logf("Flash formatted and mounted")
		default:
			a.logf("Flash mounted")
		}
	}

	a.uart = uart.NewMonitor(cfg.port, cfg.dir, a.clk, a.newUartStore(), a.msg)
	a.uart.OnEntry(a.onUartEntry)

	ccfg, ucfg := cfg.cfg, cfg.ucfg
	if a.prefs != nil {
		ccfg = a.loadConfig(ccfg)
		ucfg = a.loadUartConfig(ucfg)
	}

	a.trig = trigger.New(trigger.None)
	a.buf = buffer.New(buffer.Config{}, a.st, a.msg)
	a.apply(ccfg)

	err := a.configureUart(ucfg)
	if err != nil {
		a.errorf("Could not configure UART: %v", err)
	}

	a.logf("Logic analyzer ready (%d Hz, GPIO pin %d, %v buffer)", a.cfg.SampleRate, a.cfg.Pin, a.cfg.Mode)
	return a
}

func (a *Analyzer) newUartStore() uart.Store {
	if a.st == nil {
		return uart.NewMemStore(uart.MaxEntries)
	}
	st, err := uart.NewFlashStore(a.st, uart.LogFile, uart.MaxFlashEntries)
	if err != nil {
		a.errorf("UART flash log unavailable, using memory: %v", err)
		return uart.NewMemStore(uart.MaxEntries)
	}
	return st
}

func (a *Analyzer) onUartEntry(e uart.Entry) {
	a.log.add(e.Millis, fmt.Sprintf("UART %v: %s", e.Dir, e.Data))
}

// OnAlert registers f to be called when a capture stops on its own or
// when a capture meets its first flash error.
func (a *Analyzer) OnAlert(f func(msg string)) { a.alert = f }

func (a *Analyzer) notify(msg string) {
	if a.alert != nil {
		a.alert(msg)
	}
}

// FlashAvailable reports whether a block storage is mounted.
func (a *Analyzer) FlashAvailable() bool { return a.st != nil }

// apply installs cfg, clamping invalid fields.
func (a *Analyzer) apply(cfg Config) {
	cfg, msgs := cfg.Clamp()
	for _, msg := range msgs {
		a.logf("%s", msg)
	}
	if cfg.Mode.NeedsFlash() && a.st == nil {
		a.logf("Flash unavailable: %v buffer mode falls back to %v", cfg.Mode, buffer.RAM)
		cfg.Mode = buffer.RAM
		if cfg.Capacity > buffer.DefaultCapacity {
			cfg.Capacity = buffer.DefaultCapacity
		}
	}

	a.cfg = cfg
	a.dt = cfg.Interval()
	a.trig.Reset(cfg.Trigger)
	a.buf.Reconfigure(buffer.Config{
		Mode:        cfg.Mode,
		Capacity:    cfg.Capacity,
		Compression: cfg.Compression,
		SampleRate:  cfg.SampleRate,
	})

	if a.dual && a.uart.Config().RX != int(cfg.Pin) {
		a.dual = false
		a.logf("Dual mode disabled: UART RX pin %d != capture GPIO pin %d", a.uart.Config().RX, cfg.Pin)
	}
}

func (a *Analyzer) Config() Config { return a.cfg }

// Configure replaces the capture configuration.
// A running capture is stopped first.
func (a *Analyzer) Configure(cfg Config) {
	if a.capturing {
		a.logf("Configuration changed while capturing: stopping capture")
		a.StopCapture()
	}
	a.apply(cfg)
	a.saveConfig()
	a.logf("Configuration updated: %d Hz, GPIO pin %d, trigger %v, %v buffer of %d, compression %v",
		a.cfg.SampleRate, a.cfg.Pin, a.cfg.Trigger, a.cfg.Mode, a.cfg.Capacity, a.cfg.Compression,
	)
}

func (a *Analyzer) SetSampleRate(rate uint32) {
	cfg := a.cfg
	cfg.SampleRate = rate
	a.Configure(cfg)
}

func (a *Analyzer) SetTriggerMode(mode trigger.Mode) {
	cfg := a.cfg
	cfg.Trigger = mode
	a.Configure(cfg)
}

func (a *Analyzer) SetPin(pin uint8) {
	cfg := a.cfg
	cfg.Pin = pin
	a.Configure(cfg)
}

func (a *Analyzer) SetBufferMode(mode buffer.Mode) {
	cfg := a.cfg
	cfg.Mode = mode
	a.Configure(cfg)
}

func (a *Analyzer) EnableCompression(kind compress.Kind) {
	cfg := a.cfg
	cfg.Compression = kind
	a.Configure(cfg)
}

func (a *Analyzer) IsCapturing() bool { return a.capturing }

// Session returns the identifier of the current or last capture.
func (a *Analyzer) Session() string { return a.session }

// StartCapture starts a new capture session.
// Samples of the previous session are discarded.
func (a *Analyzer) StartCapture() {
	if a.capturing {
		a.logf("Capture already running (session %s)", a.session)
		return
	}

	a.trig.Reset(a.cfg.Trigger)
	a.primed = false
	a.alerted = false
	a.pinErrs = 0
	a.pinErr = nil
	a.session = uuid.NewString()

	err := a.buf.Begin()
	if err != nil {
		a.errorf("Could not start %v buffer: %v", a.cfg.Mode, err)
	}

	a.capturing = true
	a.logf("Capture started: session %s, %d Hz, GPIO pin %d, trigger %v, %v buffer",
		a.session, a.cfg.SampleRate, a.cfg.Pin, a.cfg.Trigger, a.cfg.Mode,
	)
}

// StopCapture ends the current capture session.
// Flash-backed buffers are flushed and their capture file closed.
func (a *Analyzer) StopCapture() {
	if !a.capturing {
		return
	}
	a.capturing = false

	err := a.buf.Finish()
	if err != nil {
		a.errorf("Could not finish %v buffer: %v", a.cfg.Mode, err)
	}
	a.logf("Capture stopped: %d samples", a.buf.Usage())
}

func (a *Analyzer) autoStop() {
	msg := fmt.Sprintf("Buffer full (%d samples): capture stopped", a.buf.Usage())
	a.StopCapture()
	a.logf("%s", msg)
	a.notify(msg)
}

// Process runs one pass of the acquisition loop.
func (a *Analyzer) Process() {
	a.uart.Service(a.dual)
	a.sample()
}

func (a *Analyzer) sample() {
	if !a.capturing {
		return
	}

	now := a.clk.Micros()
	if a.primed && now-a.last < a.dt {
		return
	}
	a.primed = true
	a.last = now

	s := hal.Read(a.pin, a.clk)
	a.checkPin()
	armed := a.trig.Armed()
	if !a.trig.Evaluate(s.Value) {
		return
	}
	if !armed {
		a.logf("Trigger activated (%v) at %d us", a.cfg.Trigger, s.Timestamp)
	}

	err := a.buf.Record(s)
	switch {
	case errors.Is(err, buffer.ErrFull):
		a.autoStop()
		return
	case err != nil:
		a.log.add(a.clk.Millis(), fmt.Sprintf("Flash error: %v", err))
		if !a.alerted {
			a.alerted = true
			a.notify(fmt.Sprintf("Flash error during capture %s: %v", a.session, err))
		}
	}

	if a.buf.Full() {
		a.autoStop()
	}
}

// errPin is implemented by pins reporting their read errors.
type errPin interface {
	Err() error
}

// checkPin drains the read error of the pin, if any.
// Only the first error of a session goes to the system log.
func (a *Analyzer) checkPin() {
	p, ok := a.pin.(errPin)
	if !ok {
		return
	}
	err := p.Err()
	if err == nil {
		return
	}
	a.pinErrs++
	a.pinErr = err
	if a.pinErrs == 1 {
		a.errorf("Pin read error: %v", err)
		return
	}
	a.msg.Debugf("pin read error (#%d): %+v", a.pinErrs, err)
}

// BufferUsage returns the number of samples held by the buffer.
func (a *Analyzer) BufferUsage() uint32 { return a.buf.Usage() }

// ClearBuffer discards the captured samples.
func (a *Analyzer) ClearBuffer() {
	err := a.buf.Clear()
	if err != nil {
		a.errorf("Could not clear %v buffer: %v", a.cfg.Mode, err)
		return
	}
	a.logf("Buffer cleared")
}

func (a *Analyzer) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	a.msg.Infof("%s", msg)
	a.log.add(a.clk.Millis(), msg)
}

func (a *Analyzer) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	a.msg.Errorf("%s", msg)
	a.log.add(a.clk.Millis(), msg)
}
