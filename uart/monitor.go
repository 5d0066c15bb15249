// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"fmt"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/hal"
)

const (
	MaxEntryLen = 300 // longest stored entry
	maxPoll     = 512 // bytes drained per Service call
)

// Direction of a logged line.
type Direction uint8

const (
	RX Direction = iota
	TX
)

func (dir Direction) String() string {
	switch dir {
	case RX:
		return "RX"
	case TX:
		return "TX"
	}
	return fmt.Sprintf("Direction(%d)", uint8(dir))
}

// Entry is a logged UART line.
type Entry struct {
	Millis uint32
	Dir    Direction
	Dual   bool // received through the dual-mode path
	Data   string
}

// String formats e as stored in the log, e.g. "1234: [UART RX] OK".
func (e Entry) String() string {
	tag := ""
	if e.Dual {
		tag = "[DUAL] "
	}
	line := fmt.Sprintf("%d: [UART %v] %s%s", e.Millis, e.Dir, tag, e.Data)
	if len(line) > MaxEntryLen {
		line = line[:MaxEntryLen]
	}
	return line
}

// Monitor polls a UART port and logs the lines it receives.
type Monitor struct {
	msg   log.MsgStream
	clk   hal.Clock
	port  hal.Port
	dir   hal.PinDirector
	store Store

	cfg     Config
	enabled bool
	rx      *Framer
	hd      *HalfDuplex // nil on full-duplex lines

	bytesRx      uint64
	bytesTx      uint64
	lastActivity uint32 // in ms

	onEntry func(Entry)
}

// NewMonitor creates a disabled monitor reading from port.
// dir switches the line direction of half-duplex lines; it may be nil.
func NewMonitor(port hal.Port, dir hal.PinDirector, clk hal.Clock, store Store, msg log.MsgStream) *Monitor {
	if store == nil {
		store = NewMemStore(MaxEntries)
	}
	return &Monitor{
		msg:   msg,
		clk:   clk,
		port:  port,
		dir:   dir,
		store: store,
		cfg:   DefaultConfig(),
		rx:    NewFramer(),
	}
}

// OnEntry registers f to be called for every logged entry.
func (m *Monitor) OnEntry(f func(Entry)) { m.onEntry = f }

func (m *Monitor) Config() Config { return m.cfg }
func (m *Monitor) Enabled() bool  { return m.enabled }
func (m *Monitor) Store() Store   { return m.store }

// Configure sets the line configuration, clamping invalid fields.
// An enabled monitor is restarted with the new configuration.
func (m *Monitor) Configure(cfg Config) error {
	cfg, msgs := cfg.Clamp()
	for _, msg := range msgs {
		m.msg.Infof("%s", msg)
	}
	m.cfg = cfg
	m.msg.Infof("UART configured: %v %v duplex, rx=%d tx=%d", cfg, cfg.Duplex, cfg.RX, cfg.TX)

	if !m.enabled {
		return nil
	}
	err := m.Disable()
	if err != nil {
		return err
	}
	return m.Enable()
}

// Enable starts the port and monitoring.
func (m *Monitor) Enable() error {
	if m.port == nil {
		return fmt.Errorf("uart: no port")
	}
	err := m.port.Begin(m.cfg.Line())
	if err != nil {
		return fmt.Errorf("uart: could not start port: %w", err)
	}

	m.rx.Reset()
	m.hd = nil
	if m.cfg.Duplex == Half {
		m.hd = NewHalfDuplex(m.dir, m.cfg.RX)
		if m.dir != nil {
			err = m.dir.SetDirection(m.cfg.RX, hal.Input, true)
			if err != nil {
				_ = m.port.End()
				return fmt.Errorf("uart: could not switch pin %d to RX: %w", m.cfg.RX, err)
			}
		}
	}
	m.enabled = true
	m.lastActivity = m.clk.Millis()
	m.msg.Infof("UART monitoring enabled (%v)", m.cfg)
	return nil
}

// Disable stops monitoring. A partial line is discarded.
func (m *Monitor) Disable() error {
	if !m.enabled {
		return nil
	}
	m.enabled = false
	m.rx.Reset()
	m.hd = nil
	err := m.port.End()
	if err != nil {
		return fmt.Errorf("uart: could not stop port: %w", err)
	}
	m.msg.Infof("UART monitoring disabled")
	return nil
}

// Poll services the line once.
func (m *Monitor) Poll() { m.Service(false) }

// Service drains the available bytes through the line framer.
// dual tags the produced entries as coming from the dual-mode path.
func (m *Monitor) Service(dual bool) {
	if !m.enabled {
		return
	}
	now := m.clk.Millis()

	if m.hd != nil {
		cmd, sent, err := m.hd.Step(now, m.port)
		if err != nil {
			m.msg.Errorf("half-duplex: %+v", err)
		}
		if sent {
			m.bytesTx += uint64(len(cmd) + 2)
			m.lastActivity = now
			m.emit(Entry{Millis: now, Dir: TX, Data: cmd})
		}
		if m.hd.State() == StateTX {
			return
		}
	}

	for i := 0; i < maxPoll && m.port.Available() > 0; i++ {
		b, err := m.port.ReadByte()
		if err != nil {
			break
		}
		m.bytesRx++
		m.lastActivity = now
		if line, ok := m.rx.Feed(b, now); ok {
			m.emit(Entry{Millis: now, Dir: RX, Dual: dual, Data: line})
		}
	}

	if line, ok := m.rx.Poll(now); ok {
		m.emit(Entry{Millis: now, Dir: RX, Dual: dual, Data: line})
	}
}

func (m *Monitor) emit(e Entry) {
	err := m.store.Add(e.String())
	if err != nil {
		m.msg.Errorf("could not store UART entry: %+v", err)
	}
	if m.onEntry != nil {
		m.onEntry(e)
	}
}

// Send queues cmd for transmission on a half-duplex line.
func (m *Monitor) Send(cmd string) error {
	switch {
	case !m.enabled:
		return ErrDisabled
	case m.hd == nil:
		return ErrFullDuplex
	}
	return m.hd.Queue(cmd)
}

// Release ends the current transmission early on a half-duplex line.
func (m *Monitor) Release() {
	if m.hd != nil {
		m.hd.Release()
	}
}

// LineState returns the role of the line.
func (m *Monitor) LineState() State {
	if m.hd == nil {
		return StateRX
	}
	return m.hd.State()
}

func (m *Monitor) Lines() ([]string, error) { return m.store.Lines() }

// Clear empties the log.
func (m *Monitor) Clear() error {
	m.rx.Reset()
	return m.store.Clear()
}

// Compact evicts the oldest entries of the log.
func (m *Monitor) Compact() (int, error) { return m.store.Compact() }

// Counters reports the traffic seen by the monitor.
type Counters struct {
	BytesReceived uint64 `json:"bytes_received"`
	BytesSent     uint64 `json:"bytes_sent"`
	LastActivity  uint32 `json:"last_activity"`
}

func (m *Monitor) Counters() Counters {
	return Counters{
		BytesReceived: m.bytesRx,
		BytesSent:     m.bytesTx,
		LastActivity:  m.lastActivity,
	}
}

// Stats describes the log store.
type Stats struct {
	Count       int    `json:"count"`
	MemoryUsage int    `json:"memory_usage"`
	BufferFull  bool   `json:"buffer_full"`
	MaxEntries  int    `json:"max_entries"`
	StorageType string `json:"storage_type"`
}

func (m *Monitor) Stats() Stats {
	return Stats{
		Count:       m.store.Len(),
		MemoryUsage: m.store.Size(),
		BufferFull:  m.store.Len() >= m.store.Cap(),
		MaxEntries:  m.store.Cap(),
		StorageType: m.store.Kind(),
	}
}
