// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hal

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// MemPort is an in-memory UART peripheral.
// Bytes fed with Feed are read back by the monitor, bytes written
// by the monitor are retrieved with Sent.
type MemPort struct {
	mu   sync.Mutex
	open bool
	line Line
	rx   []byte
	tx   bytes.Buffer
	dirs []Direction
}

func (p *MemPort) Begin(line Line) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if line.Baud == 0 {
		return fmt.Errorf("hal: invalid baud rate")
	}
	p.line = line
	p.open = true
	return nil
}

func (p *MemPort) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

// Line returns the line settings of the last Begin.
func (p *MemPort) Line() Line {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line
}

// Open reports whether the port has been started.
func (p *MemPort) Open() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Feed queues bytes on the receive line.
func (p *MemPort) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, data...)
}

// Sent returns and clears the bytes written to the transmit line.
func (p *MemPort) Sent() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]byte(nil), p.tx.Bytes()...)
	p.tx.Reset()
	return out
}

// Directions returns the history of direction switches.
func (p *MemPort) Directions() []Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Direction(nil), p.dirs...)
}

func (p *MemPort) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0
	}
	return len(p.rx)
}

func (p *MemPort) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open || len(p.rx) == 0 {
		return 0, io.EOF
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b, nil
}

func (p *MemPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return 0, fmt.Errorf("hal: port closed")
	}
	return p.tx.Write(data)
}

func (p *MemPort) SetDirection(pin int, dir Direction, idle bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = append(p.dirs, dir)
	return nil
}

var (
	_ Port        = (*MemPort)(nil)
	_ PinDirector = (*MemPort)(nil)
)
