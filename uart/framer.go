// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"fmt"
)

const (
	MaxLineLen  = 200  // longest line before a forced flush
	LineTimeout = 1000 // idle time, in ms, before a partial line is flushed
)

// Framer splits a byte stream into lines.
//
// Printable ASCII bytes are kept, other bytes are hex-escaped.
// CR and LF end the current line; lines longer than MaxLineLen are
// flushed with a " [TRUNCATED]" marker and partial lines idle for
// more than LineTimeout are flushed with a " [TIMEOUT]" marker.
type Framer struct {
	buf     []byte
	max     int
	timeout uint32
	last    uint32 // time of the last byte, in ms
}

func NewFramer() *Framer {
	return &Framer{
		buf:     make([]byte, 0, MaxLineLen+8),
		max:     MaxLineLen,
		timeout: LineTimeout,
	}
}

// Feed appends b, received at now (in ms).
// It returns the completed line, if any.
func (f *Framer) Feed(b byte, now uint32) (string, bool) {
	f.last = now
	switch {
	case b == '\r' || b == '\n':
		if len(f.buf) == 0 {
			return "", false
		}
		return f.take(""), true
	case b >= 32 && b <= 126:
		f.buf = append(f.buf, b)
	default:
		f.buf = append(f.buf, fmt.Sprintf("[0x%X]", b)...)
	}

	if len(f.buf) > f.max {
		return f.take(" [TRUNCATED]"), true
	}
	return "", false
}

// Poll flushes the partial line if it has been idle for too long.
func (f *Framer) Poll(now uint32) (string, bool) {
	if len(f.buf) == 0 || now-f.last <= f.timeout {
		return "", false
	}
	return f.take(" [TIMEOUT]"), true
}

// Pending returns the partial line.
func (f *Framer) Pending() string { return string(f.buf) }

func (f *Framer) Reset() { f.buf = f.buf[:0] }

func (f *Framer) take(marker string) string {
	line := string(f.buf) + marker
	f.buf = f.buf[:0]
	return line
}
