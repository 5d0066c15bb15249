// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"github.com/go-lpc/sigcap/hal"
)

// ring is a circular buffer keeping one slot empty to tell
// a full ring from an empty one.
type ring struct {
	buf []hal.Sample
	w   uint32
	r   uint32
}

func newRing(n uint32) *ring {
	if n < 2 {
		n = 2
	}
	return &ring{buf: make([]hal.Sample, n)}
}

func (rb *ring) size() uint32 { return uint32(len(rb.buf)) }

func (rb *ring) begin() error { return rb.clear() }

func (rb *ring) record(s hal.Sample) error {
	if rb.full() {
		return ErrFull
	}
	rb.buf[rb.w] = s
	rb.w = (rb.w + 1) % rb.size()
	return nil
}

func (rb *ring) usage() uint32 {
	n := rb.size()
	return (rb.w + n - rb.r) % n
}

func (rb *ring) full() bool { return rb.usage() >= rb.size()-1 }

func (rb *ring) clear() error {
	rb.w = 0
	rb.r = 0
	return nil
}

func (rb *ring) flush() error  { return nil }
func (rb *ring) finish() error { return nil }

func (rb *ring) samples() ([]hal.Sample, error) {
	var (
		n   = rb.usage()
		out = make([]hal.Sample, 0, n)
	)
	for i := uint32(0); i < n; i++ {
		out = append(out, rb.buf[(rb.r+i)%rb.size()])
	}
	return out, nil
}
