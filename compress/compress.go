// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress encodes streams of samples into run-length
// and delta records.
package compress // import "github.com/go-lpc/sigcap/compress"

import (
	"fmt"
	"strings"

	"github.com/go-lpc/sigcap/hal"
)

// Kind is a compression scheme.
type Kind uint8

const (
	None Kind = iota
	RLE
	Delta
	Hybrid
)

var kindNames = [...]string{
	None:   "NONE",
	RLE:    "RLE",
	Delta:  "DELTA",
	Hybrid: "HYBRID",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) Valid() bool { return int(k) < len(kindNames) }

func ParseKind(s string) (Kind, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range kindNames {
		if v == name {
			return Kind(i), nil
		}
	}
	return None, fmt.Errorf("compress: invalid kind %q", s)
}

// RecordKind tells how to interpret a record.
type RecordKind uint8

const (
	RecordRLE RecordKind = iota
	RecordDelta
)

func (k RecordKind) String() string {
	switch k {
	case RecordRLE:
		return "RLE"
	case RecordDelta:
		return "DELTA"
	}
	return fmt.Sprintf("RecordKind(%d)", uint8(k))
}

// Record is one compressed item.
//
// An RLE record holds Value for Run samples starting at Base.
// A DELTA record marks Value at Base, Run being the distance in
// microseconds to the Base of the preceding record, saturated at MaxRun.
type Record struct {
	Base  uint32
	Run   uint16
	Value bool
	Kind  RecordKind
}

const (
	MaxRecords = 1000   // default capacity of the record buffer
	MaxRun     = 0xffff // largest run or delta

	SampleSize = 5 // encoded size of a raw sample, in bytes
	RecordSize = 8 // encoded size of a record, in bytes
)

// Encoder turns samples into records, accumulated in a bounded buffer.
// Records produced while the buffer is full are dropped and counted.
type Encoder struct {
	kind Kind
	max  int
	recs []Record

	samples uint64 // samples fed
	emitted uint64 // records produced, drained or buffered
	dropped uint64 // records lost on overflow

	last    uint32 // base of the last produced record
	hasLast bool

	run struct {
		active bool
		value  bool
		start  uint32
		count  uint16
	}
}

// NewEncoder returns an encoder for kind, buffering at most max records.
// A non-positive max selects MaxRecords.
func NewEncoder(kind Kind, max int) *Encoder {
	if max <= 0 {
		max = MaxRecords
	}
	return &Encoder{
		kind: kind,
		max:  max,
		recs: make([]Record, 0, max),
	}
}

func (enc *Encoder) Kind() Kind { return enc.kind }

// Reset discards all state and switches to kind.
func (enc *Encoder) Reset(kind Kind) {
	enc.kind = kind
	enc.recs = enc.recs[:0]
	enc.samples = 0
	enc.emitted = 0
	enc.dropped = 0
	enc.last = 0
	enc.hasLast = false
	enc.run.active = false
	enc.run.count = 0
}

func (enc *Encoder) push(rec Record) bool {
	enc.emitted++
	enc.last = rec.Base
	enc.hasLast = true
	if len(enc.recs) >= enc.max {
		enc.dropped++
		return false
	}
	enc.recs = append(enc.recs, rec)
	return true
}

// AppendRLE appends a run of count samples holding value from ts.
// It reports whether the record was buffered.
func (enc *Encoder) AppendRLE(value bool, ts uint32, count uint16) bool {
	return enc.push(Record{Base: ts, Run: count, Value: value, Kind: RecordRLE})
}

// AppendDelta appends a record marking value at ts.
// It reports whether the record was buffered.
func (enc *Encoder) AppendDelta(ts uint32, value bool) bool {
	var ref uint32
	if enc.hasLast {
		ref = enc.last
	}
	delta := ts - ref
	if delta > MaxRun {
		delta = MaxRun
	}
	return enc.push(Record{Base: ts, Run: uint16(delta), Value: value, Kind: RecordDelta})
}

// Add feeds one sample.
func (enc *Encoder) Add(s hal.Sample) {
	enc.samples++
	switch enc.kind {
	case RLE:
		if enc.extend(s) {
			return
		}
		enc.Flush()
		enc.start(s)

	case Delta:
		enc.AppendDelta(s.Timestamp, s.Value)

	case Hybrid:
		if enc.extend(s) {
			return
		}
		edge := !enc.run.active || enc.run.value != s.Value
		enc.Flush()
		if edge {
			enc.AppendDelta(s.Timestamp, s.Value)
		}
		enc.start(s)
	}
}

func (enc *Encoder) extend(s hal.Sample) bool {
	if !enc.run.active || enc.run.value != s.Value || enc.run.count >= MaxRun {
		return false
	}
	enc.run.count++
	return true
}

func (enc *Encoder) start(s hal.Sample) {
	enc.run.active = true
	enc.run.value = s.Value
	enc.run.start = s.Timestamp
	enc.run.count = 1
}

// Flush emits the pending run, if any.
func (enc *Encoder) Flush() {
	if !enc.run.active {
		return
	}
	enc.AppendRLE(enc.run.value, enc.run.start, enc.run.count)
	enc.run.active = false
	enc.run.count = 0
}

// Records returns the buffered records.
// The returned slice is only valid until the next call to the encoder.
func (enc *Encoder) Records() []Record { return enc.recs }

// Drain returns the buffered records and empties the buffer.
func (enc *Encoder) Drain() []Record {
	out := make([]Record, len(enc.recs))
	copy(out, enc.recs)
	enc.recs = enc.recs[:0]
	return out
}

func (enc *Encoder) Len() int        { return len(enc.recs) }
func (enc *Encoder) Cap() int        { return enc.max }
func (enc *Encoder) Samples() uint64 { return enc.samples }
func (enc *Encoder) Emitted() uint64 { return enc.emitted }
func (enc *Encoder) Dropped() uint64 { return enc.dropped }
func (enc *Encoder) Pending() bool   { return enc.run.active }
func (enc *Encoder) Full() bool      { return len(enc.recs) >= enc.max }

// Ratio returns the space saved by the encoding, in percent,
// estimated from the fixed encoded sizes of samples and records.
func (enc *Encoder) Ratio() float64 {
	return Ratio(enc.samples, enc.emitted)
}

// Ratio returns the space saved when encoding samples raw samples
// into records records, in percent.
func Ratio(samples, records uint64) float64 {
	if samples == 0 {
		return 0
	}
	orig := float64(samples * SampleSize)
	comp := float64(records * RecordSize)
	return (orig - comp) / orig * 100
}
