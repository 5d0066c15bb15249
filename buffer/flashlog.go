// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"fmt"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
)

// flashLog appends samples to a capture file.
type flashLog struct {
	st   flash.Storage
	name string
	hdr  flash.Header
	max  uint32

	w       *flash.ChunkWriter
	enc     *flash.Encoder
	written uint32
}

func newFlashLog(cfg Config, st flash.Storage) *flashLog {
	return &flashLog{
		st:   st,
		name: cfg.File,
		max:  cfg.Capacity,
		hdr: flash.Header{
			BufferSize:  cfg.Capacity,
			SampleRate:  cfg.SampleRate,
			Compression: cfg.Compression,
		},
	}
}

// begin starts a new session.
func (fl *flashLog) begin() error {
	fl.written = 0
	return fl.open()
}

// open recreates the capture file and commits the session header.
// On failure the file is reopened on the next sample.
func (fl *flashLog) open() error {
	if fl.w != nil {
		fl.w.Discard()
	}
	fl.w = nil
	fl.enc = nil

	err := fl.st.Remove(fl.name)
	if err != nil {
		return fmt.Errorf("buffer: could not remove %q: %w", fl.name, err)
	}

	w := flash.NewChunkWriter(fl.st, fl.name)
	enc := flash.NewEncoder(w)
	hdr := fl.hdr
	err = enc.EncodeHeader(&hdr)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		return fmt.Errorf("buffer: could not start capture file: %w", err)
	}
	fl.w = w
	fl.enc = enc
	return nil
}

func (fl *flashLog) ready() bool { return fl.enc != nil }

func (fl *flashLog) record(s hal.Sample) error {
	if fl.full() {
		return ErrFull
	}
	fl.written++
	if !fl.ready() {
		if err := fl.open(); err != nil {
			return err
		}
	}
	err := fl.enc.EncodeSample(s)
	if err != nil {
		fl.enc.Reset()
		return err
	}
	return nil
}

func (fl *flashLog) usage() uint32 { return fl.written }
func (fl *flashLog) full() bool    { return fl.written >= fl.max }

// clear deletes and recreates the capture file.
func (fl *flashLog) clear() error {
	return fl.begin()
}

func (fl *flashLog) flush() error {
	if !fl.ready() {
		return nil
	}
	return fl.w.Flush()
}

func (fl *flashLog) finish() error {
	if !fl.ready() {
		return nil
	}
	err := fl.enc.EncodeFooter(fl.written)
	if err != nil {
		fl.enc.Reset()
		_ = fl.w.Flush()
		return err
	}
	return fl.w.Flush()
}

// capture reads the capture file back.
// A damaged file yields the items decoded before the damage, along
// with the decoding error.
func (fl *flashLog) capture() (*flash.Capture, error) {
	if !fl.ready() {
		return &flash.Capture{}, nil
	}
	err := fl.w.Flush()
	if err != nil {
		return nil, err
	}
	return flash.ReadFile(fl.st, fl.name)
}

func (fl *flashLog) samples() ([]hal.Sample, error) {
	c, err := fl.capture()
	if c == nil {
		return nil, err
	}
	return c.Samples, err
}

// stream appends samples to a capture file, optionally compressed,
// and commits the staged data every few samples.
type stream struct {
	*flashLog
	comp     *compress.Encoder // nil when samples are stored raw.
	every    int
	since    int
	interval uint32
}

func newStream(cfg Config, st flash.Storage) *stream {
	s := &stream{
		flashLog: newFlashLog(cfg, st),
		every:    cfg.StreamEvery,
		interval: cfg.interval(),
	}
	if cfg.Compression != compress.None {
		s.comp = compress.NewEncoder(cfg.Compression, compress.MaxRecords)
	}
	return s
}

func (s *stream) begin() error {
	s.since = 0
	if s.comp != nil {
		s.comp.Reset(s.comp.Kind())
	}
	return s.flashLog.begin()
}

func (s *stream) clear() error { return s.begin() }

func (s *stream) record(smpl hal.Sample) error {
	if s.comp == nil {
		err := s.flashLog.record(smpl)
		if err == ErrFull {
			return err
		}
		return s.tick(err)
	}

	if s.full() {
		return ErrFull
	}
	s.written++
	s.comp.Add(smpl)
	if !s.ready() {
		if err := s.flashLog.open(); err != nil {
			return err
		}
	}
	var err error
	if s.comp.Len() >= s.comp.Cap()/2 {
		err = s.drain()
	}
	return s.tick(err)
}

// tick counts samples and commits the staged chunk every s.every samples.
func (s *stream) tick(err error) error {
	s.since++
	if s.since < s.every || !s.ready() {
		return err
	}
	s.since = 0
	if e := s.drain(); e != nil && err == nil {
		err = e
	}
	if e := s.w.Flush(); e != nil && err == nil {
		err = e
	}
	return err
}

// drain moves compressed records to the capture file.
func (s *stream) drain() error {
	if s.comp == nil {
		return nil
	}
	var err error
	for _, rec := range s.comp.Drain() {
		if e := s.enc.EncodeRecord(rec); e != nil {
			s.enc.Reset()
			if err == nil {
				err = e
			}
		}
	}
	return err
}

func (s *stream) flush() error {
	if !s.ready() {
		return nil
	}
	err := s.drain()
	if e := s.w.Flush(); e != nil && err == nil {
		err = e
	}
	return err
}

func (s *stream) finish() error {
	if !s.ready() {
		return nil
	}
	if s.comp != nil {
		s.comp.Flush()
	}
	err := s.drain()
	if e := s.flashLog.finish(); e != nil && err == nil {
		err = e
	}
	return err
}

func (s *stream) samples() ([]hal.Sample, error) {
	if s.comp != nil && s.ready() {
		if err := s.drain(); err != nil {
			return nil, err
		}
	}
	c, err := s.capture()
	if c == nil {
		return nil, err
	}
	out := c.Samples
	if len(c.Records) > 0 {
		out = append(out, compress.Replay(c.Records, s.interval)...)
	}
	return out, err
}

// packed keeps compressed records in memory.
type packed struct {
	comp     *compress.Encoder
	seen     uint32
	max      uint32
	interval uint32
}

func newPacked(cfg Config) *packed {
	return &packed{
		comp:     compress.NewEncoder(cfg.Compression, compress.MaxRecords),
		max:      cfg.Capacity,
		interval: cfg.interval(),
	}
}

func (p *packed) begin() error { return p.clear() }

func (p *packed) record(s hal.Sample) error {
	if p.full() {
		return ErrFull
	}
	p.seen++
	p.comp.Add(s)
	return nil
}

func (p *packed) usage() uint32 { return p.seen }
func (p *packed) full() bool    { return p.seen >= p.max }

func (p *packed) clear() error {
	p.seen = 0
	p.comp.Reset(p.comp.Kind())
	return nil
}

func (p *packed) flush() error { return nil }

func (p *packed) finish() error {
	p.comp.Flush()
	return nil
}

func (p *packed) samples() ([]hal.Sample, error) {
	return compress.Replay(p.comp.Records(), p.interval), nil
}
