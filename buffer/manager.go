// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"errors"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
)

// Manager dispatches samples to the strategy selected by its
// configuration and enforces capacity limits.
//
// Flash failures never stop a Manager: they are logged, counted,
// reported by Status, and the next samples are written as usual.
type Manager struct {
	msg  log.MsgStream
	cfg  Config
	st   flash.Storage
	impl strategy

	errs    uint64 // flash errors
	lastErr error
}

// New creates a manager for cfg.
// Flash-backed modes fall back to RAM when st is nil.
func New(cfg Config, st flash.Storage, msg log.MsgStream) *Manager {
	mgr := &Manager{msg: msg, st: st}
	mgr.configure(cfg)
	return mgr
}

func (mgr *Manager) configure(cfg Config) {
	cfg.defaults()
	if cfg.Mode.NeedsFlash() && mgr.st == nil {
		mgr.msg.Errorf("no flash storage: %v buffer falls back to %v", cfg.Mode, RAM)
		cfg.Mode = RAM
		if cfg.Capacity > DefaultCapacity {
			cfg.Capacity = DefaultCapacity
		}
	}

	mgr.cfg = cfg
	switch cfg.Mode {
	case Flash:
		mgr.impl = newFlashLog(cfg, mgr.st)
	case Streaming:
		mgr.impl = newStream(cfg, mgr.st)
	case Compressed:
		mgr.impl = newPacked(cfg)
	default:
		mgr.impl = newRing(cfg.Capacity)
	}
}

// Reconfigure replaces the active strategy.
// Samples held by the previous strategy are discarded.
func (mgr *Manager) Reconfigure(cfg Config) {
	mgr.configure(cfg)
}

func (mgr *Manager) Config() Config { return mgr.cfg }
func (mgr *Manager) Mode() Mode     { return mgr.cfg.Mode }

// Capacity returns the number of samples the buffer can hold.
func (mgr *Manager) Capacity() uint32 {
	if mgr.cfg.Mode == RAM {
		return mgr.cfg.Capacity - 1
	}
	return mgr.cfg.Capacity
}

// Begin starts a capture session: the buffer is cleared and, for
// flash-backed modes, a new capture file is started.
func (mgr *Manager) Begin() error {
	mgr.errs = 0
	mgr.lastErr = nil
	return mgr.check(mgr.impl.begin())
}

// Record stores s.
// Record returns ErrFull when the buffer can not take more samples.
func (mgr *Manager) Record(s hal.Sample) error {
	err := mgr.impl.record(s)
	if errors.Is(err, ErrFull) {
		return err
	}
	return mgr.check(err)
}

func (mgr *Manager) Usage() uint32 { return mgr.impl.usage() }
func (mgr *Manager) Full() bool    { return mgr.impl.full() }

// Clear empties the buffer.
func (mgr *Manager) Clear() error {
	return mgr.check(mgr.impl.clear())
}

// Flush commits staged data to the block storage.
func (mgr *Manager) Flush() error {
	return mgr.check(mgr.impl.flush())
}

// Finish ends a capture session: pending data is committed and
// capture files are closed with their footer.
func (mgr *Manager) Finish() error {
	return mgr.check(mgr.impl.finish())
}

// Samples returns the captured samples, in order.
// Compressed captures are replayed from their records.
func (mgr *Manager) Samples() ([]hal.Sample, error) {
	out, err := mgr.impl.samples()
	return out, mgr.check(err)
}

func (mgr *Manager) encoder() *compress.Encoder {
	switch impl := mgr.impl.(type) {
	case *packed:
		return impl.comp
	case *stream:
		return impl.comp
	}
	return nil
}

// Records returns the compressed records held in memory.
func (mgr *Manager) Records() []compress.Record {
	enc := mgr.encoder()
	if enc == nil {
		return nil
	}
	return enc.Records()
}

func (mgr *Manager) check(err error) error {
	if err == nil {
		return nil
	}
	mgr.errs++
	mgr.lastErr = err
	mgr.msg.Errorf("flash error (#%d): %+v", mgr.errs, err)
	return err
}

// Status is a snapshot of the buffer state.
type Status struct {
	Mode           string  `json:"buffer_mode"`
	Usage          uint32  `json:"buffer_usage"`
	Capacity       uint32  `json:"buffer_size"`
	Full           bool    `json:"buffer_full"`
	Compression    string  `json:"compression"`
	Ratio          float64 `json:"compression_ratio"`
	Records        int     `json:"compressed_records"`
	Dropped        uint64  `json:"dropped_records"`
	SamplesWritten uint32  `json:"samples_written"`
	FlashErrors    uint64  `json:"flash_errors"`
	FlashLastError string  `json:"flash_last_error"`
}

func (mgr *Manager) Status() Status {
	st := Status{
		Mode:        mgr.cfg.Mode.String(),
		Usage:       mgr.Usage(),
		Capacity:    mgr.cfg.Capacity,
		Full:        mgr.Full(),
		Compression: mgr.cfg.Compression.String(),
		FlashErrors: mgr.errs,
	}
	if mgr.lastErr != nil {
		st.FlashLastError = mgr.lastErr.Error()
	}
	if enc := mgr.encoder(); enc != nil {
		st.Ratio = enc.Ratio()
		st.Records = enc.Len()
		st.Dropped = enc.Dropped()
	}
	if mgr.cfg.Mode.NeedsFlash() {
		st.SamplesWritten = mgr.Usage()
	}
	return st
}
