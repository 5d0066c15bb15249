// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"io"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/sigcap/analyzer"
	"github.com/go-lpc/sigcap/buffer"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/trigger"
)

// EncodeConfig writes cfg as the payload of a /config command.
func EncodeConfig(w io.Writer, cfg analyzer.Config) error {
	enc := tdaq.NewEncoder(w)
	enc.WriteU32(cfg.SampleRate)
	enc.WriteU8(cfg.Pin)
	enc.WriteU8(uint8(cfg.Trigger))
	enc.WriteU8(uint8(cfg.Mode))
	enc.WriteU32(cfg.Capacity)
	enc.WriteU8(cfg.PreTrigger)
	enc.WriteU8(uint8(cfg.Compression))
	if err := enc.Err(); err != nil {
		return fmt.Errorf("daq: could not encode config: %w", err)
	}
	return nil
}

// DecodeConfig reads a capture configuration written by EncodeConfig.
func DecodeConfig(r io.Reader) (analyzer.Config, error) {
	dec := tdaq.NewDecoder(r)
	cfg := analyzer.Config{
		SampleRate:  dec.ReadU32(),
		Pin:         dec.ReadU8(),
		Trigger:     trigger.Mode(dec.ReadU8()),
		Mode:        buffer.Mode(dec.ReadU8()),
		Capacity:    dec.ReadU32(),
		PreTrigger:  dec.ReadU8(),
		Compression: compress.Kind(dec.ReadU8()),
	}
	if err := dec.Err(); err != nil {
		return cfg, fmt.Errorf("daq: could not decode config: %w", err)
	}
	return cfg, nil
}

// Capture is the payload of a /samples frame.
type Capture struct {
	Session    string
	SampleRate uint32
	Samples    []hal.Sample
}

func EncodeCapture(w io.Writer, c Capture) error {
	enc := tdaq.NewEncoder(w)
	enc.WriteStr(c.Session)
	enc.WriteU32(c.SampleRate)
	enc.WriteU32(uint32(len(c.Samples)))
	for _, s := range c.Samples {
		enc.WriteU32(s.Timestamp)
		v := uint8(0)
		if s.Value {
			v = 1
		}
		enc.WriteU8(v)
	}
	if err := enc.Err(); err != nil {
		return fmt.Errorf("daq: could not encode capture: %w", err)
	}
	return nil
}

// maxPrealloc bounds the number of samples allocated before they are read.
const maxPrealloc = 4096

// DecodeCapture reads a capture written by EncodeCapture.
// The sample count comes from the wire and is checked before use.
func DecodeCapture(r io.Reader) (Capture, error) {
	var (
		dec = tdaq.NewDecoder(r)
		c   Capture
	)
	c.Session = dec.ReadStr()
	c.SampleRate = dec.ReadU32()
	n := dec.ReadU32()
	if err := dec.Err(); err != nil {
		return c, fmt.Errorf("daq: could not decode capture header: %w", err)
	}
	if n > analyzer.MaxFlashCapacity {
		return c, fmt.Errorf("daq: invalid capture size %d (max=%d)", n, analyzer.MaxFlashCapacity)
	}
	size := n
	if size > maxPrealloc {
		size = maxPrealloc
	}
	c.Samples = make([]hal.Sample, 0, size)
	for i := uint32(0); i < n; i++ {
		ts := dec.ReadU32()
		v := dec.ReadU8()
		if err := dec.Err(); err != nil {
			return c, fmt.Errorf("daq: could not decode sample %d/%d: %w", i, n, err)
		}
		c.Samples = append(c.Samples, hal.Sample{Timestamp: ts, Value: v != 0})
	}
	return c, nil
}
