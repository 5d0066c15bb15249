// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/go-lpc/sigcap/buffer"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/trigger"
)

const (
	MinSampleRate = 10
	MaxSampleRate = 40000000

	MaxPin = 48

	MinCapacity      = 16
	MaxRAMCapacity   = 65536
	MaxFlashCapacity = 4194304

	MaxPreTrigger = 90
)

// Config describes a capture.
type Config struct {
	SampleRate  uint32 // in Hz
	Pin         uint8
	Trigger     trigger.Mode
	Mode        buffer.Mode
	Capacity    uint32
	PreTrigger  uint8 // percent, recorded but not applied
	Compression compress.Kind
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  1000000,
		Pin:         2,
		Trigger:     trigger.None,
		Mode:        buffer.RAM,
		Capacity:    buffer.DefaultCapacity,
		PreTrigger:  0,
		Compression: compress.None,
	}
}

// Interval returns the sampling period in microseconds.
func (cfg Config) Interval() uint32 {
	if cfg.SampleRate == 0 {
		return 1
	}
	dt := 1000000 / cfg.SampleRate
	if dt == 0 {
		dt = 1
	}
	return dt
}

// Clamp brings every field of cfg within its valid range.
// It returns the clamped configuration and a description of each
// modified field.
func (cfg Config) Clamp() (Config, []string) {
	var msgs []string
	clamp := func(name string, v, lo, hi uint64) uint64 {
		switch {
		case v < lo:
			msgs = append(msgs, fmt.Sprintf("%s %d clamped to %d", name, v, lo))
			return lo
		case v > hi:
			msgs = append(msgs, fmt.Sprintf("%s %d clamped to %d", name, v, hi))
			return hi
		}
		return v
	}

	cfg.SampleRate = uint32(clamp("Sample rate", uint64(cfg.SampleRate), MinSampleRate, MaxSampleRate))
	cfg.Pin = uint8(clamp("GPIO pin", uint64(cfg.Pin), 0, MaxPin))
	cfg.PreTrigger = uint8(clamp("Pre-trigger percent", uint64(cfg.PreTrigger), 0, MaxPreTrigger))

	if !cfg.Trigger.Valid() {
		msgs = append(msgs, fmt.Sprintf("Invalid trigger mode %d reset to %v", cfg.Trigger, trigger.None))
		cfg.Trigger = trigger.None
	}
	if !cfg.Mode.Valid() {
		msgs = append(msgs, fmt.Sprintf("Invalid buffer mode %d reset to %v", cfg.Mode, buffer.RAM))
		cfg.Mode = buffer.RAM
	}
	if !cfg.Compression.Valid() {
		msgs = append(msgs, fmt.Sprintf("Invalid compression %d reset to %v", cfg.Compression, compress.None))
		cfg.Compression = compress.None
	}

	hi := uint64(MaxFlashCapacity)
	if cfg.Mode == buffer.RAM {
		hi = MaxRAMCapacity
	}
	cfg.Capacity = uint32(clamp("Buffer size", uint64(cfg.Capacity), MinCapacity, hi))

	return cfg, msgs
}

type configJSON struct {
	SampleRate  uint32 `json:"sample_rate"`
	Pin         uint8  `json:"gpio_pin"`
	Trigger     string `json:"trigger_mode"`
	Mode        string `json:"buffer_mode"`
	Capacity    uint32 `json:"buffer_size"`
	PreTrigger  uint8  `json:"pre_trigger_percent"`
	Compression string `json:"compression"`
}

func (cfg Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		SampleRate:  cfg.SampleRate,
		Pin:         cfg.Pin,
		Trigger:     cfg.Trigger.String(),
		Mode:        cfg.Mode.String(),
		Capacity:    cfg.Capacity,
		PreTrigger:  cfg.PreTrigger,
		Compression: cfg.Compression.String(),
	})
}

// UnmarshalJSON updates cfg with the fields present in data.
func (cfg *Config) UnmarshalJSON(data []byte) error {
	var raw struct {
		SampleRate  *uint32 `json:"sample_rate"`
		Pin         *uint8  `json:"gpio_pin"`
		Trigger     *string `json:"trigger_mode"`
		Mode        *string `json:"buffer_mode"`
		Capacity    *uint32 `json:"buffer_size"`
		PreTrigger  *uint8  `json:"pre_trigger_percent"`
		Compression *string `json:"compression"`
	}
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("analyzer: could not decode config: %w", err)
	}

	out := *cfg
	if raw.SampleRate != nil {
		out.SampleRate = *raw.SampleRate
	}
	if raw.Pin != nil {
		out.Pin = *raw.Pin
	}
	if raw.Trigger != nil {
		out.Trigger, err = trigger.ParseMode(*raw.Trigger)
		if err != nil {
			return fmt.Errorf("analyzer: could not decode config: %w", err)
		}
	}
	if raw.Mode != nil {
		out.Mode, err = buffer.ParseMode(*raw.Mode)
		if err != nil {
			return fmt.Errorf("analyzer: could not decode config: %w", err)
		}
	}
	if raw.Capacity != nil {
		out.Capacity = *raw.Capacity
	}
	if raw.PreTrigger != nil {
		out.PreTrigger = *raw.PreTrigger
	}
	if raw.Compression != nil {
		out.Compression, err = compress.ParseKind(*raw.Compression)
		if err != nil {
			return fmt.Errorf("analyzer: could not decode config: %w", err)
		}
	}
	*cfg = out
	return nil
}
