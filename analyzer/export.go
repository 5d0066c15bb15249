// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-lpc/sigcap/hal"
)

func state(v bool) string {
	if v {
		return "HIGH"
	}
	return "LOW"
}

// Samples returns the captured samples.
// The samples recovered from a damaged capture file are returned
// without error, the damage being reported in the system log.
func (a *Analyzer) Samples() ([]hal.Sample, error) {
	smpls, err := a.buf.Samples()
	switch {
	case err == nil:
		return smpls, nil
	case len(smpls) > 0:
		a.errorf("Capture file damaged, %d samples recovered: %v", len(smpls), err)
		return smpls, nil
	default:
		a.errorf("Could not read back %v buffer: %v", a.cfg.Mode, err)
		return nil, fmt.Errorf("analyzer: could not read samples: %w", err)
	}
}

type sampleJSON struct {
	Timestamp uint32 `json:"timestamp"`
	Value     bool   `json:"gpio1"`
	State     string `json:"state"`
}

// SamplesJSON exports the captured samples and the capture settings.
func (a *Analyzer) SamplesJSON() ([]byte, error) {
	smpls, err := a.Samples()
	if err != nil {
		return nil, err
	}

	out := struct {
		Samples    []sampleJSON `json:"samples"`
		Count      int          `json:"sample_count"`
		SampleRate uint32       `json:"sample_rate"`
		Pin        uint8        `json:"gpio_pin"`
		BufferSize uint32       `json:"buffer_size"`
		Trigger    string       `json:"trigger_mode"`
	}{
		Samples:    make([]sampleJSON, len(smpls)),
		Count:      len(smpls),
		SampleRate: a.cfg.SampleRate,
		Pin:        a.cfg.Pin,
		BufferSize: a.cfg.Capacity,
		Trigger:    a.cfg.Trigger.String(),
	}
	for i, s := range smpls {
		out.Samples[i] = sampleJSON{
			Timestamp: s.Timestamp,
			Value:     s.Value,
			State:     state(s.Value),
		}
	}
	return json.Marshal(out)
}

// SamplesCSV exports the captured samples as CSV, preceded by
// '#'-prefixed header lines.
func (a *Analyzer) SamplesCSV() ([]byte, error) {
	smpls, err := a.Samples()
	if err != nil {
		return nil, err
	}

	var (
		buf   = new(bytes.Buffer)
		usage = a.buf.Usage()
		pct   = 0.0
	)
	if a.cfg.Capacity > 0 {
		pct = float64(usage) * 100 / float64(a.cfg.Capacity)
	}

	fmt.Fprintf(buf, "# Logic Analyzer Capture Data\n")
	fmt.Fprintf(buf, "# Generated: %d ms\n", a.clk.Millis())
	fmt.Fprintf(buf, "# Sample Rate: %d Hz\n", a.cfg.SampleRate)
	fmt.Fprintf(buf, "# GPIO Pin: %d\n", a.cfg.Pin)
	fmt.Fprintf(buf, "# Buffer Size: %d\n", a.cfg.Capacity)
	fmt.Fprintf(buf, "# Buffer Usage: %d samples (%.1f%%)\n", usage, pct)
	fmt.Fprintf(buf, "# Trigger Mode: %v\n", a.cfg.Trigger)
	if len(smpls) == 0 {
		fmt.Fprintf(buf, "# No capture data available\n")
	}
	fmt.Fprintf(buf, "\n")

	w := csv.NewWriter(buf)
	_ = w.Write([]string{"Sample", "Timestamp_us", "GPIO1_Digital", "GPIO1_State"})
	for i, s := range smpls {
		bit := "0"
		if s.Value {
			bit = "1"
		}
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(uint64(s.Timestamp), 10),
			bit,
			state(s.Value),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("analyzer: could not write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// Status is a snapshot of the capture state.
type Status struct {
	Capturing  bool   `json:"capturing"`
	SampleRate uint32 `json:"sample_rate"`
	Pin        uint8  `json:"gpio_pin"`
	Trigger    string `json:"trigger_mode"`
	Usage      uint32 `json:"buffer_usage"`
	Size       uint32 `json:"buffer_size"`
	Mode       string `json:"buffer_mode"`
	Session    string `json:"session"`
	Uptime     uint32 `json:"uptime_ms"`
}

func (a *Analyzer) Status() Status {
	return Status{
		Capturing:  a.capturing,
		SampleRate: a.cfg.SampleRate,
		Pin:        a.cfg.Pin,
		Trigger:    a.cfg.Trigger.String(),
		Usage:      a.buf.Usage(),
		Size:       a.cfg.Capacity,
		Mode:       a.cfg.Mode.String(),
		Session:    a.session,
		Uptime:     a.clk.Millis() - a.t0,
	}
}

func (a *Analyzer) StatusJSON() ([]byte, error) {
	return json.Marshal(a.Status())
}

// AdvancedStatus extends Status with buffer, flash and UART details.
type AdvancedStatus struct {
	Status
	Compression    string  `json:"compression"`
	Ratio          float64 `json:"compression_ratio"`
	Records        int     `json:"compressed_records"`
	Dropped        uint64  `json:"dropped_records"`
	FlashAvailable bool    `json:"flash_available"`
	FlashErrors    uint64  `json:"flash_errors"`
	FlashLastError string  `json:"flash_last_error"`
	SamplesWritten uint32  `json:"samples_written"`
	PinErrors      uint64  `json:"pin_errors"`
	PinLastError   string  `json:"pin_last_error"`
	DualMode       bool    `json:"dual_mode"`
	UartMonitoring bool    `json:"uart_monitoring"`
	StorageType    string  `json:"storage_type"`
}

func (a *Analyzer) AdvancedStatus() AdvancedStatus {
	bst := a.buf.Status()
	st := AdvancedStatus{
		Status:         a.Status(),
		Compression:    bst.Compression,
		Ratio:          bst.Ratio,
		Records:        bst.Records,
		Dropped:        bst.Dropped,
		FlashAvailable: a.FlashAvailable(),
		FlashErrors:    bst.FlashErrors,
		FlashLastError: bst.FlashLastError,
		SamplesWritten: bst.SamplesWritten,
		DualMode:       a.dual,
		UartMonitoring: a.uart.Enabled(),
		StorageType:    a.uart.Store().Kind(),
		PinErrors:      a.pinErrs,
	}
	if a.pinErr != nil {
		st.PinLastError = a.pinErr.Error()
	}
	return st
}

func (a *Analyzer) AdvancedStatusJSON() ([]byte, error) {
	return json.Marshal(a.AdvancedStatus())
}
