// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-lpc/sigcap/uart"
)

// ConfigureUart replaces the UART configuration.
// Invalid fields are clamped; dual mode is dropped when the RX pin
// no longer matches the capture pin.
func (a *Analyzer) ConfigureUart(cfg uart.Config) error {
	err := a.configureUart(cfg)
	if err != nil {
		a.errorf("Could not configure UART: %v", err)
		return fmt.Errorf("analyzer: could not configure UART: %w", err)
	}

	ucfg := a.uart.Config()
	if a.dual && ucfg.RX != int(a.cfg.Pin) {
		a.dual = false
		a.logf("Dual mode disabled: UART RX pin %d != capture GPIO pin %d", ucfg.RX, a.cfg.Pin)
	}
	a.saveUartConfig()
	a.logf("UART configured: %v, %v duplex", ucfg, ucfg.Duplex)
	return nil
}

func (a *Analyzer) configureUart(cfg uart.Config) error {
	cfg, msgs := cfg.Clamp()
	for _, msg := range msgs {
		a.logf("%s", msg)
	}
	return a.uart.Configure(cfg)
}

func (a *Analyzer) UartConfig() uart.Config { return a.uart.Config() }

func (a *Analyzer) EnableUartMonitoring() error {
	err := a.uart.Enable()
	if err != nil {
		a.errorf("Could not enable UART monitoring: %v", err)
		return fmt.Errorf("analyzer: could not enable UART monitoring: %w", err)
	}
	a.logf("UART monitoring enabled: %v on RX pin %d", a.uart.Config(), a.uart.Config().RX)
	return nil
}

// DisableUartMonitoring stops UART monitoring, and dual mode with it.
func (a *Analyzer) DisableUartMonitoring() error {
	if a.dual {
		a.dual = false
		a.logf("Dual mode disabled")
	}
	err := a.uart.Disable()
	if err != nil {
		a.errorf("Could not disable UART monitoring: %v", err)
		return fmt.Errorf("analyzer: could not disable UART monitoring: %w", err)
	}
	a.logf("UART monitoring disabled")
	return nil
}

func (a *Analyzer) UartMonitoring() bool { return a.uart.Enabled() }

type uartConfigJSON struct {
	Baud         uint32 `json:"baudrate"`
	DataBits     uint8  `json:"data_bits"`
	Parity       uint8  `json:"parity"`
	ParityString string `json:"parity_string"`
	StopBits     uint8  `json:"stop_bits"`
	RX           int    `json:"rx_pin"`
	TX           int    `json:"tx_pin"`
	Duplex       string `json:"duplex"`
	Enabled      bool   `json:"enabled"`
}

func (a *Analyzer) uartConfigJSON() uartConfigJSON {
	cfg := a.uart.Config()
	return uartConfigJSON{
		Baud:         cfg.Baud,
		DataBits:     cfg.DataBits,
		Parity:       uint8(cfg.Parity),
		ParityString: cfg.Parity.String(),
		StopBits:     cfg.StopBits,
		RX:           cfg.RX,
		TX:           cfg.TX,
		Duplex:       cfg.Duplex.String(),
		Enabled:      a.uart.Enabled(),
	}
}

func (a *Analyzer) UartConfigJSON() ([]byte, error) {
	return json.Marshal(a.uartConfigJSON())
}

func (a *Analyzer) UartLogsJSON() ([]byte, error) {
	lines, err := a.uart.Lines()
	if err != nil {
		a.errorf("Could not read UART logs: %v", err)
		return nil, fmt.Errorf("analyzer: could not read UART logs: %w", err)
	}
	if lines == nil {
		lines = []string{}
	}

	var (
		cnt   = a.uart.Counters()
		store = a.uart.Store()
	)
	return json.Marshal(struct {
		Logs         []string       `json:"uart_logs"`
		Count        int            `json:"count"`
		Max          int            `json:"max_entries"`
		Enabled      bool           `json:"monitoring_enabled"`
		LastActivity uint32         `json:"last_activity"`
		BytesRx      uint64         `json:"bytes_received"`
		BytesTx      uint64         `json:"bytes_sent"`
		StorageType  string         `json:"storage_type"`
		Config       uartConfigJSON `json:"config"`
	}{
		Logs:         lines,
		Count:        len(lines),
		Max:          store.Cap(),
		Enabled:      a.uart.Enabled(),
		LastActivity: cnt.LastActivity,
		BytesRx:      cnt.BytesReceived,
		BytesTx:      cnt.BytesSent,
		StorageType:  store.Kind(),
		Config:       a.uartConfigJSON(),
	})
}

// UartLogsText returns the UART log, one entry per line.
func (a *Analyzer) UartLogsText() (string, error) {
	lines, err := a.uart.Lines()
	if err != nil {
		a.errorf("Could not read UART logs: %v", err)
		return "", fmt.Errorf("analyzer: could not read UART logs: %w", err)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (a *Analyzer) ClearUartLogs() error {
	err := a.uart.Clear()
	if err != nil {
		a.errorf("Could not clear UART logs: %v", err)
		return fmt.Errorf("analyzer: could not clear UART logs: %w", err)
	}
	a.logf("UART logs cleared")
	return nil
}

// CompactUartLogs evicts the oldest UART entries and returns how many
// were removed.
func (a *Analyzer) CompactUartLogs() (int, error) {
	n, err := a.uart.Compact()
	if err != nil {
		a.errorf("Could not compact UART logs: %v", err)
		return n, fmt.Errorf("analyzer: could not compact UART logs: %w", err)
	}
	a.logf("UART logs compacted: %d entries removed", n)
	return n, nil
}

func (a *Analyzer) UartStatsJSON() ([]byte, error) {
	return json.Marshal(a.uart.Stats())
}

// SendHalfDuplexCommand queues cmd on a half-duplex line.
// It reports whether the command was accepted.
func (a *Analyzer) SendHalfDuplexCommand(cmd string) bool {
	err := a.uart.Send(cmd)
	if err != nil {
		a.logf("Half-duplex command %q rejected: %v", cmd, err)
		return false
	}
	a.logf("Half-duplex command queued: %q", cmd)
	return true
}

// EnableDualMode turns dual mode on or off and reports whether dual
// mode is in the requested state.
// Dual mode needs the UART RX pin to be the capture pin: on mismatch
// nothing is changed.
func (a *Analyzer) EnableDualMode(on bool) bool {
	if !on {
		if a.dual {
			a.dual = false
			a.logf("Dual mode disabled")
		}
		return true
	}

	rx := a.uart.Config().RX
	if rx != int(a.cfg.Pin) {
		a.logf("Dual mode rejected: UART RX pin %d != capture GPIO pin %d", rx, a.cfg.Pin)
		return false
	}

	if !a.uart.Enabled() {
		err := a.uart.Enable()
		if err != nil {
			a.errorf("Dual mode rejected: could not enable UART monitoring: %v", err)
			return false
		}
	}
	a.dual = true
	a.logf("Dual mode enabled on GPIO pin %d", a.cfg.Pin)
	return true
}

func (a *Analyzer) DualMode() bool { return a.dual }

// DualStatus describes the dual-mode coordinator.
type DualStatus struct {
	Active         bool `json:"dual_mode_active"`
	Pin            int  `json:"gpio_pin"`
	RX             int  `json:"uart_rx_pin"`
	PinsMatch      bool `json:"pins_match"`
	Capturing      bool `json:"capturing"`
	UartMonitoring bool `json:"uart_monitoring"`
}

func (a *Analyzer) DualModeStatus() DualStatus {
	rx := a.uart.Config().RX
	return DualStatus{
		Active:         a.dual,
		Pin:            int(a.cfg.Pin),
		RX:             rx,
		PinsMatch:      rx == int(a.cfg.Pin),
		Capturing:      a.capturing,
		UartMonitoring: a.uart.Enabled(),
	}
}

func (a *Analyzer) DualModeStatusJSON() ([]byte, error) {
	return json.Marshal(a.DualModeStatus())
}
