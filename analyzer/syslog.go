// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxLogEntries is the capacity of the system log.
const MaxLogEntries = 100

// sysLog is a bounded log of user-visible events.
// The oldest entry is evicted when the log is full.
type sysLog struct {
	max     int
	entries []string
}

func newSysLog(max int) *sysLog {
	return &sysLog{max: max, entries: make([]string, 0, max)}
}

func (lg *sysLog) add(ms uint32, msg string) {
	if len(lg.entries) >= lg.max {
		n := copy(lg.entries, lg.entries[1:])
		lg.entries = lg.entries[:n]
	}
	lg.entries = append(lg.entries, fmt.Sprintf("%d: %s", ms, msg))
}

func (lg *sysLog) clear() { lg.entries = lg.entries[:0] }

// AddLogEntry appends msg to the system log.
func (a *Analyzer) AddLogEntry(msg string) {
	a.log.add(a.clk.Millis(), msg)
}

// Logs returns a copy of the system log, oldest first.
func (a *Analyzer) Logs() []string {
	return append([]string{}, a.log.entries...)
}

func (a *Analyzer) LogsJSON() ([]byte, error) {
	return json.Marshal(struct {
		Logs  []string `json:"logs"`
		Count int      `json:"count"`
		Max   int      `json:"max_entries"`
	}{
		Logs:  a.Logs(),
		Count: len(a.log.entries),
		Max:   a.log.max,
	})
}

// LogsText returns the system log, one entry per line.
func (a *Analyzer) LogsText() string {
	if len(a.log.entries) == 0 {
		return ""
	}
	return strings.Join(a.log.entries, "\n") + "\n"
}

func (a *Analyzer) ClearLogs() {
	a.log.clear()
	a.msg.Infof("system log cleared")
}
