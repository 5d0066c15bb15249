// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-lpc/sigcap/flash"
)

const (
	MaxEntries      = 1000  // capacity of the in-memory log
	MaxFlashEntries = 10000 // capacity of the flash log
	LogFile         = "uart.log"
)

// Store keeps log lines in arrival order.
//
// Stores are bounded: once 90% of their capacity is used, the oldest
// 20% of the capacity is evicted in one batch.
type Store interface {
	Add(line string) error
	Lines() ([]string, error)
	Len() int
	Cap() int
	// Compact evicts the oldest entries and returns how many were removed.
	Compact() (int, error)
	Clear() error
	// Size returns the number of bytes held by the store.
	Size() int
	Kind() string
}

func highWater(n int) int { return n * 90 / 100 }
func batch(n int) int     { return n * 20 / 100 }

// MemStore is a Store held in memory.
type MemStore struct {
	lines []string
	max   int
	size  int
}

func NewMemStore(max int) *MemStore {
	if max <= 0 {
		max = MaxEntries
	}
	return &MemStore{max: max}
}

func (st *MemStore) Add(line string) error {
	st.lines = append(st.lines, line)
	st.size += len(line)
	if len(st.lines) >= highWater(st.max) {
		_, _ = st.Compact()
	}
	return nil
}

func (st *MemStore) Compact() (int, error) {
	n := batch(st.max)
	if n > len(st.lines) {
		n = len(st.lines)
	}
	for _, line := range st.lines[:n] {
		st.size -= len(line)
	}
	st.lines = append(st.lines[:0], st.lines[n:]...)
	return n, nil
}

func (st *MemStore) Lines() ([]string, error) {
	return append([]string(nil), st.lines...), nil
}

func (st *MemStore) Clear() error {
	st.lines = st.lines[:0]
	st.size = 0
	return nil
}

func (st *MemStore) Len() int     { return len(st.lines) }
func (st *MemStore) Cap() int     { return st.max }
func (st *MemStore) Size() int    { return st.size }
func (st *MemStore) Kind() string { return "memory" }

// FlashStore is a Store appending lines to a text file.
type FlashStore struct {
	st   flash.Storage
	name string
	w    *flash.ChunkWriter
	max  int
	n    int
	size int
}

// NewFlashStore opens the log file name of st, keeping its
// current content.
func NewFlashStore(st flash.Storage, name string, max int) (*FlashStore, error) {
	if max <= 0 {
		max = MaxFlashEntries
	}
	if name == "" {
		name = LogFile
	}
	fst := &FlashStore{
		st:   st,
		name: name,
		w:    flash.NewChunkWriter(st, name),
		max:  max,
	}

	lines, err := flash.ReadLines(st, name)
	switch {
	case err == nil:
		fst.n = len(lines)
		for _, line := range lines {
			fst.size += len(line) + 1
		}
	case errors.Is(err, fs.ErrNotExist):
		// new log.
	default:
		return nil, fmt.Errorf("uart: could not open flash log %q: %w", name, err)
	}
	return fst, nil
}

func (st *FlashStore) Add(line string) error {
	_, err := st.w.Write([]byte(line + "\n"))
	st.n++
	st.size += len(line) + 1
	if err != nil {
		return fmt.Errorf("uart: could not append to flash log: %w", err)
	}
	if st.n >= highWater(st.max) {
		_, err = st.Compact()
	}
	return err
}

// Compact rewrites the log file without its oldest entries.
func (st *FlashStore) Compact() (int, error) {
	lines, err := st.Lines()
	if err != nil {
		return 0, err
	}
	n := batch(st.max)
	if n > len(lines) {
		n = len(lines)
	}

	err = st.Clear()
	if err != nil {
		return 0, err
	}
	for _, line := range lines[n:] {
		_, err = st.w.Write([]byte(line + "\n"))
		if err != nil {
			return n, fmt.Errorf("uart: could not rewrite flash log: %w", err)
		}
		st.n++
		st.size += len(line) + 1
	}
	return n, st.w.Flush()
}

func (st *FlashStore) Lines() ([]string, error) {
	err := st.w.Flush()
	if err != nil {
		return nil, fmt.Errorf("uart: could not flush flash log: %w", err)
	}
	lines, err := flash.ReadLines(st.st, st.name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("uart: could not read flash log: %w", err)
	}
	return lines, nil
}

func (st *FlashStore) Clear() error {
	st.w.Discard()
	st.n = 0
	st.size = 0
	err := st.st.Remove(st.name)
	if err != nil {
		return fmt.Errorf("uart: could not remove flash log: %w", err)
	}
	return nil
}

// Flush commits staged lines to the storage.
func (st *FlashStore) Flush() error { return st.w.Flush() }

func (st *FlashStore) Len() int     { return st.n }
func (st *FlashStore) Cap() int     { return st.max }
func (st *FlashStore) Size() int    { return st.size }
func (st *FlashStore) Kind() string { return "flash" }

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*FlashStore)(nil)
)
