// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flash implements the persistence layer of the analyzer:
// append-only files over a block storage, written in fixed-size chunks,
// and the capture file format.
package flash // import "github.com/go-lpc/sigcap/flash"

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	ErrUnavailable = errors.New("flash: storage unavailable")
)

// Storage is a flat set of append-only files.
type Storage interface {
	// Append opens name for appending, creating it if needed.
	Append(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	// Remove deletes name. Removing a missing file is not an error.
	Remove(name string) error
	Size(name string) (int64, error)
}

// Mounter is a storage that needs to be mounted before use.
type Mounter interface {
	Mount() error
	Format() error
}

// Mount mounts m, formatting it once if the first attempt fails.
// It reports whether the storage was formatted.
func Mount(m Mounter) (formatted bool, err error) {
	err = m.Mount()
	if err == nil {
		return false, nil
	}
	first := err

	err = m.Format()
	if err != nil {
		return false, fmt.Errorf("%w: could not format after mount failure (%v): %v", ErrUnavailable, first, err)
	}

	err = m.Mount()
	if err != nil {
		return true, fmt.Errorf("%w: could not mount after format: %v", ErrUnavailable, err)
	}
	return true, nil
}

// MemStorage is a storage held in memory.
// Failures can be injected to exercise degraded modes.
type MemStorage struct {
	mu    sync.Mutex
	files map[string]*bytes.Buffer

	mounted   bool
	mountErrs []error // errors returned by successive Mount calls
	formatErr error
	writeErr  error
}

func NewMemStorage() *MemStorage {
	return &MemStorage{files: make(map[string]*bytes.Buffer)}
}

// FailMount makes the next calls to Mount return errs, in order,
// and Format return format.
func (st *MemStorage) FailMount(format error, errs ...error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mountErrs = errs
	st.formatErr = format
}

// FailWrites makes every write fail with err, until called with nil.
func (st *MemStorage) FailWrites(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.writeErr = err
}

func (st *MemStorage) Mount() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.mountErrs) > 0 {
		err := st.mountErrs[0]
		st.mountErrs = st.mountErrs[1:]
		if err != nil {
			return err
		}
	}
	st.mounted = true
	return nil
}

func (st *MemStorage) Format() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.formatErr != nil {
		return st.formatErr
	}
	st.files = make(map[string]*bytes.Buffer)
	return nil
}

// Files returns the sorted list of file names.
func (st *MemStorage) Files() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	names := make([]string, 0, len(st.files))
	for name := range st.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bytes returns a copy of the content of name.
func (st *MemStorage) Bytes(name string) []byte {
	st.mu.Lock()
	defer st.mu.Unlock()
	f, ok := st.files[name]
	if !ok {
		return nil
	}
	return append([]byte(nil), f.Bytes()...)
}

type memWriter struct {
	st   *MemStorage
	name string
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.st.mu.Lock()
	defer w.st.mu.Unlock()
	if w.st.writeErr != nil {
		return 0, w.st.writeErr
	}
	f, ok := w.st.files[w.name]
	if !ok {
		return 0, fmt.Errorf("flash: %q: %w", w.name, fs.ErrNotExist)
	}
	return f.Write(p)
}

func (w *memWriter) Close() error { return nil }

func (st *MemStorage) Append(name string) (io.WriteCloser, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.writeErr != nil {
		return nil, fmt.Errorf("flash: could not open %q: %w", name, st.writeErr)
	}
	if _, ok := st.files[name]; !ok {
		st.files[name] = new(bytes.Buffer)
	}
	return &memWriter{st: st, name: name}, nil
}

func (st *MemStorage) Open(name string) (io.ReadCloser, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f, ok := st.files[name]
	if !ok {
		return nil, fmt.Errorf("flash: could not open %q: %w", name, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), f.Bytes()...))), nil
}

func (st *MemStorage) Remove(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.files, name)
	return nil
}

func (st *MemStorage) Size(name string) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	f, ok := st.files[name]
	if !ok {
		return 0, fmt.Errorf("flash: could not stat %q: %w", name, fs.ErrNotExist)
	}
	return int64(f.Len()), nil
}

// DirStorage stores files in a directory of the host file system.
type DirStorage struct {
	Root string
}

func (st DirStorage) path(name string) string {
	return filepath.Join(st.Root, filepath.Base(name))
}

// Mount checks the root directory exists, creating it if needed.
func (st DirStorage) Mount() error {
	err := os.MkdirAll(st.Root, 0755)
	if err != nil {
		return fmt.Errorf("flash: could not create %q: %w", st.Root, err)
	}
	fi, err := os.Stat(st.Root)
	if err != nil {
		return fmt.Errorf("flash: could not stat %q: %w", st.Root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("flash: %q is not a directory", st.Root)
	}
	return nil
}

// Format removes every file under the root directory.
func (st DirStorage) Format() error {
	err := os.RemoveAll(st.Root)
	if err != nil {
		return fmt.Errorf("flash: could not format %q: %w", st.Root, err)
	}
	return os.MkdirAll(st.Root, 0755)
}

func (st DirStorage) Append(name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(st.path(name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("flash: could not open %q: %w", name, err)
	}
	return f, nil
}

func (st DirStorage) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(st.path(name))
	if err != nil {
		return nil, fmt.Errorf("flash: could not open %q: %w", name, err)
	}
	return f, nil
}

func (st DirStorage) Remove(name string) error {
	err := os.Remove(st.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("flash: could not remove %q: %w", name, err)
	}
	return nil
}

func (st DirStorage) Size(name string) (int64, error) {
	fi, err := os.Stat(st.path(name))
	if err != nil {
		return 0, fmt.Errorf("flash: could not stat %q: %w", name, err)
	}
	return fi.Size(), nil
}

var (
	_ Storage = (*MemStorage)(nil)
	_ Mounter = (*MemStorage)(nil)
	_ Storage = DirStorage{}
	_ Mounter = DirStorage{}
)
