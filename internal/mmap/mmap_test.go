// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(make([]byte, 1), 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "capture.bin")
	want := []byte("SCAP\x00\x01payload")
	err := os.WriteFile(fname, want, 0644)
	if err != nil {
		t.Fatalf("could not create file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not map file: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), len(want); got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	got, err := io.ReadAll(h.Reader())
	if err != nil {
		t.Fatalf("could not read mapped file: %+v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("invalid content: got=%q, want=%q", got, want)
	}

	p := make([]byte, 4)
	_, err = h.ReadAt(p, int64(len(want)-2))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid short read error: %+v", err)
	}
	_, err = h.ReadAt(p, -1)
	if err == nil {
		t.Fatalf("expected an error for a negative offset")
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not unmap file: %+v", err)
	}
	_, err = h.ReadAt(p, 0)
	if !errors.Is(err, errClosed) {
		t.Fatalf("invalid read-after-close error: %+v", err)
	}

	empty := filepath.Join(dir, "empty.bin")
	err = os.WriteFile(empty, nil, 0644)
	if err != nil {
		t.Fatalf("could not create empty file: %+v", err)
	}
	h, err = Open(empty)
	if err != nil {
		t.Fatalf("could not map empty file: %+v", err)
	}
	if got := h.Len(); got != 0 {
		t.Fatalf("invalid length: got=%d, want=0", got)
	}

	_, err = Open(filepath.Join(dir, "missing.bin"))
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
