// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/go-lpc/sigcap/internal/crc16"
)

func TestChunkWriter(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "capture.bin")

	small := bytes.Repeat([]byte{0x42}, 1000)
	for i := 0; i < 4; i++ {
		_, err := w.Write(small)
		if err != nil {
			t.Fatalf("could not write: %+v", err)
		}
	}
	if got, want := w.Buffered(), 4000; got != want {
		t.Fatalf("invalid staged bytes: got=%d, want=%d", got, want)
	}
	if got := st.Files(); len(got) != 0 {
		t.Fatalf("nothing should have reached the storage: %q", got)
	}

	// does not fit: flush the 4000 staged bytes first.
	_, err := w.Write(small)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if got, want := len(st.Bytes("capture.bin")), 4000; got != want {
		t.Fatalf("invalid flushed bytes: got=%d, want=%d", got, want)
	}
	if got, want := w.Buffered(), 1000; got != want {
		t.Fatalf("invalid staged bytes: got=%d, want=%d", got, want)
	}

	big := bytes.Repeat([]byte{0x43}, 3*ChunkSize+10)
	n, err := w.Write(big)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if got, want := n, len(big); got != want {
		t.Fatalf("invalid written bytes: got=%d, want=%d", got, want)
	}

	err = w.Flush()
	if err != nil {
		t.Fatalf("could not flush: %+v", err)
	}
	if got, want := w.Written(), int64(5000+len(big)); got != want {
		t.Fatalf("invalid total: got=%d, want=%d", got, want)
	}

	want := append(bytes.Repeat([]byte{0x42}, 5000), big...)
	if got := st.Bytes("capture.bin"); !bytes.Equal(got, want) {
		t.Fatalf("invalid file content")
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flushing an empty chunk should not fail: %+v", err)
	}
}

func TestChunkWriterFailure(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "capture.bin")

	boom := errors.New("flash worn out")
	st.FailWrites(boom)

	_, _ = w.Write([]byte("abc"))
	err := w.Flush()
	if !errors.Is(err, boom) {
		t.Fatalf("invalid error: got=%v, want=%v", err, boom)
	}
	if got, want := w.Lost(), int64(3); got != want {
		t.Fatalf("invalid lost bytes: got=%d, want=%d", got, want)
	}

	st.FailWrites(nil)
	_, _ = w.Write([]byte("def"))
	if err := w.Flush(); err != nil {
		t.Fatalf("could not flush after recovery: %+v", err)
	}
	if got, want := string(st.Bytes("capture.bin")), "def"; got != want {
		t.Fatalf("invalid content: got=%q, want=%q", got, want)
	}
	if got, want := w.Flushes(), 1; got != want {
		t.Fatalf("invalid number of flushes: got=%d, want=%d", got, want)
	}

	_, _ = w.Write([]byte("ghi"))
	w.Discard()
	if w.Buffered() != 0 {
		t.Fatalf("staged bytes not discarded")
	}
}

func TestChunkWriterSum(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "capture.bin")

	_, _ = w.Write([]byte("hdr"))
	if err := w.Flush(); err != nil {
		t.Fatalf("could not flush: %+v", err)
	}
	w.ResetSum()
	if got, want := w.Sum16(), uint16(crc16.Init); got != want {
		t.Fatalf("invalid initial sum: got=0x%04x, want=0x%04x", got, want)
	}

	_, _ = w.Write([]byte("abc"))
	if got, want := w.Sum16(), crc16.Checksum([]byte("abc")); got != want {
		t.Fatalf("staged bytes should be summed: got=0x%04x, want=0x%04x", got, want)
	}

	st.FailWrites(errors.New("bad block"))
	if err := w.Flush(); err == nil {
		t.Fatalf("expected a flush error")
	}
	st.FailWrites(nil)

	_, _ = w.Write([]byte("def"))
	if err := w.Flush(); err != nil {
		t.Fatalf("could not flush: %+v", err)
	}
	_, _ = w.Write([]byte("ghi"))

	if got, want := w.Sum16(), crc16.Checksum([]byte("defghi")); got != want {
		t.Fatalf("lost chunk should not be summed: got=0x%04x, want=0x%04x", got, want)
	}
	if got, want := string(st.Bytes("capture.bin")), "hdrdef"; got != want {
		t.Fatalf("invalid content: got=%q, want=%q", got, want)
	}

	// the sum restarts in the middle of a staged chunk.
	w.ResetSum()
	_, _ = w.Write([]byte("jk"))
	if err := w.Flush(); err != nil {
		t.Fatalf("could not flush: %+v", err)
	}
	if got, want := w.Sum16(), crc16.Checksum([]byte("jk")); got != want {
		t.Fatalf("invalid sum after reset: got=0x%04x, want=0x%04x", got, want)
	}
}

func TestReadLines(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "uart.log")
	_, _ = w.Write([]byte("1: [UART RX] AB\n2: [UART RX] CD\n"))
	_ = w.Flush()

	lines, err := ReadLines(st, "uart.log")
	if err != nil {
		t.Fatalf("could not read lines: %+v", err)
	}
	if got, want := lines, []string{"1: [UART RX] AB", "2: [UART RX] CD"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid lines: got=%q, want=%q", got, want)
	}

	if _, err := ReadLines(st, "missing.log"); err == nil {
		t.Fatalf("expected an error")
	}
}
