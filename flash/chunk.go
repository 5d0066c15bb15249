// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-lpc/sigcap/internal/crc16"
)

// ChunkSize is the size of the staging buffer of a ChunkWriter.
const ChunkSize = 4096

type wbuf struct {
	p []byte
	c int
}

func (w *wbuf) Write(p []byte) (int, error) {
	if w.c >= len(w.p) {
		return 0, io.EOF
	}
	n := copy(w.p[w.c:], p)
	w.c += n
	return n, nil
}

// ChunkWriter stages writes in memory and appends them to a file of
// a Storage one chunk at a time, when the staging buffer would
// overflow or on an explicit Flush.
//
// A write smaller than a chunk never straddles two chunks.
// A chunk that could not be appended is dropped and accounted for in
// Lost, so that a failing storage never blocks the writer.
//
// ChunkWriter checksums the bytes written since the last ResetSum
// that were either appended or are still staged: dropped chunks are
// left out.
type ChunkWriter struct {
	st   Storage
	name string
	buf  wbuf

	sum  uint16 // checksum of the appended bytes
	body int    // offset of the checksummed bytes in the staged chunk

	written int64 // bytes appended to the file
	lost    int64 // bytes dropped on failed flushes
	flushes int
}

func NewChunkWriter(st Storage, name string) *ChunkWriter {
	return &ChunkWriter{
		st:   st,
		name: name,
		buf:  wbuf{p: make([]byte, ChunkSize)},
		sum:  crc16.Init,
	}
}

func (w *ChunkWriter) Name() string { return w.name }

// Write stages p, flushing the staged chunk first if p does not fit.
// Write always consumes p; the returned error reports a failed flush.
func (w *ChunkWriter) Write(p []byte) (int, error) {
	var (
		n   int
		err error
	)
	for len(p) > 0 {
		if w.buf.c > 0 && w.buf.c+len(p) > len(w.buf.p) {
			if e := w.Flush(); e != nil && err == nil {
				err = e
			}
		}
		m, _ := w.buf.Write(p)
		n += m
		p = p[m:]
	}
	return n, err
}

// Flush appends the staged chunk to the file.
func (w *ChunkWriter) Flush() error {
	if w.buf.c == 0 {
		return nil
	}
	n := w.buf.c
	body := w.body
	w.buf.c = 0
	w.body = 0

	f, err := w.st.Append(w.name)
	if err != nil {
		w.lost += int64(n)
		return fmt.Errorf("flash: could not open %q for append: %w", w.name, err)
	}

	m, err := f.Write(w.buf.p[:n])
	w.written += int64(m)
	if err == nil && m != n {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = f.Close()
		w.lost += int64(n - m)
		return fmt.Errorf("flash: could not write chunk to %q: %w", w.name, err)
	}

	w.sum = crc16.Update(w.sum, w.buf.p[body:n])

	err = f.Close()
	if err != nil {
		return fmt.Errorf("flash: could not close %q: %w", w.name, err)
	}
	w.flushes++
	return nil
}

// Discard drops the staged bytes.
func (w *ChunkWriter) Discard() {
	w.buf.c = 0
	w.body = 0
}

// ResetSum restarts the checksum from the next written byte.
func (w *ChunkWriter) ResetSum() {
	w.sum = crc16.Init
	w.body = w.buf.c
}

// Sum16 returns the checksum of the appended and staged bytes
// written since the last ResetSum.
func (w *ChunkWriter) Sum16() uint16 {
	return crc16.Update(w.sum, w.buf.p[w.body:w.buf.c])
}

func (w *ChunkWriter) Buffered() int  { return w.buf.c }
func (w *ChunkWriter) Written() int64 { return w.written }
func (w *ChunkWriter) Lost() int64    { return w.lost }
func (w *ChunkWriter) Flushes() int   { return w.flushes }

// ReadLines scans the text file name of st line by line.
func ReadLines(st Storage, name string) ([]string, error) {
	f, err := st.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	err = sc.Err()
	if err != nil {
		return lines, fmt.Errorf("flash: could not scan %q: %w", name, err)
	}
	return lines, nil
}
