// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/internal/crc16"
	"golang.org/x/xerrors"
)

// Reader scans a capture session sequentially, validating its
// header and, when present, its footer.
type Reader struct {
	r   io.Reader
	hdr Header
	buf []byte
	err error
	crc crc16.Hash16

	footer *Footer
	n      uint32 // raw samples read
}

// NewReader reads and validates the header of a capture session.
func NewReader(r io.Reader) (*Reader, error) {
	rr := &Reader{
		r:   r,
		buf: make([]byte, HeaderSize),
		crc: crc16.New(nil),
	}

	raw := rr.buf[:HeaderSize]
	_, err := io.ReadFull(r, raw)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, xerrors.Errorf("flash: could not read header: %w", err)
	}

	hdr, err := unmarshalHeader(raw)
	if err != nil {
		return nil, err
	}
	rr.hdr = hdr
	return rr, nil
}

func unmarshalHeader(raw []byte) (Header, error) {
	hdr := Header{
		Magic:       binary.BigEndian.Uint32(raw[0:]),
		Version:     binary.BigEndian.Uint16(raw[4:]),
		SampleCount: binary.BigEndian.Uint32(raw[6:]),
		BufferSize:  binary.BigEndian.Uint32(raw[10:]),
		SampleRate:  binary.BigEndian.Uint32(raw[14:]),
		Compression: compress.Kind(raw[18]),
		Checksum:    binary.BigEndian.Uint16(raw[19:]),
	}

	if hdr.Magic != Magic {
		return hdr, xerrors.Errorf("flash: got=0x%08x, want=0x%08x: %w", hdr.Magic, Magic, ErrBadMagic)
	}
	if hdr.Version != Version {
		return hdr, xerrors.Errorf("flash: got=%d, want=%d: %w", hdr.Version, Version, ErrVersion)
	}
	if crc := crc16.Checksum(raw[:HeaderSize-2]); crc != hdr.Checksum {
		return hdr, xerrors.Errorf(
			"flash: header recv=0x%04x comp=0x%04x: %w",
			hdr.Checksum, crc, ErrChecksum,
		)
	}
	if !hdr.Compression.Valid() {
		return hdr, xerrors.Errorf("flash: invalid compression kind %d", raw[18])
	}
	return hdr, nil
}

// Header returns the validated header.
func (r *Reader) Header() Header { return r.hdr }

// Footer returns the footer of the session, once Next returned io.EOF.
// A session interrupted before its end has no footer.
func (r *Reader) Footer() (Footer, bool) {
	if r.footer == nil {
		return Footer{}, false
	}
	return *r.footer, true
}

// Samples returns the number of raw samples read so far.
func (r *Reader) Samples() uint32 { return r.n }

// Next reads the next item of the session.
// Next returns io.EOF at the end of the session.
func (r *Reader) Next() (Item, error) {
	var item Item
	if r.err != nil {
		return item, r.err
	}

	marker, err := r.readMarker()
	if err != nil {
		r.err = err
		return item, err
	}

	switch marker {
	case sampleMarker:
		r.crcU8(marker)
		p := r.read(SampleItemSize - 1)
		if r.err != nil {
			return item, r.fail("could not read sample")
		}
		item.Kind = ItemSample
		item.Sample = hal.Sample{
			Timestamp: binary.BigEndian.Uint32(p[0:]),
			Value:     p[4] != 0,
		}
		r.n++

	case recordMarker:
		r.crcU8(marker)
		p := r.read(RecordItemSize - 1)
		if r.err != nil {
			return item, r.fail("could not read record")
		}
		item.Kind = ItemRecord
		item.Record = compress.Record{
			Base:  binary.BigEndian.Uint32(p[0:]),
			Run:   binary.BigEndian.Uint16(p[4:]),
			Value: p[6] != 0,
			Kind:  compress.RecordKind(p[7]),
		}

	case footerMarker:
		r.crcU8(marker)
		comp := r.crc.Sum16()
		p := r.read(FooterSize - 1)
		if r.err != nil {
			return item, r.fail("could not read footer")
		}
		ftr := Footer{
			SampleCount: binary.BigEndian.Uint32(p[0:]),
			Checksum:    binary.BigEndian.Uint16(p[4:]),
		}
		if ftr.Checksum != comp {
			r.err = xerrors.Errorf(
				"flash: body recv=0x%04x comp=0x%04x: %w",
				ftr.Checksum, comp, ErrChecksum,
			)
			return item, r.err
		}
		r.footer = &ftr
		r.err = io.EOF
		return item, r.err

	default:
		r.err = xerrors.Errorf("flash: invalid item marker (got=0x%x)", marker)
		return item, r.err
	}

	return item, nil
}

func (r *Reader) readMarker() (uint8, error) {
	_, err := io.ReadFull(r.r, r.buf[:1])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, xerrors.Errorf("flash: could not read item marker: %w", err)
	}
	return r.buf[0], nil
}

func (r *Reader) read(n int) []byte {
	p := r.buf[:n]
	_, r.err = io.ReadFull(r.r, p)
	if r.err == nil {
		_, _ = r.crc.Write(p)
	}
	return p
}

func (r *Reader) crcU8(v uint8) {
	_, _ = r.crc.Write([]byte{v})
}

func (r *Reader) fail(msg string) error {
	if errors.Is(r.err, io.EOF) {
		r.err = io.ErrUnexpectedEOF
	}
	r.err = xerrors.Errorf("flash: %s: %w", msg, r.err)
	return r.err
}

// Capture is a fully decoded capture session.
type Capture struct {
	Header  Header
	Footer  *Footer
	Samples []hal.Sample
	Records []compress.Record
}

// Decode reads a whole capture session from r.
func Decode(r io.Reader) (*Capture, error) {
	rr, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	c := &Capture{Header: rr.Header()}
	for {
		item, err := rr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return c, err
		}
		switch item.Kind {
		case ItemSample:
			c.Samples = append(c.Samples, item.Sample)
		case ItemRecord:
			c.Records = append(c.Records, item.Record)
		}
	}
	if ftr, ok := rr.Footer(); ok {
		c.Footer = &ftr
	}
	return c, nil
}

// ReadFile decodes the capture session stored in name.
func ReadFile(st Storage, name string) (*Capture, error) {
	f, err := st.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Count returns the number of samples described by the capture.
func (c *Capture) Count() uint32 {
	if c.Footer != nil {
		return c.Footer.SampleCount
	}
	return uint32(len(c.Samples) + len(compress.Replay(c.Records, 1)))
}
