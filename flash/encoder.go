// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"encoding/binary"
	"io"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/internal/crc16"
	"golang.org/x/xerrors"
)

// bodySummer is implemented by writers that checksum the body bytes
// they actually persist, such as ChunkWriter.
type bodySummer interface {
	ResetSum()
	Sum16() uint16
}

// Encoder writes a capture session to an output stream.
//
// Every item is written with a single Write call.
// Encoder computes the CRC-16 checksum of the body on the fly and
// writes it in the footer. When the output stream checksums what it
// persists, its checksum is used instead, so that dropped chunks do
// not invalidate the rest of the session.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	sum uint16

	samples uint32 // samples written as raw samples
	records uint32 // records written
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, HeaderSize),
		sum: crc16.Init,
	}
}

// EncodeHeader writes hdr, filling its magic, version and checksum.
// The header is not part of the body checksum.
func (enc *Encoder) EncodeHeader(hdr *Header) error {
	hdr.Magic = Magic
	hdr.Version = Version

	raw := hdr.marshal()
	hdr.Checksum = crc16.Checksum(raw[:HeaderSize-2])
	binary.BigEndian.PutUint16(raw[HeaderSize-2:], hdr.Checksum)

	enc.write(raw)
	enc.sum = crc16.Init
	if s, ok := enc.w.(bodySummer); ok {
		s.ResetSum()
	}
	if enc.err != nil {
		return xerrors.Errorf("flash: could not write header: %w", enc.err)
	}
	return nil
}

func (hdr Header) marshal() []byte {
	raw := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(raw[0:], hdr.Magic)
	binary.BigEndian.PutUint16(raw[4:], hdr.Version)
	binary.BigEndian.PutUint32(raw[6:], hdr.SampleCount)
	binary.BigEndian.PutUint32(raw[10:], hdr.BufferSize)
	binary.BigEndian.PutUint32(raw[14:], hdr.SampleRate)
	raw[18] = uint8(hdr.Compression)
	binary.BigEndian.PutUint16(raw[19:], hdr.Checksum)
	return raw
}

// EncodeSample writes one raw sample.
func (enc *Encoder) EncodeSample(s hal.Sample) error {
	p := enc.buf[:SampleItemSize]
	p[0] = sampleMarker
	binary.BigEndian.PutUint32(p[1:], s.Timestamp)
	p[5] = b2u8(s.Value)
	enc.write(p)
	if enc.err != nil {
		return xerrors.Errorf("flash: could not write sample: %w", enc.err)
	}
	enc.samples++
	return nil
}

// EncodeRecord writes one compressed record.
func (enc *Encoder) EncodeRecord(rec compress.Record) error {
	p := enc.buf[:RecordItemSize]
	p[0] = recordMarker
	binary.BigEndian.PutUint32(p[1:], rec.Base)
	binary.BigEndian.PutUint16(p[5:], rec.Run)
	p[7] = b2u8(rec.Value)
	p[8] = uint8(rec.Kind)
	enc.write(p)
	if enc.err != nil {
		return xerrors.Errorf("flash: could not write record: %w", enc.err)
	}
	enc.records++
	return nil
}

// EncodeFooter closes the session, recording n samples.
// The footer checksum covers the body up to and including the
// footer marker.
func (enc *Encoder) EncodeFooter(n uint32) error {
	p := enc.buf[:FooterSize]
	p[0] = footerMarker
	crc := crc16.Update(enc.body(), p[:1])
	binary.BigEndian.PutUint32(p[1:], n)
	binary.BigEndian.PutUint16(p[5:], crc)
	enc.write(p)
	if enc.err != nil {
		return xerrors.Errorf("flash: could not write footer: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) Samples() uint32 { return enc.samples }
func (enc *Encoder) Records() uint32 { return enc.records }

// Err returns the first error met by the encoder.
func (enc *Encoder) Err() error { return enc.err }

// Reset clears the sticky error.
// The body checksum is left untouched.
func (enc *Encoder) Reset() { enc.err = nil }

func (enc *Encoder) body() uint16 {
	if s, ok := enc.w.(bodySummer); ok {
		return s.Sum16()
	}
	return enc.sum
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	enc.sum = crc16.Update(enc.sum, p)
}

func b2u8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
