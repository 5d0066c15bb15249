// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"errors"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
)

const (
	Magic   uint32 = 0x53434150 // "SCAP"
	Version uint16 = 1

	HeaderSize = 4 + 2 + 4 + 4 + 4 + 1 + 2
	FooterSize = 1 + 4 + 2

	SampleItemSize = 1 + 4 + 1
	RecordItemSize = 1 + 4 + 2 + 1 + 1
)

const (
	sampleMarker = 0xa5 // raw sample
	recordMarker = 0xb4 // compressed record
	footerMarker = 0xf0 // end of session
)

var (
	ErrBadMagic = errors.New("flash: invalid magic")
	ErrVersion  = errors.New("flash: unsupported version")
	ErrChecksum = errors.New("flash: checksum mismatch")
)

// Header describes a capture session.
// Checksum is the CRC-16 of the preceding header bytes.
type Header struct {
	Magic       uint32
	Version     uint16
	SampleCount uint32
	BufferSize  uint32
	SampleRate  uint32
	Compression compress.Kind
	Checksum    uint16
}

// Footer closes a capture session.
// Checksum is the CRC-16 of every item written after the header.
type Footer struct {
	SampleCount uint32
	Checksum    uint16
}

// ItemKind tells which field of an Item is set.
type ItemKind uint8

const (
	ItemSample ItemKind = iota
	ItemRecord
)

// Item is one element of a capture body.
type Item struct {
	Kind   ItemKind
	Sample hal.Sample
	Record compress.Record
}
