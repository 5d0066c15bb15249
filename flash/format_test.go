// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/internal/crc16"
	"github.com/stretchr/testify/require"
)

func encodeSession(t *testing.T, w io.Writer, samples []hal.Sample, recs []compress.Record, footer bool) Header {
	t.Helper()

	enc := NewEncoder(w)
	hdr := Header{BufferSize: 16384, SampleRate: 1000, Compression: compress.Hybrid}
	require.NoError(t, enc.EncodeHeader(&hdr))
	for _, s := range samples {
		require.NoError(t, enc.EncodeSample(s))
	}
	for _, rec := range recs {
		require.NoError(t, enc.EncodeRecord(rec))
	}
	if footer {
		require.NoError(t, enc.EncodeFooter(uint32(len(samples))+3))
	}
	return hdr
}

func TestRoundTrip(t *testing.T) {
	samples := []hal.Sample{{Timestamp: 10, Value: true}, {Timestamp: 1010, Value: false}}
	recs := []compress.Record{
		{Base: 2000, Run: 0, Value: true, Kind: compress.RecordDelta},
		{Base: 2000, Run: 3, Value: true, Kind: compress.RecordRLE},
	}

	buf := new(bytes.Buffer)
	hdr := encodeSession(t, buf, samples, recs, true)
	require.Equal(t, Magic, hdr.Magic)
	require.Equal(t, Version, hdr.Version)
	require.Equal(t, HeaderSize+2*SampleItemSize+2*RecordItemSize+FooterSize, buf.Len())

	c, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, hdr, c.Header)
	require.Equal(t, samples, c.Samples)
	require.Equal(t, recs, c.Records)
	require.NotNil(t, c.Footer)
	require.Equal(t, uint32(5), c.Count())
}

func TestTruncatedSession(t *testing.T) {
	samples := []hal.Sample{{Timestamp: 1}, {Timestamp: 2, Value: true}, {Timestamp: 3}}

	buf := new(bytes.Buffer)
	encodeSession(t, buf, samples, nil, false)

	c, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Nil(t, c.Footer)
	require.Equal(t, uint32(3), c.Count())

	// cut in the middle of the last sample.
	raw := buf.Bytes()[:buf.Len()-2]
	_, err = Decode(bytes.NewReader(raw))
	require.Error(t, err)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "err=%v", err)
}

func TestHeaderValidation(t *testing.T) {
	buf := new(bytes.Buffer)
	encodeSession(t, buf, []hal.Sample{{Timestamp: 1}}, nil, true)
	good := buf.Bytes()

	corrupt := func(i int, v byte) []byte {
		raw := append([]byte(nil), good...)
		raw[i] = v
		return raw
	}

	for _, tc := range []struct {
		name string
		raw  []byte
		want error
	}{
		{"magic", corrupt(0, 'X'), ErrBadMagic},
		{"version", corrupt(5, 9), ErrVersion},
		{"header-checksum", corrupt(12, 0xff), ErrChecksum},
		{"body-checksum", corrupt(HeaderSize+2, 0xff), ErrChecksum},
		{"short", good[:HeaderSize-1], io.ErrUnexpectedEOF},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.raw))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got=%v, want=%v", err, tc.want)
		})
	}

	_, err := Decode(bytes.NewReader(corrupt(HeaderSize, 0x00)))
	require.Error(t, err, "invalid item marker")
}

func TestEncoderSticky(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "capture.bin")
	enc := NewEncoder(w)

	hdr := Header{SampleRate: 10}
	require.NoError(t, enc.EncodeHeader(&hdr))
	for i := 0; i < 1000; i++ {
		require.NoError(t, enc.EncodeSample(hal.Sample{Timestamp: uint32(i), Value: i%3 == 0}))
	}
	require.NoError(t, enc.EncodeFooter(enc.Samples()))
	require.NoError(t, w.Flush())

	c, err := ReadFile(st, "capture.bin")
	require.NoError(t, err)
	require.Len(t, c.Samples, 1000)
	require.Equal(t, uint32(1000), c.Footer.SampleCount)

	st.FailWrites(errors.New("worn out"))
	big := make([]hal.Sample, ChunkSize)
	var failed error
	for _, s := range big {
		if err := enc.EncodeSample(s); err != nil {
			failed = err
			break
		}
	}
	require.Error(t, failed)
	require.Error(t, enc.EncodeSample(hal.Sample{}), "error should be sticky")
	enc.Reset()
	require.NoError(t, enc.Err())
}

func TestFooterChecksum(t *testing.T) {
	buf := new(bytes.Buffer)
	encodeSession(t, buf, []hal.Sample{{Timestamp: 1, Value: true}}, nil, true)

	c, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, c.Footer)

	body := buf.Bytes()[HeaderSize : buf.Len()-FooterSize+1]
	require.Equal(t, crc16.Checksum(body), c.Footer.Checksum)
}

func TestLostChunk(t *testing.T) {
	st := NewMemStorage()
	w := NewChunkWriter(st, "capture.bin")
	enc := NewEncoder(w)

	hdr := Header{SampleRate: 1000}
	require.NoError(t, enc.EncodeHeader(&hdr))
	require.NoError(t, w.Flush())

	const (
		perChunk = ChunkSize / SampleItemSize
		n        = 3000
	)
	in := make([]hal.Sample, n)
	for i := range in {
		in[i] = hal.Sample{Timestamp: uint32(i), Value: i%7 < 3}
	}

	var nerr int
	for i, s := range in {
		switch i {
		case 1000:
			st.FailWrites(errors.New("bad block"))
		case 1700:
			st.FailWrites(nil)
		}
		if err := enc.EncodeSample(s); err != nil {
			nerr++
			enc.Reset()
		}
	}
	require.NoError(t, enc.EncodeFooter(n))
	require.NoError(t, w.Flush())
	require.Equal(t, 1, nerr)
	require.Equal(t, int64(perChunk*SampleItemSize), w.Lost())

	c, err := ReadFile(st, "capture.bin")
	require.NoError(t, err)
	require.NotNil(t, c.Footer)
	require.Equal(t, uint32(n), c.Footer.SampleCount)

	want := append(append([]hal.Sample(nil), in[:perChunk]...), in[2*perChunk:]...)
	require.Equal(t, want, c.Samples)
}

func TestDecodePartial(t *testing.T) {
	samples := []hal.Sample{{Timestamp: 1}, {Timestamp: 2, Value: true}, {Timestamp: 3}}

	buf := new(bytes.Buffer)
	encodeSession(t, buf, samples, nil, true)

	raw := buf.Bytes()
	raw[HeaderSize+2*SampleItemSize] = 0x42
	c, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
	require.NotNil(t, c)
	require.Equal(t, samples[:2], c.Samples)
}
