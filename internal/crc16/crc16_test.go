// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crc16_test

import (
	"bytes"
	"testing"

	"github.com/go-lpc/sigcap/internal/crc16"
)

func TestCRC16(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  []byte
		want uint16
	}{
		{name: "empty", raw: nil, want: 0xffff},
		{name: "bytes", raw: []byte{0x1, 0x2, 0x3, 0x4, 0x5}, want: 0x9304},
		{name: "check", raw: []byte("123456789"), want: 0x29b1},
		{name: "magic", raw: []byte("SCAP"), want: 0x4ad2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			crc := crc16.New(nil)
			if got, want := crc.BlockSize(), 1; got != want {
				t.Fatalf("invalid block size: got=%d, want=%d", got, want)
			}

			// feed one byte at a time, as the capture reader does for markers.
			for i := range tc.raw {
				_, _ = crc.Write(tc.raw[i : i+1])
			}
			if got, want := crc.Sum16(), tc.want; got != want {
				t.Fatalf("invalid checksum: got=0x%04x, want=0x%04x", got, want)
			}
			if got, want := crc16.Checksum(tc.raw), tc.want; got != want {
				t.Fatalf("invalid one-shot checksum: got=0x%04x, want=0x%04x", got, want)
			}

			half := len(tc.raw) / 2
			if got, want := crc16.Update(crc16.Update(crc16.Init, tc.raw[:half]), tc.raw[half:]), tc.want; got != want {
				t.Fatalf("invalid incremental checksum: got=0x%04x, want=0x%04x", got, want)
			}

			want := []byte{0xca, 0xfe, byte(tc.want >> 8), byte(tc.want)}
			if got := crc.Sum([]byte{0xca, 0xfe}); !bytes.Equal(got, want) {
				t.Fatalf("invalid sum: got=%x, want=%x", got, want)
			}

			crc.Reset()
			if got, want := crc.Sum16(), uint16(0xffff); got != want {
				t.Fatalf("invalid reset state: got=0x%04x, want=0x%04x", got, want)
			}
		})
	}
}
