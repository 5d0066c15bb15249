// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"reflect"
	"strings"
	"testing"
)

func feed(f *Framer, data string, now uint32) []string {
	var lines []string
	for _, b := range []byte(data) {
		if line, ok := f.Feed(b, now); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestFramer(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		poll uint32 // time of the poll after the input, in ms.
		want []string
	}{
		{
			name: "lines",
			in:   "AB\nCD\r",
			poll: 5000,
			want: []string{"AB", "CD"},
		},
		{
			name: "crlf",
			in:   "OK\r\n\r\nERR\r\n",
			poll: 10,
			want: []string{"OK", "ERR"},
		},
		{
			name: "timeout",
			in:   "AB\nCD",
			poll: 1001,
			want: []string{"AB", "CD [TIMEOUT]"},
		},
		{
			name: "no-timeout-yet",
			in:   "AB\nCD",
			poll: 1000,
			want: []string{"AB"},
		},
		{
			name: "hex",
			in:   "a\x1bb\x00\xff\n",
			poll: 0,
			want: []string{"a[0x1B]b[0x0][0xFF]"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFramer()
			got := feed(f, tc.in, 0)
			if line, ok := f.Poll(tc.poll); ok {
				got = append(got, line)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid lines:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestFramerTruncate(t *testing.T) {
	f := NewFramer()
	got := feed(f, strings.Repeat("x", MaxLineLen+5), 0)
	want := []string{strings.Repeat("x", MaxLineLen+1) + " [TRUNCATED]"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid lines:\ngot= %q\nwant=%q", got, want)
	}
	if got, want := f.Pending(), "xxxx"; got != want {
		t.Fatalf("invalid pending line: got=%q, want=%q", got, want)
	}

	// escapes count for their full length.
	f.Reset()
	got = feed(f, strings.Repeat("\x01", 41), 0)
	if len(got) != 1 || !strings.HasSuffix(got[0], " [TRUNCATED]") {
		t.Fatalf("invalid lines: %q", got)
	}
}

func TestFramerActivity(t *testing.T) {
	f := NewFramer()
	feed(f, "AB", 0)
	feed(f, "C", 900)
	if _, ok := f.Poll(1800); ok {
		t.Fatalf("line flushed while still active")
	}
	line, ok := f.Poll(1901)
	if !ok {
		t.Fatalf("idle line not flushed")
	}
	if got, want := line, "ABC [TIMEOUT]"; got != want {
		t.Fatalf("invalid line: got=%q, want=%q", got, want)
	}
}
