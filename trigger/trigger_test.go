// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trigger

import (
	"testing"
)

func TestEngine(t *testing.T) {
	for _, tc := range []struct {
		mode   Mode
		levels []bool
		want   int // index of the arming sample, -1 when never armed.
	}{
		{None, []bool{false, true}, 0},
		{None, nil, -1},
		{Rising, []bool{false, false, true}, 2},
		{Rising, []bool{true, true, false, true}, 3},
		{Rising, []bool{true, true, true}, -1},
		{Falling, []bool{false, true, true, false}, 3},
		{Falling, []bool{false, false}, -1},
		{BothEdges, []bool{true, true, false, false, true}, 2},
		{BothEdges, []bool{false, true}, 1},
		{High, []bool{false, false, true}, 2},
		{High, []bool{true}, 0},
		{Low, []bool{true, false}, 1},
		{Low, []bool{true, true}, -1},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			e := New(tc.mode)
			if tc.mode == None && !e.Armed() {
				t.Fatalf("NONE should arm on reset")
			}
			got := -1
			for i, v := range tc.levels {
				if e.Evaluate(v) && got < 0 {
					got = i
				}
			}
			if got != tc.want {
				t.Fatalf("invalid arming index: got=%d, want=%d", got, tc.want)
			}
		})
	}
}

func TestEngineStaysArmed(t *testing.T) {
	e := New(Rising)
	for i, v := range []bool{false, true, false, false, true} {
		armed := e.Evaluate(v)
		if got, want := armed, i >= 1; got != want {
			t.Fatalf("invalid armed state[%d]: got=%v, want=%v", i, got, want)
		}
	}

	e.Reset(Falling)
	if e.Armed() {
		t.Fatalf("engine armed after reset")
	}
	if e.Evaluate(false) {
		t.Fatalf("first level after reset must only seed the engine")
	}
	if got, want := e.Mode(), Falling; got != want {
		t.Fatalf("invalid mode: got=%v, want=%v", got, want)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
		err  bool
	}{
		{"none", None, false},
		{"RISING", Rising, false},
		{" falling ", Falling, false},
		{"both_edges", BothEdges, false},
		{"both", BothEdges, false},
		{"high", High, false},
		{"low", Low, false},
		{"sideways", None, true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			switch {
			case err != nil && !tc.err:
				t.Fatalf("could not parse %q: %+v", tc.in, err)
			case err == nil && tc.err:
				t.Fatalf("expected an error")
			}
			if got != tc.want {
				t.Fatalf("invalid mode: got=%v, want=%v", got, tc.want)
			}
		})
	}

	if got, want := Mode(42).String(), "Mode(42)"; got != want {
		t.Fatalf("invalid string: got=%q, want=%q", got, want)
	}
	if Mode(42).Valid() {
		t.Fatalf("Mode(42) should be invalid")
	}
}
