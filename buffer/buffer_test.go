// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"errors"
	"io"
	"math/rand"
	"reflect"
	"testing"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
	"github.com/stretchr/testify/require"
)

func newMsg() log.MsgStream {
	return log.NewMsgStream("buffer", log.LvlDebug, io.Discard)
}

func square(n int, dt uint32, period int) []hal.Sample {
	out := make([]hal.Sample, n)
	for i := range out {
		out[i] = hal.Sample{
			Timestamp: uint32(i) * dt,
			Value:     (i/period)%2 == 1,
		}
	}
	return out
}

func TestRingInvariant(t *testing.T) {
	const capacity = 64
	mgr := New(Config{Mode: RAM, Capacity: capacity}, nil, newMsg())
	if err := mgr.Begin(); err != nil {
		t.Fatalf("could not begin: %+v", err)
	}

	rnd := rand.New(rand.NewSource(1234))
	want := uint32(0)
	for i := 0; i < 5000; i++ {
		switch rnd.Intn(50) {
		case 0:
			_ = mgr.Clear()
			want = 0
		default:
			err := mgr.Record(hal.Sample{Timestamp: uint32(i)})
			switch {
			case want < capacity-1:
				if err != nil {
					t.Fatalf("could not record: %+v", err)
				}
				want++
			default:
				if !errors.Is(err, ErrFull) {
					t.Fatalf("invalid error: got=%v, want=%v", err, ErrFull)
				}
			}
		}
		if got := mgr.Usage(); got != want {
			t.Fatalf("invalid usage at step %d: got=%d, want=%d", i, got, want)
		}
		if got := mgr.Usage(); got > capacity-1 {
			t.Fatalf("usage exceeds capacity-1: %d", got)
		}
		if got, want := mgr.Full(), want == capacity-1; got != want {
			t.Fatalf("invalid full state at step %d: got=%v, want=%v", i, got, want)
		}
	}
}

func TestRAM(t *testing.T) {
	mgr := New(Config{Mode: RAM, Capacity: 16384, SampleRate: 1000}, nil, newMsg())
	_ = mgr.Begin()

	in := square(100, 1000, 7)
	for _, s := range in {
		if err := mgr.Record(s); err != nil {
			t.Fatalf("could not record: %+v", err)
		}
	}
	if got, want := mgr.Usage(), uint32(100); got != want {
		t.Fatalf("invalid usage: got=%d, want=%d", got, want)
	}
	if got, want := mgr.Capacity(), uint32(16383); got != want {
		t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
	}

	out, err := mgr.Samples()
	if err != nil {
		t.Fatalf("could not read samples: %+v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("invalid samples")
	}

	if err := mgr.Begin(); err != nil {
		t.Fatalf("could not begin: %+v", err)
	}
	if got := mgr.Usage(); got != 0 {
		t.Fatalf("buffer not cleared at session start: %d", got)
	}
}

func TestFlashFallback(t *testing.T) {
	for _, mode := range []Mode{Flash, Streaming} {
		mgr := New(Config{Mode: mode, Capacity: 1 << 20}, nil, newMsg())
		if got, want := mgr.Mode(), RAM; got != want {
			t.Fatalf("invalid fallback mode: got=%v, want=%v", got, want)
		}
		if got, want := mgr.Config().Capacity, uint32(DefaultCapacity); got != want {
			t.Fatalf("invalid fallback capacity: got=%d, want=%d", got, want)
		}
	}
}

func TestFlash(t *testing.T) {
	st := flash.NewMemStorage()
	mgr := New(Config{Mode: Flash, Capacity: 2000, SampleRate: 1000}, st, newMsg())
	require.NoError(t, mgr.Begin())

	in := square(2000, 1000, 13)
	for _, s := range in[:1999] {
		require.NoError(t, mgr.Record(s))
	}
	require.False(t, mgr.Full())
	require.NoError(t, mgr.Record(in[1999]))
	require.True(t, mgr.Full())
	require.ErrorIs(t, mgr.Record(hal.Sample{}), ErrFull)
	require.Equal(t, uint32(2000), mgr.Usage())

	require.NoError(t, mgr.Finish())

	c, err := flash.ReadFile(st, DefaultFile)
	require.NoError(t, err)
	require.Equal(t, uint32(2000), c.Header.BufferSize)
	require.Equal(t, uint32(1000), c.Header.SampleRate)
	require.NotNil(t, c.Footer)
	require.Equal(t, uint32(2000), c.Footer.SampleCount)

	out, err := mgr.Samples()
	require.NoError(t, err)
	require.Equal(t, in, out)

	require.NoError(t, mgr.Clear())
	require.Equal(t, uint32(0), mgr.Usage())
	size, err := st.Size(DefaultFile)
	require.NoError(t, err)
	require.Equal(t, int64(flash.HeaderSize), size, "capture file should only hold a header")

	out, err = mgr.Samples()
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestFlashDegraded(t *testing.T) {
	st := flash.NewMemStorage()
	mgr := New(Config{Mode: Flash, Capacity: 10000, SampleRate: 1000}, st, newMsg())
	require.NoError(t, mgr.Begin())

	const perChunk = flash.ChunkSize / flash.SampleItemSize
	in := square(3000, 1000, 3)
	var nerr int
	for i, s := range in {
		switch i {
		case 1000:
			st.FailWrites(errors.New("bad block"))
		case 1700:
			st.FailWrites(nil)
		}
		if err := mgr.Record(s); err != nil {
			nerr++
		}
	}
	require.Equal(t, 1, nerr)
	require.Equal(t, uint32(3000), mgr.Usage(), "recording must go on")

	status := mgr.Status()
	require.Equal(t, uint64(nerr), status.FlashErrors)
	require.Contains(t, status.FlashLastError, "bad block")

	// only the chunk committed while the flash was failing is lost.
	want := append(append([]hal.Sample(nil), in[:perChunk]...), in[2*perChunk:]...)
	out, err := mgr.Samples()
	require.NoError(t, err)
	require.Equal(t, want, out)

	require.NoError(t, mgr.Finish())
	out, err = mgr.Samples()
	require.NoError(t, err)
	require.Equal(t, want, out)

	c, err := flash.ReadFile(st, DefaultFile)
	require.NoError(t, err)
	require.NotNil(t, c.Footer)
	require.Equal(t, uint32(3000), c.Footer.SampleCount)
}

func TestStreaming(t *testing.T) {
	for _, kind := range []compress.Kind{compress.None, compress.RLE, compress.Delta, compress.Hybrid} {
		t.Run(kind.String(), func(t *testing.T) {
			st := flash.NewMemStorage()
			mgr := New(Config{
				Mode:        Streaming,
				Capacity:    5000,
				SampleRate:  1000,
				Compression: kind,
				StreamEvery: 100,
			}, st, newMsg())
			require.NoError(t, mgr.Begin())

			in := square(3000, 1000, 25)
			for _, s := range in[:150] {
				require.NoError(t, mgr.Record(s))
			}
			size, err := st.Size(DefaultFile)
			require.NoError(t, err)
			require.NotZero(t, size, "checkpoint should have reached the storage")

			for _, s := range in[150:] {
				require.NoError(t, mgr.Record(s))
			}
			require.NoError(t, mgr.Finish())

			out, err := mgr.Samples()
			require.NoError(t, err)
			require.Equal(t, in, out)

			status := mgr.Status()
			require.Equal(t, uint32(3000), status.SamplesWritten)
			require.Zero(t, status.Dropped)

			c, err := flash.ReadFile(st, DefaultFile)
			require.NoError(t, err)
			require.Equal(t, kind, c.Header.Compression)
			require.Equal(t, uint32(3000), c.Count())
		})
	}
}

func TestCompressed(t *testing.T) {
	mgr := New(Config{Mode: Compressed, Capacity: 500, SampleRate: 1000}, nil, newMsg())
	require.Equal(t, compress.Hybrid, mgr.Config().Compression)
	require.NoError(t, mgr.Begin())

	in := square(500, 1000, 50)
	for _, s := range in {
		require.NoError(t, mgr.Record(s))
	}
	require.True(t, mgr.Full())
	require.ErrorIs(t, mgr.Record(hal.Sample{}), ErrFull)
	require.NoError(t, mgr.Finish())

	// 10 runs: one delta marker and one RLE record each.
	require.Len(t, mgr.Records(), 20)
	out, err := mgr.Samples()
	require.NoError(t, err)
	require.Equal(t, in, out)

	status := mgr.Status()
	require.InDelta(t, compress.Ratio(500, 20), status.Ratio, 1e-9)
	require.Equal(t, 20, status.Records)

	require.NoError(t, mgr.Clear())
	require.Zero(t, mgr.Usage())
	require.Empty(t, mgr.Records())
}

func TestCompressedOverflow(t *testing.T) {
	mgr := New(Config{Mode: Compressed, Capacity: 5000, Compression: compress.Delta}, nil, newMsg())
	_ = mgr.Begin()
	for _, s := range square(1500, 1, 1) {
		if err := mgr.Record(s); err != nil {
			t.Fatalf("overflow must not fail: %+v", err)
		}
	}
	status := mgr.Status()
	if got, want := status.Records, compress.MaxRecords; got != want {
		t.Fatalf("invalid records: got=%d, want=%d", got, want)
	}
	if got, want := status.Dropped, uint64(500); got != want {
		t.Fatalf("invalid dropped records: got=%d, want=%d", got, want)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{RAM, Flash, Streaming, Compressed} {
		got, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("could not parse %v: %+v", m, err)
		}
		if got != m {
			t.Fatalf("invalid mode: got=%v, want=%v", got, m)
		}
	}
	if _, err := ParseMode("tape"); err == nil {
		t.Fatalf("expected an error")
	}
}
