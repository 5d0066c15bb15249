// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ftdev

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/go-lpc/sigcap/hal"
	"github.com/ziutek/ftdi"
)

type fakeDevice struct {
	pins   []byte
	perr   error
	rx     bytes.Buffer
	tx     bytes.Buffer
	baud   int
	props  ftdi.LineProperties
	mode   ftdi.Mode
	purges int
	closed bool
}

func (dev *fakeDevice) Reset() error                               { return nil }
func (dev *fakeDevice) SetFlowControl(ftdi.FlowCtrl) error         { return nil }
func (dev *fakeDevice) SetLatencyTimer(int) error                  { return nil }
func (dev *fakeDevice) SetWriteChunkSize(int) error                { return nil }
func (dev *fakeDevice) SetReadChunkSize(int) error                 { return nil }
func (dev *fakeDevice) SetBaudrate(br int) error                   { dev.baud = br; return nil }
func (dev *fakeDevice) PurgeBuffers() error                        { dev.purges++; return nil }
func (dev *fakeDevice) Read(p []byte) (int, error)                 { return dev.rx.Read(p) }
func (dev *fakeDevice) Write(p []byte) (int, error)                { return dev.tx.Write(p) }
func (dev *fakeDevice) Close() error                               { dev.closed = true; return nil }
func (dev *fakeDevice) SetBitmode(mask byte, mode ftdi.Mode) error { dev.mode = mode; return nil }

func (dev *fakeDevice) SetLineProperties(props ftdi.LineProperties) error {
	dev.props = props
	return nil
}

func (dev *fakeDevice) Pins() (byte, error) {
	if dev.perr != nil {
		return 0, dev.perr
	}
	if len(dev.pins) == 0 {
		return 0, io.EOF
	}
	v := dev.pins[0]
	dev.pins = dev.pins[1:]
	return v, nil
}

func withFake(t *testing.T, dev *fakeDevice) {
	t.Helper()
	orig := ftdiOpen
	ftdiOpen = func(vid, pid uint16) (ftdiDevice, error) { return dev, nil }
	t.Cleanup(func() { ftdiOpen = orig })
}

func TestPin(t *testing.T) {
	dev := &fakeDevice{pins: []byte{0x00, 0x04, 0xff, 0x03}}
	withFake(t, dev)

	if _, err := OpenPin(0x0403, 0x6001, 8); err == nil {
		t.Fatalf("expected an error for an invalid line")
	}

	pin, err := OpenPin(0x0403, 0x6001, 2)
	if err != nil {
		t.Fatalf("could not open pin: %+v", err)
	}
	defer pin.Close()

	if got, want := dev.mode, ftdi.ModeBitbang; got != want {
		t.Fatalf("invalid bit mode: got=%v, want=%v", got, want)
	}

	for i, want := range []bool{false, true, true, false} {
		if got := pin.ReadPin(); got != want {
			t.Fatalf("invalid level[%d]: got=%v, want=%v", i, got, want)
		}
	}

	dev.pins = []byte{0x04}
	_ = pin.ReadPin()
	dev.perr = fmt.Errorf("usb gone")
	if got, want := pin.ReadPin(), true; got != want {
		t.Fatalf("invalid level after error: got=%v, want=%v", got, want)
	}
	if err := pin.Err(); err == nil {
		t.Fatalf("expected a read error")
	}
	if err := pin.Err(); err != nil {
		t.Fatalf("error not cleared: %+v", err)
	}
}

func TestLineProps(t *testing.T) {
	for _, tc := range []struct {
		bits uint8
		want ftdi.DataBits
	}{
		{5, ftdi.DataBits7},
		{6, ftdi.DataBits7},
		{7, ftdi.DataBits7},
		{8, ftdi.DataBits8},
	} {
		t.Run(fmt.Sprintf("bits=%d", tc.bits), func(t *testing.T) {
			dev := &fakeDevice{}
			withFake(t, dev)

			port, err := OpenPort(0x0403, 0x6001)
			if err != nil {
				t.Fatalf("could not open port: %+v", err)
			}
			defer port.Close()

			err = port.Begin(hal.Line{Baud: 9600, DataBits: tc.bits, StopBits: 1})
			if err != nil {
				t.Fatalf("could not begin: %+v", err)
			}
			if got, want := dev.props.Bits, tc.want; got != want {
				t.Fatalf("invalid data bits: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestPort(t *testing.T) {
	dev := &fakeDevice{}
	withFake(t, dev)

	port, err := OpenPort(0x0403, 0x6001)
	if err != nil {
		t.Fatalf("could not open port: %+v", err)
	}
	defer port.Close()

	if _, err := port.Write([]byte("x")); err == nil {
		t.Fatalf("expected an error writing before Begin")
	}

	err = port.Begin(hal.Line{Baud: 5, DataBits: 9, StopBits: 1})
	if err == nil {
		t.Fatalf("expected an error for 9 data bits")
	}

	err = port.Begin(hal.Line{Baud: 115200, DataBits: 8, Parity: 2, StopBits: 1, RX: 43, TX: 44})
	if err != nil {
		t.Fatalf("could not begin: %+v", err)
	}
	if got, want := dev.baud, 115200; got != want {
		t.Fatalf("invalid baud: got=%d, want=%d", got, want)
	}
	if got, want := dev.props.Parity, ftdi.ParityEven; got != want {
		t.Fatalf("invalid parity: got=%v, want=%v", got, want)
	}

	dev.rx.WriteString("hi")
	if got, want := port.Available(), 2; got != want {
		t.Fatalf("invalid available: got=%d, want=%d", got, want)
	}
	b, _ := port.ReadByte()
	if b != 'h' {
		t.Fatalf("invalid byte: got=%q, want=%q", b, 'h')
	}

	_, err = port.Write([]byte("AT\r\n"))
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if got, want := dev.tx.String(), "AT\r\n"; got != want {
		t.Fatalf("invalid tx: got=%q, want=%q", got, want)
	}

	purges := dev.purges
	_ = port.SetDirection(43, hal.Input, true)
	if got, want := dev.purges, purges+1; got != want {
		t.Fatalf("invalid purges: got=%d, want=%d", got, want)
	}
	if got := port.Available(); got != 0 {
		t.Fatalf("echo not discarded: %d bytes", got)
	}
}
