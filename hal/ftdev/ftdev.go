// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ftdev provides FTDI-backed implementations of the analyzer
// hardware: a bit-bang input pin and a UART port.
package ftdev // import "github.com/go-lpc/sigcap/hal/ftdev"

import (
	"fmt"
	"io"

	"github.com/go-lpc/sigcap/hal"
	"github.com/ziutek/ftdi"
)

type ftdiDevice interface {
	Reset() error

	SetBitmode(iomask byte, mode ftdi.Mode) error
	SetFlowControl(flowctrl ftdi.FlowCtrl) error
	SetLatencyTimer(lt int) error
	SetWriteChunkSize(cs int) error
	SetReadChunkSize(cs int) error
	SetBaudrate(br int) error
	SetLineProperties(props ftdi.LineProperties) error
	PurgeBuffers() error
	Pins() (byte, error)

	io.Writer
	io.Reader
	io.Closer
}

var (
	ftdiOpen = ftdiOpenImpl
)

func ftdiOpenImpl(vid, pid uint16) (ftdiDevice, error) {
	dev, err := ftdi.OpenFirst(int(vid), int(pid), ftdi.ChannelAny)
	return dev, err
}

func open(vid, pid uint16) (ftdiDevice, error) {
	ft, err := ftdiOpen(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("ftdev: could not open FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}

	err = setup(ft)
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf("ftdev: could not initialize FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}
	return ft, nil
}

func setup(ft ftdiDevice) error {
	var err error

	err = ft.Reset()
	if err != nil {
		return fmt.Errorf("could not reset USB: %w", err)
	}

	err = ft.SetFlowControl(ftdi.FlowCtrlDisable)
	if err != nil {
		return fmt.Errorf("could not disable flow control: %w", err)
	}

	err = ft.SetLatencyTimer(2)
	if err != nil {
		return fmt.Errorf("could not set latency timer to 2: %w", err)
	}

	err = ft.SetWriteChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set write chunk-size to 0xffff: %w", err)
	}

	err = ft.SetReadChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set read chunk-size to 0xffff: %w", err)
	}

	return nil
}

// Pin reads one line of an FTDI chip in bit-bang mode.
type Pin struct {
	ft   ftdiDevice
	mask byte
	last bool
	err  error
}

// OpenPin opens the first FTDI device matching vid and pid and
// configures all its lines as inputs. bit selects the monitored line.
func OpenPin(vid, pid uint16, bit uint8) (*Pin, error) {
	if bit > 7 {
		return nil, fmt.Errorf("ftdev: invalid bit-bang line %d", bit)
	}
	ft, err := open(vid, pid)
	if err != nil {
		return nil, err
	}

	err = ft.SetBitmode(0x00, ftdi.ModeBitbang)
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf("ftdev: could not enable bitbang: %w", err)
	}

	return &Pin{ft: ft, mask: 1 << bit}, nil
}

// ReadPin returns the level of the line.
// On error, the last known level is returned and the error is kept
// until the next call to Err.
func (p *Pin) ReadPin() bool {
	v, err := p.ft.Pins()
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("ftdev: could not read pins: %w", err)
		}
		return p.last
	}
	p.last = v&p.mask != 0
	return p.last
}

// Err returns and clears the first read error.
func (p *Pin) Err() error {
	err := p.err
	p.err = nil
	return err
}

func (p *Pin) Close() error {
	return p.ft.Close()
}

// Port is a UART line provided by an FTDI chip.
type Port struct {
	ft   ftdiDevice
	open bool
	buf  []byte
	rbuf [256]byte
}

// OpenPort opens the first FTDI device matching vid and pid.
// The line is configured by Begin.
func OpenPort(vid, pid uint16) (*Port, error) {
	ft, err := open(vid, pid)
	if err != nil {
		return nil, err
	}
	return &Port{ft: ft}, nil
}

// lineProps converts line to FTDI line properties.
// FTDI chips only frame 7 or 8 data bits: 5 and 6 bits words are
// received as 7 bits ones, with the extra high bits set by the idle line.
func lineProps(line hal.Line) (ftdi.LineProperties, error) {
	var props ftdi.LineProperties
	switch line.DataBits {
	case 5, 6, 7:
		props.Bits = ftdi.DataBits7
	case 8:
		props.Bits = ftdi.DataBits8
	default:
		return props, fmt.Errorf("ftdev: unsupported data bits %d", line.DataBits)
	}

	switch line.StopBits {
	case 1:
		props.StopBits = ftdi.StopBits1
	case 2:
		props.StopBits = ftdi.StopBits2
	default:
		return props, fmt.Errorf("ftdev: unsupported stop bits %d", line.StopBits)
	}

	switch line.Parity {
	case 0:
		props.Parity = ftdi.ParityNone
	case 1:
		props.Parity = ftdi.ParityOdd
	case 2:
		props.Parity = ftdi.ParityEven
	default:
		return props, fmt.Errorf("ftdev: unsupported parity %d", line.Parity)
	}
	return props, nil
}

func (p *Port) Begin(line hal.Line) error {
	props, err := lineProps(line)
	if err != nil {
		return err
	}

	err = p.ft.SetBitmode(0, ftdi.ModeReset)
	if err != nil {
		return fmt.Errorf("ftdev: could not reset bit mode: %w", err)
	}

	err = p.ft.SetBaudrate(int(line.Baud))
	if err != nil {
		return fmt.Errorf("ftdev: could not set baud rate to %d: %w", line.Baud, err)
	}

	err = p.ft.SetLineProperties(props)
	if err != nil {
		return fmt.Errorf("ftdev: could not set line properties: %w", err)
	}

	err = p.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("ftdev: could not purge USB buffers: %w", err)
	}

	p.buf = p.buf[:0]
	p.open = true
	return nil
}

func (p *Port) End() error {
	p.open = false
	p.buf = p.buf[:0]
	return nil
}

func (p *Port) Available() int {
	if !p.open {
		return 0
	}
	if len(p.buf) == 0 {
		n, err := p.ft.Read(p.rbuf[:])
		if err != nil || n <= 0 {
			return 0
		}
		p.buf = append(p.buf, p.rbuf[:n]...)
	}
	return len(p.buf)
}

func (p *Port) ReadByte() (byte, error) {
	if p.Available() == 0 {
		return 0, io.EOF
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

func (p *Port) Write(data []byte) (int, error) {
	if !p.open {
		return 0, fmt.Errorf("ftdev: port not started")
	}
	n, err := p.ft.Write(data)
	switch {
	case err != nil:
		return n, fmt.Errorf("ftdev: could not write %d bytes: %w", len(data), err)
	case n != len(data):
		return n, fmt.Errorf("ftdev: could not write %d bytes: %w", len(data), io.ErrShortWrite)
	}
	return n, nil
}

// SetDirection switches the role of the single-wire line.
// Going back to input discards the echo of our own transmission.
func (p *Port) SetDirection(pin int, dir hal.Direction, idle bool) error {
	if dir != hal.Input {
		return nil
	}
	p.buf = p.buf[:0]
	err := p.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("ftdev: could not purge USB buffers: %w", err)
	}
	return nil
}

func (p *Port) Close() error {
	p.open = false
	return p.ft.Close()
}

var (
	_ hal.Pin         = (*Pin)(nil)
	_ hal.Port        = (*Port)(nil)
	_ hal.PinDirector = (*Port)(nil)
)
