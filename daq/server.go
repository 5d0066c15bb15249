// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap/analyzer"
)

// Request is a command sent to the control server.
type Request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Reply is the answer of the control server to a Request.
// Msg is "ok" on success, the error message otherwise.
type Reply struct {
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server serves control requests over TCP.
type Server struct {
	ctl net.Listener
	msg log.MsgStream
	dev *Device
}

func NewServer(addr string, dev *Device, msg log.MsgStream) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("daq: could not create control server on %q: %w", addr, err)
	}
	return &Server{ctl: ctl, msg: msg, dev: dev}, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr { return srv.ctl.Addr() }

// Serve accepts connections until ctx is done or the server is closed.
func (srv *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = srv.ctl.Close()
	}()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("daq: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

func (srv *Server) Close() error {
	return srv.ctl.Close()
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Debugf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Debugf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Errorf("could not decode command request: %+v", err)
				_ = enc.Encode(Reply{Msg: err.Error()})
			}
			return
		}
		srv.msg.Debugf("received request: name=%q", req.Name)

		rep := Reply{Msg: "ok"}
		data, err := srv.dispatch(req)
		switch {
		case err != nil:
			srv.msg.Errorf("could not run %q: %+v", req.Name, err)
			rep.Msg = err.Error()
		case data != nil:
			rep.Data, err = json.Marshal(data)
			if err != nil {
				rep.Msg = fmt.Sprintf("could not encode %q reply: %+v", req.Name, err)
				rep.Data = nil
			}
		}

		err = enc.Encode(rep)
		if err != nil {
			srv.msg.Errorf("could not send reply: %+v", err)
			return
		}
	}
}

func raw(p []byte, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return json.RawMessage(p), nil
}

func (srv *Server) dispatch(req Request) (interface{}, error) {
	var (
		out interface{}
		err error
	)
	args := func(v interface{}) error {
		if len(req.Args) == 0 {
			return fmt.Errorf("daq: missing arguments for %q", req.Name)
		}
		err := json.Unmarshal(req.Args, v)
		if err != nil {
			return fmt.Errorf("daq: could not decode %q arguments: %w", req.Name, err)
		}
		return nil
	}

	name := strings.ToLower(req.Name)
	err = srv.dev.Do(func(a *analyzer.Analyzer) error {
		var err error
		switch name {
		case "start":
			a.StartCapture()
			out = a.Status()
		case "stop":
			a.StopCapture()
			out = a.Status()
		case "status":
			out = a.Status()
		case "advanced-status":
			out = a.AdvancedStatus()
		case "config":
			out = a.Config()
		case "configure":
			cfg := a.Config()
			if err = args(&cfg); err != nil {
				return err
			}
			a.Configure(cfg)
			out = a.Config()
		case "samples-json":
			out, err = raw(a.SamplesJSON())
		case "samples-csv":
			var p []byte
			p, err = a.SamplesCSV()
			out = string(p)
		case "clear":
			a.ClearBuffer()
		case "uart-config":
			out, err = raw(a.UartConfigJSON())
		case "uart-configure":
			cfg := a.UartConfig()
			if err = args(&cfg); err != nil {
				return err
			}
			err = a.ConfigureUart(cfg)
			if err == nil {
				out, err = raw(a.UartConfigJSON())
			}
		case "uart-enable":
			err = a.EnableUartMonitoring()
		case "uart-disable":
			err = a.DisableUartMonitoring()
		case "uart-logs":
			out, err = raw(a.UartLogsJSON())
		case "uart-text":
			out, err = a.UartLogsText()
		case "uart-clear":
			err = a.ClearUartLogs()
		case "uart-compact":
			out, err = a.CompactUartLogs()
		case "uart-stats":
			out, err = raw(a.UartStatsJSON())
		case "uart-send":
			var cmd string
			if err = args(&cmd); err != nil {
				return err
			}
			if !a.SendHalfDuplexCommand(cmd) {
				return fmt.Errorf("daq: half-duplex command %q rejected", cmd)
			}
		case "dual":
			var on bool
			if err = args(&on); err != nil {
				return err
			}
			if !a.EnableDualMode(on) {
				st := a.DualModeStatus()
				return fmt.Errorf("daq: dual mode rejected (UART RX pin %d, GPIO pin %d)", st.RX, st.Pin)
			}
			out = a.DualModeStatus()
		case "dual-status":
			out = a.DualModeStatus()
		case "logs":
			out, err = raw(a.LogsJSON())
		case "logs-clear":
			a.ClearLogs()
		default:
			return fmt.Errorf("daq: unknown command %q", req.Name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
