// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// Client sends requests to a control server.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the control server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("daq: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends the named request with args, which may be nil, and
// returns the data of the reply.
func (c *Client) Call(name string, args interface{}) (json.RawMessage, error) {
	req := Request{Name: name}
	if args != nil {
		p, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("daq: could not encode %q arguments: %w", name, err)
		}
		req.Args = p
	}

	err := c.enc.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("daq: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return nil, fmt.Errorf("daq: could not decode %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return nil, fmt.Errorf("daq: %q failed: %w", name, errors.New(rep.Msg))
	}
	return rep.Data, nil
}
