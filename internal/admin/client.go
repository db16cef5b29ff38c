// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package admin

import (
	"encoding/gob"
	"fmt"
	"net"

	"github.com/aclements/actlysched/internal/adminproto"
)

// Client talks to a Server over its Unix socket. Grounded on
// cmd/perflock/client.go's encode-request/decode-response round trip.
type Client struct {
	c   net.Conn
	enc *gob.Encoder
	dec *gob.Decoder
}

// Dial connects to a Server listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	c, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("admin: dial %s: %w", socketPath, err)
	}
	return &Client{c: c, enc: gob.NewEncoder(c), dec: gob.NewDecoder(c)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.c.Close() }

func (c *Client) do(action interface{}, resp interface{}) error {
	if err := c.enc.Encode(adminproto.Request{Action: action}); err != nil {
		return err
	}
	return c.dec.Decode(resp)
}

// Stats fetches a CoreStats snapshot for every initialized core.
func (c *Client) Stats() (adminproto.StatsResponse, error) {
	var resp adminproto.StatsResponse
	err := c.do(adminproto.ActionStats{}, &resp)
	return resp, err
}

// QueueLens fetches core's ready-queue lengths by priority.
func (c *Client) QueueLens(core int) (adminproto.QueueLensResponse, error) {
	var resp adminproto.QueueLensResponse
	err := c.do(adminproto.ActionQueueLens{Core: core}, &resp)
	return resp, err
}
