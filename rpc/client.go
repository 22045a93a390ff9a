// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/xdg"
)

// Client is a connection to a paperd control server.
type Client struct {
	conn *jsonrpc2.Connection
}

// Dial returns a new Client connected to the server at addr on the
// provided network.
func Dial(ctx context.Context, network, addr string, dialer net.Dialer) (*Client, error) {
	conn, err := jsonrpc2.Dial(ctx, jsonrpc2.NetDialer(network, addr, dialer), jsonrpc2.ConnectionOptions{})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// DefaultAddr returns the address of a local server on the provided
// network. For unix this is the socket path, and for tcp it is read from
// the address file written by the server.
func DefaultAddr(network string) (string, error) {
	switch network {
	case "unix":
		dir, err := xdg.Runtime(RuntimeDir)
		if err != nil {
			return "", fmt.Errorf("no server runtime directory: %w", err)
		}
		return filepath.Join(dir, sockName), nil
	case "tcp":
		dir, err := xdg.Runtime(RuntimeDir)
		if err != nil {
			return "", fmt.Errorf("no server runtime directory: %w", err)
		}
		b, err := os.ReadFile(filepath.Join(dir, addrName))
		if err != nil {
			return "", fmt.Errorf("no server address: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return "", fmt.Errorf("invalid network: %q", network)
	}
}

// Who returns the version of the server.
func (c *Client) Who(ctx context.Context) (string, error) {
	var resp Message[string]
	err := c.conn.Call(ctx, Who, NewMessage(None{})).Await(ctx, &resp)
	return resp.Body, err
}

// Img shows the image at path on the named outputs, or all outputs if
// outputs is empty. The path is resolved by the server.
func (c *Client) Img(ctx context.Context, outputs []string, path, filter string) error {
	var resp Message[string]
	return c.conn.Call(ctx, Img, NewMessage(ImgParams{
		Outputs: outputs,
		Path:    path,
		Filter:  filter,
	})).Await(ctx, &resp)
}

// Clear fills the named outputs, or all outputs if outputs is empty, with
// color in #rrggbb form.
func (c *Client) Clear(ctx context.Context, outputs []string, color string) error {
	var resp Message[string]
	return c.conn.Call(ctx, Clear, NewMessage(ClearParams{
		Outputs: outputs,
		Color:   color,
	})).Await(ctx, &resp)
}

// Query returns the state of the server's outputs.
func (c *Client) Query(ctx context.Context) ([]OutputState, error) {
	var resp Message[[]OutputState]
	err := c.conn.Call(ctx, Query, NewMessage(None{})).Await(ctx, &resp)
	return resp.Body, err
}

// Stop requests that the server terminate.
func (c *Client) Stop(ctx context.Context) error {
	var resp Message[string]
	return c.conn.Call(ctx, Stop, NewMessage(None{})).Await(ctx, &resp)
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	return c.conn.Close()
}
