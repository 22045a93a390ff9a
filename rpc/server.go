// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/animation"
	"github.com/kortschak/paperd/internal/display"
	"github.com/kortschak/paperd/internal/slogext"
	"github.com/kortschak/paperd/internal/version"
	"github.com/kortschak/paperd/internal/xdg"
)

// RuntimeDir is the path within XDG_RUNTIME_DIR that the server's unix
// socket and tcp address file are created in.
const RuntimeDir = "paperd"

const (
	sockName = "sock"
	addrName = "addr"
)

// Display is the set of outputs controlled by a Server.
type Display interface {
	Set(ctx context.Context, names []string, path string, filter animation.Filter) error
	Clear(ctx context.Context, names []string, c color.Color) error
	Query() []display.State
}

// Server is a JSON RPC 2 control server.
type Server struct {
	listener *netListener
	server   *jsonrpc2.Server
	network  string
	addrFile string

	display Display
	stop    func()

	log *slog.Logger
}

// NewServer returns a new Server communicating over the provided network
// which may be either "unix" or "tcp", controlling disp. When a stop
// request is received, stop is called. The unix socket is created in the
// RuntimeDir directory. For tcp, the server listens on an ephemeral
// localhost port and writes its address to a file in RuntimeDir.
func NewServer(ctx context.Context, network string, disp Display, stop func(), options jsonrpc2.NetListenOptions, log *slog.Logger) (*Server, error) {
	s := Server{
		network: network,
		display: disp,
		stop:    stop,
		log:     log.With(slog.String("component", "rpc")),
	}

	dir, err := xdg.MkRuntime(RuntimeDir)
	if err != nil {
		return nil, err
	}
	var laddr string
	switch network {
	case "unix":
		laddr = filepath.Join(dir, sockName)
		s.log.LogAttrs(ctx, slog.LevelDebug, "server socket", slog.String("path", laddr))
	case "tcp":
		laddr = "localhost:0"
	default:
		return nil, fmt.Errorf("invalid network: %q", network)
	}

	s.listener, err = newNetListener(ctx, network, laddr, options)
	if err != nil {
		return nil, err
	}
	if network == "tcp" {
		s.addrFile = filepath.Join(dir, addrName)
		err = os.WriteFile(s.addrFile, []byte(s.listener.Addr().String()), 0o600)
		if err != nil {
			s.listener.Close()
			return nil, fmt.Errorf("failed to write address file: %w", err)
		}
	}
	s.server = jsonrpc2.NewServer(ctx, s.listener, &s)

	s.log.LogAttrs(ctx, slog.LevelDebug, "new server", slog.String("network", s.network), slog.Any("addr", slogext.Stringer{Stringer: s.listener.Addr()}))
	return &s, nil
}

// Addr returns the listener address of the server.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Bind binds the server's handler to a connection.
func (s *Server) Bind(ctx context.Context, conn *jsonrpc2.Connection) jsonrpc2.ConnectionOptions {
	s.log.LogAttrs(ctx, slog.LevelDebug, "binding")
	return jsonrpc2.ConnectionOptions{
		Handler: s,
	}
}

// Handle is the server's message handler.
func (s *Server) Handle(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	s.log.LogAttrs(ctx, slog.LevelDebug, "handle", slog.Any("req", slogext.Request{Request: req}))

	switch req.Method {
	case Who:
		var m Message[None]
		err := UnmarshalMessage(req.Params, &m)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
			return nil, err
		}
		v, err := version.String()
		if err != nil {
			v = err.Error()
		}
		return s.reply(ctx, req, v, nil)

	case Img:
		var m Message[ImgParams]
		err := UnmarshalMessage(req.Params, &m)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
			return nil, err
		}
		return s.reply(ctx, req, "ok", s.img(ctx, req, m))

	case Clear:
		var m Message[ClearParams]
		err := UnmarshalMessage(req.Params, &m)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
			return nil, err
		}
		return s.reply(ctx, req, "ok", s.clear(ctx, req, m))

	case Query:
		var m Message[None]
		err := UnmarshalMessage(req.Params, &m)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
			return nil, err
		}
		return s.reply(ctx, req, s.display.Query(), nil)

	case Stop:
		var m Message[None]
		err := UnmarshalMessage(req.Params, &m)
		if err != nil {
			s.log.LogAttrs(ctx, slog.LevelError, req.Method, slog.Any("error", err))
			return nil, err
		}
		s.log.LogAttrs(ctx, slog.LevelInfo, "stop requested")
		s.stop()
		return s.reply(ctx, req, "ok", nil)

	default:
		return nil, jsonrpc2.ErrNotHandled
	}
}

// reply returns the response for a request. Notifications have no result.
func (s *Server) reply(ctx context.Context, req *jsonrpc2.Request, body any, err error) (any, error) {
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, req.Method, slog.Any("error", err))
		return nil, err
	}
	if !req.IsCall() {
		return nil, nil
	}
	return NewMessage(body), nil
}

func (s *Server) img(ctx context.Context, req *jsonrpc2.Request, m Message[ImgParams]) error {
	s.log.LogAttrs(ctx, slog.LevelDebug, req.Method, slog.Any("message", m))
	if m.Body.Path == "" {
		return NewError(ErrCodeInvalidMessage, "missing image path", map[string]any{
			"type": ErrCodeParameters,
		})
	}
	filter := animation.Lanczos3
	if m.Body.Filter != "" {
		var err error
		filter, err = animation.ParseFilter(m.Body.Filter)
		if err != nil {
			return NewError(ErrCodeInvalidMessage, err.Error(), map[string]any{
				"type":   ErrCodeParameters,
				"filter": m.Body.Filter,
			})
		}
	}
	return displayError(s.display.Set(ctx, m.Body.Outputs, m.Body.Path, filter))
}

func (s *Server) clear(ctx context.Context, req *jsonrpc2.Request, m Message[ClearParams]) error {
	s.log.LogAttrs(ctx, slog.LevelDebug, req.Method, slog.Any("message", m))
	var c color.Color = color.Black
	if m.Body.Color != "" {
		rgba, err := display.ParseColor(m.Body.Color)
		if err != nil {
			return NewError(ErrCodeInvalidMessage, err.Error(), map[string]any{
				"type":  ErrCodeParameters,
				"color": m.Body.Color,
			})
		}
		c = rgba
	}
	return displayError(s.display.Clear(ctx, m.Body.Outputs, c))
}

// displayError converts an error returned by a Display to a wire error.
func displayError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, display.ErrUnknownOutput):
		return NewError(ErrCodeInvalidData, err.Error(), map[string]any{
			"type": ErrCodeNoOutput,
		})
	case errors.Is(err, display.ErrImage):
		return NewError(ErrCodeInvalidData, err.Error(), map[string]any{
			"type": ErrCodeImage,
		})
	default:
		return NewError(ErrCodeInternal, err.Error(), nil)
	}
}

// Close closes the server. The unix socket or tcp address file is removed.
func (s *Server) Close() error {
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "close")
	s.server.Shutdown()
	err := s.server.Wait()
	if s.addrFile != "" {
		rerr := os.Remove(s.addrFile)
		if rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			s.log.LogAttrs(context.Background(), slog.LevelWarn, "failed to remove address file", slog.Any("error", rerr))
		}
	}
	return err
}
