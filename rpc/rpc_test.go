// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/animation"
	"github.com/kortschak/paperd/internal/display"
	"github.com/kortschak/paperd/internal/locked"
	"github.com/kortschak/paperd/internal/slogext"
	"github.com/kortschak/paperd/internal/xdg"
)

var (
	verbose = flag.Bool("verbose_log", false, "print full logging")
	lines   = flag.Bool("show_lines", false, "log source code position")
)

// fakeDisplay records the requests made to it.
type fakeDisplay struct {
	mu     sync.Mutex
	sets   []setCall
	clears []clearCall
	states []display.State
}

type setCall struct {
	Names  []string
	Path   string
	Filter animation.Filter
}

type clearCall struct {
	Names []string
	Color color.Color
}

func (d *fakeDisplay) Set(_ context.Context, names []string, path string, filter animation.Filter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch path {
	case "unknown.gif":
		return fmt.Errorf("%w: %s", display.ErrUnknownOutput, "missing")
	case "bad.png":
		return fmt.Errorf("%w: %w", display.ErrImage, errors.New("not an image"))
	case "broken.gif":
		return errors.New("device failure")
	}
	d.sets = append(d.sets, setCall{Names: names, Path: path, Filter: filter})
	return nil
}

func (d *fakeDisplay) Clear(_ context.Context, names []string, c color.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears = append(d.clears, clearCall{Names: names, Color: c})
	return nil
}

func (d *fakeDisplay) Query() []display.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states
}

func TestServer(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Cleanup(func() {
		dir, err := xdg.Runtime(RuntimeDir)
		if err == nil {
			os.RemoveAll(dir)
		}
	})
	for _, network := range []string{"unix", "tcp"} {
		t.Run(network, func(t *testing.T) {
			var logBuf locked.BytesBuffer
			log := slog.New(slogext.NewJSONHandler(&logBuf, &slogext.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: slogext.NewAtomicBool(*lines),
			}))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			disp := &fakeDisplay{
				states: []display.State{
					{Name: "a", Width: 4, Height: 3, Image: "/a.gif", Filter: "lanczos3", Animated: true},
					{Name: "b", Width: 2, Height: 2},
				},
			}
			stopped := make(chan struct{})
			var once sync.Once
			stop := func() { once.Do(func() { close(stopped) }) }

			srv, err := NewServer(ctx, network, disp, stop, jsonrpc2.NetListenOptions{}, log)
			if err != nil {
				t.Fatalf("failed to start server: %v", err)
			}
			closed := false
			defer func() {
				if !closed {
					srv.Close()
				}
				if *verbose {
					t.Logf("log:\n%s\n", &logBuf)
				}
			}()

			addr, err := DefaultAddr(network)
			if err != nil {
				t.Fatalf("failed to get default address: %v", err)
			}
			if want := srv.Addr().String(); addr != want {
				t.Errorf("unexpected default address: got:%q want:%q", addr, want)
			}

			client, err := Dial(ctx, network, addr, net.Dialer{})
			if err != nil {
				t.Fatalf("failed to dial server: %v", err)
			}

			_, err = client.Who(ctx)
			if err != nil {
				t.Errorf("unexpected error from who: %v", err)
			}

			err = client.Img(ctx, []string{"a"}, "/a.gif", "Nearest")
			if err != nil {
				t.Errorf("unexpected error from img: %v", err)
			}
			err = client.Img(ctx, nil, "/b.gif", "")
			if err != nil {
				t.Errorf("unexpected error from img: %v", err)
			}
			wantSets := []setCall{
				{Names: []string{"a"}, Path: "/a.gif", Filter: animation.Nearest},
				{Path: "/b.gif", Filter: animation.Lanczos3},
			}
			if !cmp.Equal(wantSets, disp.sets) {
				t.Errorf("unexpected set calls:\n--- want:\n+++ got:\n%s", cmp.Diff(wantSets, disp.sets))
			}

			err = client.Clear(ctx, []string{"b"}, "#ff8000")
			if err != nil {
				t.Errorf("unexpected error from clear: %v", err)
			}
			err = client.Clear(ctx, nil, "")
			if err != nil {
				t.Errorf("unexpected error from clear: %v", err)
			}
			wantClears := []clearCall{
				{Names: []string{"b"}, Color: color.RGBA{R: 0xff, G: 0x80, A: 0xff}},
				{Color: color.Black},
			}
			if !cmp.Equal(wantClears, disp.clears) {
				t.Errorf("unexpected clear calls:\n--- want:\n+++ got:\n%s", cmp.Diff(wantClears, disp.clears))
			}

			states, err := client.Query(ctx)
			if err != nil {
				t.Errorf("unexpected error from query: %v", err)
			}
			if !cmp.Equal(disp.states, states) {
				t.Errorf("unexpected states:\n--- want:\n+++ got:\n%s", cmp.Diff(disp.states, states))
			}

			errorTests := []struct {
				name     string
				call     func() error
				wantCode int64
				wantType int
			}{
				{
					name:     "missing_path",
					call:     func() error { return client.Img(ctx, nil, "", "") },
					wantCode: ErrCodeInvalidMessage,
					wantType: ErrCodeParameters,
				},
				{
					name:     "bad_filter",
					call:     func() error { return client.Img(ctx, nil, "/a.gif", "bicubic") },
					wantCode: ErrCodeInvalidMessage,
					wantType: ErrCodeParameters,
				},
				{
					name:     "bad_color",
					call:     func() error { return client.Clear(ctx, nil, "red") },
					wantCode: ErrCodeInvalidMessage,
					wantType: ErrCodeParameters,
				},
				{
					name:     "unknown_output",
					call:     func() error { return client.Img(ctx, []string{"missing"}, "unknown.gif", "") },
					wantCode: ErrCodeInvalidData,
					wantType: ErrCodeNoOutput,
				},
				{
					name:     "bad_image",
					call:     func() error { return client.Img(ctx, nil, "bad.png", "") },
					wantCode: ErrCodeInvalidData,
					wantType: ErrCodeImage,
				},
				{
					name:     "internal",
					call:     func() error { return client.Img(ctx, nil, "broken.gif", "") },
					wantCode: ErrCodeInternal,
				},
				{
					name: "stop_bad_params",
					call: func() error {
						var resp Message[string]
						return client.conn.Call(ctx, Stop, json.RawMessage(`{"body":{"force":true}}`)).Await(ctx, &resp)
					},
					wantCode: ErrCodeInvalidMessage,
					wantType: ErrCodeMessageUnknownField,
				},
			}
			for _, test := range errorTests {
				t.Run(test.name, func(t *testing.T) {
					err := test.call()
					var werr *jsonrpc2.WireError
					if !errors.As(err, &werr) {
						t.Fatalf("expected wire error, got: %v", err)
					}
					if werr.Code != test.wantCode {
						t.Errorf("unexpected error code: got:%d want:%d", werr.Code, test.wantCode)
					}
					if got := ErrorType(werr); got != test.wantType {
						t.Errorf("unexpected error type: got:%d want:%d", got, test.wantType)
					}
				})
			}

			select {
			case <-stopped:
				t.Fatal("stop function called for invalid request")
			default:
			}

			err = client.Stop(ctx)
			if err != nil {
				t.Errorf("unexpected error from stop: %v", err)
			}
			select {
			case <-stopped:
			case <-ctx.Done():
				t.Fatal("stop function not called")
			}

			err = client.Close()
			if err != nil {
				t.Errorf("unexpected error closing client: %v", err)
			}
			closed = true
			err = srv.Close()
			if err != nil {
				t.Errorf("failed to close server: %v", err)
			}
			dir, err := xdg.Runtime(RuntimeDir)
			if err != nil {
				t.Fatalf("unexpected error finding runtime directory: %v", err)
			}
			for _, name := range []string{sockName, addrName} {
				_, err = os.Stat(filepath.Join(dir, name))
				if !errors.Is(err, fs.ErrNotExist) {
					t.Errorf("expected %s to be removed: %v", name, err)
				}
			}
		})
	}
}

var unmarshalMessageTests = []struct {
	name    string
	data    string
	want    Message[ClearParams] // Any type will do.
	wantErr error
}{
	{
		name: "empty",
		data: "",
		wantErr: &jsonrpc2.WireError{
			Code:    1,
			Message: "EOF",
			Data:    json.RawMessage(`{"type":13,"msg":""}`),
		},
	},
	{
		name: "missing_close",
		data: `{"time":"2006-01-02T15:04:05Z","body":{}`,
		wantErr: &jsonrpc2.WireError{
			Code:    1,
			Message: "unexpected EOF",
			Data:    json.RawMessage(`{"type":13,"msg":"eyJ0aW1lIjoiMjAwNi0wMS0wMlQxNTowNDowNVoiLCJib2R5Ijp7fQ=="}`),
		},
	},
	{
		name: "extra_field",
		data: `{"time":"2006-01-02T15:04:05Z","body":{"colour":"#000000"}}`,
		wantErr: &jsonrpc2.WireError{
			Code:    1,
			Message: `json: unknown field "colour"`,
			Data:    json.RawMessage(`{"type":12,"msg":"eyJ0aW1lIjoiMjAwNi0wMS0wMlQxNTowNDowNVoiLCJib2R5Ijp7ImNvbG91ciI6IiMwMDAwMDAifX0="}`),
		},
	},
	{
		name: "syntax_error",
		data: "not json",
		wantErr: &jsonrpc2.WireError{
			Code:    1,
			Message: "invalid character 'o' in literal null (expecting 'u')",
			Data:    json.RawMessage(`{"type":11,"offset":2,"msg":"bm90IGpzb24="}`),
		},
	},
	{
		name: "trailing_value",
		data: `{"body":{}}{}`,
		wantErr: &jsonrpc2.WireError{
			Code:    1,
			Message: "invalid character '{' after top-level value at offset 11",
			Data:    json.RawMessage(`{"type":11,"offset":11,"msg":"eyJib2R5Ijp7fX17fQ=="}`),
		},
	},
	{
		name: "valid",
		data: `{"time":"2006-01-02T15:04:05Z","body":{"outputs":["a","b"],"color":"#102030"}}`,
		want: Message[ClearParams]{
			Time: time.Date(2006, time.January, 02, 15, 4, 5, 0, time.UTC),
			Body: ClearParams{Outputs: []string{"a", "b"}, Color: "#102030"},
		},
	},
}

func TestUnmarshalMessage(t *testing.T) {
	for _, test := range unmarshalMessageTests {
		t.Run(test.name, func(t *testing.T) {
			var got Message[ClearParams]
			err := UnmarshalMessage([]byte(test.data), &got)
			if !cmp.Equal(test.wantErr, err) {
				t.Errorf("unexpected error:\n--- want:\n+++ got:\n%s",
					cmp.Diff(test.wantErr, err))
			}
			if err != nil {
				var data struct {
					Message []byte `json:"msg"`
				}
				err := json.Unmarshal(err.(*jsonrpc2.WireError).Data, &data)
				if err != nil {
					t.Fatalf("unexpected error recovering error data: %v", err)
				}
				if string(data.Message) != test.data {
					t.Errorf("unexpected error data message:\ngot: %s\nwant:%s", data.Message, test.data)
				}
				return
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected result:\n--- want:\n+++ got:\n%s",
					cmp.Diff(test.want, got))
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	for _, test := range []struct {
		err  error
		want int
	}{
		{err: NewError(ErrCodeInvalidData, "no output", map[string]any{"type": ErrCodeNoOutput}), want: ErrCodeNoOutput},
		{err: NewError(ErrCodeInternal, "failed", nil), want: 0},
		{err: NewError(ErrCodeInternal, "failed", "text"), want: 0},
	} {
		got := ErrorType(test.err.(*jsonrpc2.WireError))
		if got != test.want {
			t.Errorf("unexpected error type for %v: got:%d want:%d", test.err, got, test.want)
		}
	}
}
