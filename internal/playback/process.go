// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package playback renders still and animated images into pixel buffers
// for a set of outputs sharing a surface size.
//
// A still image is rendered once and returned directly. An animated image
// is played by a driver goroutine that emits each frame at its intended
// time, caching compressed copies of the rendered frames during the first
// pass and then replaying the cache until every output has been removed
// or the consumer closes the session.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/kortschak/paperd/internal/animation"
	"github.com/kortschak/paperd/internal/framecache"
	"github.com/kortschak/paperd/internal/slogext"
)

// Processor dispatches playback requests.
type Processor struct {
	// Codec is used to compress cached animation
	// frames. If nil, brotli at its default level
	// is used.
	Codec framecache.Codec

	// Log is the logger for playback sessions.
	// If nil, logging is discarded.
	Log *slog.Logger
}

// Request is a playback request.
type Request struct {
	// Outputs is the set of outputs the image
	// is shown on. It must be non-empty and
	// must not hold duplicates.
	Outputs []string

	// Width and Height are the dimensions of
	// the target surface. Both must be positive.
	Width, Height int

	// Filter is the resampling filter used
	// when the image does not match the target
	// dimensions.
	Filter animation.Filter

	// Source holds the encoded image. It must
	// have been checked for validity with
	// animation.Validate.
	Source io.Reader
}

// Result is the result of a playback request. Exactly one of Static and
// Animation is non-nil.
type Result struct {
	Static    *Frame
	Animation *Animation
}

// Frame is a rendered buffer and the outputs it is destined for. The
// Outputs slice is owned by the receiver. Pix must not be modified.
type Frame struct {
	Outputs []string
	Pix     []byte
}

// Animation is the consumer's handle on an animated playback session.
type Animation struct {
	// Frames carries the rendered frames of the session.
	// It is closed when the session terminates.
	Frames <-chan Frame

	mu     sync.Mutex
	remove chan []string
	closed bool
	done   chan struct{}
}

// Remove removes the provided outputs from the session. It returns whether
// the removal was delivered to the driver; false is returned if the session
// has terminated, the handle has been closed or ctx is cancelled. Once Remove
// returns true, no frame sent after that point will list the removed outputs,
// and if no outputs remain no further frames are sent.
func (a *Animation) Remove(ctx context.Context, outputs ...string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	select {
	case a.remove <- outputs:
		return true
	case <-a.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close releases the session. The driver terminates without emitting any
// further frames. Close is safe to call more than once.
func (a *Animation) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	close(a.remove)
}

// Done returns a channel that is closed when the session has terminated.
func (a *Animation) Done() <-chan struct{} {
	return a.done
}

var defaultCodec = func() framecache.Codec {
	c, err := framecache.NewCodec(framecache.Brotli, -1)
	if err != nil {
		panic(err)
	}
	return c
}()

// Process renders the image in req. If the source is a GIF, an animated
// session is started and returned without waiting for any frames to be
// rendered. Otherwise the image is rendered synchronously.
//
// Process panics if req is invalid or the source cannot be decoded. The
// session is terminated when ctx is cancelled.
func (p *Processor) Process(ctx context.Context, req Request) Result {
	checkRequest(req)
	log := p.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	src := animation.AsReadPeeker(req.Source)
	if !animation.IsGIF(src) {
		img, err := animation.Decode(src)
		if err != nil {
			panic(fmt.Sprintf("decode still image: %v", err))
		}
		pix := animation.Resize(img, req.Width, req.Height, req.Filter)
		log.LogAttrs(ctx, slog.LevelDebug, "rendered still", slog.Any("outputs", req.Outputs), slog.Any("pix", slogext.Pix(pix)))
		return Result{Static: &Frame{
			Outputs: slices.Clone(req.Outputs),
			Pix:     pix,
		}}
	}

	codec := p.Codec
	if codec == nil {
		codec = defaultCodec
	}
	frames := make(chan Frame)
	a := &Animation{
		Frames: frames,
		remove: make(chan []string),
		done:   make(chan struct{}),
	}
	d := &driver{
		log:     log.With(slog.String("component", "driver")),
		codec:   codec,
		width:   req.Width,
		height:  req.Height,
		filter:  req.Filter,
		outputs: slices.Clone(req.Outputs),
		frames:  frames,
		remove:  a.remove,
	}
	go func() {
		defer close(a.done)
		defer close(frames)
		d.run(ctx, src)
	}()
	return Result{Animation: a}
}

func checkRequest(req Request) {
	if len(req.Outputs) == 0 {
		panic("no outputs in playback request")
	}
	seen := make(map[string]bool, len(req.Outputs))
	for _, o := range req.Outputs {
		if seen[o] {
			panic(fmt.Sprintf("duplicate output in playback request: %q", o))
		}
		seen[o] = true
	}
	if req.Width <= 0 || req.Height <= 0 {
		panic(fmt.Sprintf("invalid playback dimensions: %dx%d", req.Width, req.Height))
	}
	if req.Source == nil {
		panic("no source in playback request")
	}
}
