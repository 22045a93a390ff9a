// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/kortschak/paperd/internal/animation"
	"github.com/kortschak/paperd/internal/framecache"
	"github.com/kortschak/paperd/internal/slogext"
)

// driver plays an animated session. All fields are owned by the
// driver's goroutine.
type driver struct {
	log    *slog.Logger
	codec  framecache.Codec
	width  int
	height int
	filter animation.Filter

	outputs []string
	frames  chan<- Frame
	remove  <-chan []string

	// last is the time of the most recent emission
	// and shown is the duration it is to be shown
	// for. last is zero before the first emission.
	last  time.Time
	shown time.Duration
}

// run plays the animation in src until the session is terminated.
func (d *driver) run(ctx context.Context, src io.Reader) {
	g, err := animation.DecodeGIF(src)
	if err != nil {
		panic(fmt.Sprintf("decode animation: %v", err))
	}
	d.play(ctx, g)
}

// play plays anim until the session is terminated.
func (d *driver) play(ctx context.Context, anim animation.Animator) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.log.LogAttrs(ctx, slog.LevelDebug, "first pass", slog.Int("frames", anim.Len()), slog.Any("outputs", d.outputs))

	// The builder input can hold every frame, so forwarding
	// to it never blocks.
	in := make(chan framecache.Frame, anim.Len())
	out := make(chan framecache.Cache, 1)
	go framecache.Build(ctx, d.codec, in, out)

	for img, delay := range anim.Frames() {
		pix := animation.Resize(img, d.width, d.height, d.filter)
		select {
		case in <- framecache.Frame{Pix: pix, Delay: delay}:
		default:
		}
		if !d.emit(ctx, pix, delay) {
			return
		}
	}
	close(in)

	cache, ok := d.handoff(ctx, out)
	if !ok {
		return
	}
	d.log.LogAttrs(ctx, slog.LevelDebug, "cache complete",
		slog.Int("frames", cache.Len()),
		slog.Int("bytes", cache.Size()),
		slog.Any("codec", slogext.Stringer{Stringer: d.codec}),
	)
	if cache.Len() <= 1 {
		d.log.LogAttrs(ctx, slog.LevelDebug, "single frame animation")
		return
	}

	d.log.LogAttrs(ctx, slog.LevelDebug, "looped replay")
	for {
		for _, c := range cache {
			f := c.Frame(d.codec)
			if !d.emit(ctx, f.Pix, f.Delay) {
				return
			}
		}
	}
}

// handoff waits for the completed frame cache, servicing removals.
func (d *driver) handoff(ctx context.Context, out <-chan framecache.Cache) (framecache.Cache, bool) {
	for {
		select {
		case cache := <-out:
			return cache, true
		case ids, ok := <-d.remove:
			if !d.removed(ctx, ids, ok) {
				return nil, false
			}
		case <-ctx.Done():
			d.log.LogAttrs(ctx, slog.LevelDebug, "session cancelled", slog.String("state", "handoff"))
			return nil, false
		}
	}
}

// emit sends pix to the consumer after the previously emitted frame has
// been shown for its full duration. It returns false if the session has
// terminated.
func (d *driver) emit(ctx context.Context, pix []byte, delay time.Duration) bool {
	if !d.last.IsZero() {
		wait := max(0, d.shown-time.Since(d.last))
		timer := time.NewTimer(wait)
		defer timer.Stop()
	waiting:
		for {
			select {
			case <-timer.C:
				break waiting
			case ids, ok := <-d.remove:
				if !d.removed(ctx, ids, ok) {
					return false
				}
			case <-ctx.Done():
				d.log.LogAttrs(ctx, slog.LevelDebug, "session cancelled", slog.String("state", "wait"))
				return false
			}
		}
	}

	msg := Frame{Outputs: slices.Clone(d.outputs), Pix: pix}
	for {
		select {
		case d.frames <- msg:
			d.last = time.Now()
			d.shown = delay
			return true
		case ids, ok := <-d.remove:
			if !d.removed(ctx, ids, ok) {
				return false
			}
			msg.Outputs = slices.Clone(d.outputs)
		case <-ctx.Done():
			d.log.LogAttrs(ctx, slog.LevelDebug, "session cancelled", slog.String("state", "emit"))
			return false
		}
	}
}

// removed applies a removal notification, returning whether the session
// still has outputs. ok is false if the removal channel is closed.
func (d *driver) removed(ctx context.Context, ids []string, ok bool) bool {
	if !ok {
		d.log.LogAttrs(ctx, slog.LevelDebug, "session released")
		return false
	}
	d.outputs = slices.DeleteFunc(d.outputs, func(o string) bool {
		return slices.Contains(ids, o)
	})
	d.log.LogAttrs(ctx, slog.LevelDebug, "removed outputs", slog.Any("removed", ids), slog.Any("remaining", d.outputs))
	return len(d.outputs) != 0
}
