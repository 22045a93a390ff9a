// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package framecache provides compressed in-memory storage for rendered
// animation frames.
package framecache

import (
	"context"
	"time"
)

// Frame is a rendered pixel buffer and its display duration.
type Frame struct {
	Pix   []byte
	Delay time.Duration
}

// Cached is a compressed frame.
type Cached struct {
	data  []byte
	Delay time.Duration
}

// Frame returns the decompressed frame.
func (c Cached) Frame(codec Codec) Frame {
	return Frame{Pix: codec.Decompress(c.data), Delay: c.Delay}
}

// Size returns the compressed size of the frame in bytes.
func (c Cached) Size() int {
	return len(c.data)
}

// Compress returns the compressed form of f.
func Compress(codec Codec, f Frame) Cached {
	return Cached{data: codec.Compress(f.Pix), Delay: f.Delay}
}

// Cache is an ordered sequence of compressed frames. A Cache must not be
// altered once it has been delivered by Build.
type Cache []Cached

// Len returns the number of frames in the cache.
func (c Cache) Len() int {
	return len(c)
}

// Size returns the total compressed size of the cache in bytes.
func (c Cache) Size() int {
	var n int
	for _, f := range c {
		n += f.Size()
	}
	return n
}

// Build compresses frames received from in with codec, appending them to
// a cache in arrival order. When in is closed the complete cache is sent
// on out and Build returns. If ctx is cancelled before in is closed, Build
// returns without sending.
//
// The send on out must not block, so out should have a buffer of at least
// one. If the send cannot proceed the cache is discarded.
func Build(ctx context.Context, codec Codec, in <-chan Frame, out chan<- Cache) {
	var cache Cache
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-in:
			if !ok {
				select {
				case out <- cache:
				default:
				}
				return
			}
			cache = append(cache, Compress(codec, f))
		}
	}
}
