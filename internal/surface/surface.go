// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package surface provides display surfaces that accept rendered pixel
// buffers.
//
// Pixel buffers are tightly packed 4 byte per pixel rows in B, G, R, A
// byte order.
package surface

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// Sink is a display surface.
type Sink interface {
	// Size returns the dimensions of the surface in pixels.
	Size() (width, height int)

	// Present displays pix on the surface. The length of
	// pix must be 4*width*height.
	Present(pix []byte) error

	// Close releases the surface's resources.
	Close() error
}

// checkLen returns an error if pix does not fit a width×height surface.
func checkLen(pix []byte, width, height int) error {
	if len(pix) != 4*width*height {
		return fmt.Errorf("pixel buffer length mismatch: %d != 4*%d*%d", len(pix), width, height)
	}
	return nil
}

// Discard is a headless surface that discards presented buffers.
type Discard struct {
	Width, Height int
}

func (s Discard) Size() (width, height int) { return s.Width, s.Height }
func (s Discard) Present(pix []byte) error  { return checkLen(pix, s.Width, s.Height) }
func (s Discard) Close() error              { return nil }

// Memory is a surface that records presented buffers.
type Memory struct {
	width, height int

	mu      sync.Mutex
	frames  [][]byte
	changed chan struct{}
	closed  bool
}

// NewMemory returns a new Memory surface with the provided dimensions.
func NewMemory(width, height int) *Memory {
	return &Memory{width: width, height: height, changed: make(chan struct{})}
}

func (s *Memory) Size() (width, height int) { return s.width, s.height }

// Present records a copy of pix.
func (s *Memory) Present(pix []byte) error {
	err := checkLen(pix, s.width, s.height)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("present to closed surface")
	}
	s.frames = append(s.frames, bytes.Clone(pix))
	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

// Close marks the surface as closed. Subsequent calls to Present fail.
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed returns whether the surface has been closed.
func (s *Memory) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Frames returns the buffers presented to the surface.
func (s *Memory) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

// Last returns the most recently presented buffer, or nil if nothing has
// been presented.
func (s *Memory) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// WaitFor waits until at least n buffers have been presented to the
// surface or ctx is cancelled.
func (s *Memory) WaitFor(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		got := len(s.frames)
		changed := s.changed
		s.mu.Unlock()
		if got >= n {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d frames, got %d: %w", n, got, ctx.Err())
		}
	}
}
