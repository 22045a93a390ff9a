// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package animation provides image decoding and resizing for wallpaper
// playback.
//
// Images are rendered into tightly packed 4 byte per pixel buffers in B, G,
// R, A byte order, which is the in-memory layout of little-endian ARGB8888
// and XRGB8888 surfaces.
package animation

import (
	"image"
	"iter"
	"time"
)

// Animator is an image that can render a sequence of frames.
type Animator interface {
	// Frames returns an iterator over the composited frames of the
	// animation and the duration each frame should be displayed for.
	// The yielded image is only valid until the next iteration.
	Frames() iter.Seq2[image.Image, time.Duration]

	// Len returns the number of frames in the animation.
	Len() int
}
