// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Resize renders img into a width×height straight alpha BGRA pixel
// buffer. If the image already has the requested size its pixels are
// copied without resampling, otherwise the image is cropped about its center to the
// target aspect ratio and scaled to fill the target using filter.
//
// Resize panics if width or height is not positive.
func Resize(img image.Image, width, height int, filter Filter) []byte {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("invalid target dimensions: %dx%d", width, height))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	sr := img.Bounds()
	if sr.Dx() == width && sr.Dy() == height {
		copyStraight(dst, img)
	} else {
		filter.interpolator().Scale(dst, dst.Bounds(), img, fill(sr, width, height), draw.Src, nil)
	}
	toBGRA(dst.Pix)
	return dst.Pix
}

// copyStraight copies the pixels of img to dst, which must have the same
// size, keeping straight alpha.
func copyStraight(dst *image.NRGBA, img image.Image) {
	sr := img.Bounds()
	if src, ok := img.(*image.NRGBA); ok {
		n := 4 * sr.Dx()
		for y := 0; y < sr.Dy(); y++ {
			i := src.PixOffset(sr.Min.X, sr.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], src.Pix[i:i+n])
		}
		return
	}
	for y := 0; y < sr.Dy(); y++ {
		for x := 0; x < sr.Dx(); x++ {
			dst.Set(x, y, img.At(sr.Min.X+x, sr.Min.Y+y))
		}
	}
}

// fill returns the largest rectangle centered in r that has the aspect
// ratio width:height.
func fill(r image.Rectangle, width, height int) image.Rectangle {
	dx, dy := r.Dx(), r.Dy()
	switch {
	case dx*height > dy*width:
		// Too wide, so trim the sides.
		w := max(1, dy*width/height)
		off := (dx - w) / 2
		return image.Rect(r.Min.X+off, r.Min.Y, r.Min.X+off+w, r.Max.Y)
	case dx*height < dy*width:
		// Too tall, so trim top and bottom.
		h := max(1, dx*height/width)
		off := (dy - h) / 2
		return image.Rect(r.Min.X, r.Min.Y+off, r.Max.X, r.Min.Y+off+h)
	default:
		return r
	}
}

// toBGRA swaps the red and blue bytes of each pixel in an NRGBA buffer.
func toBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// Solid returns a width×height BGRA pixel buffer filled with c.
func Solid(width, height int, c color.Color) []byte {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("invalid target dimensions: %dx%d", width, height))
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	px := [4]byte{n.B, n.G, n.R, n.A}
	pix := make([]byte, 4*width*height)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], px[:])
	}
	return pix
}
