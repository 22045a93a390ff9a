// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"iter"
	"time"
)

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// GIF is a GIF animation. Frames are composited onto a canvas the size of
// the GIF's logical screen, honoring each frame's disposal method.
//
// A GIF holding a single frame is still a valid animation with one frame.
type GIF struct {
	*gif.GIF
}

var _ Animator = (*GIF)(nil)

// DecodeGIF returns a [GIF] decoded from the provided io.Reader. GIF delay,
// disposal and global background index values are checked for validity.
func DecodeGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, errors.New("no frames in gif")
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return nil, fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return nil, fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && idx >= len(pal) {
		return nil, fmt.Errorf("global background colour index not in palette: %d", idx)
	}
	if g.Config.Width == 0 || g.Config.Height == 0 {
		// Some encoders leave the logical screen empty,
		// so fall back to the union of the frame bounds.
		var r image.Rectangle
		for _, f := range g.Image {
			r = r.Union(f.Bounds())
		}
		g.Config.Width = r.Max.X
		g.Config.Height = r.Max.Y
	}
	return &GIF{GIF: g}, nil
}

// Len returns the number of frames in the GIF.
func (g *GIF) Len() int {
	return len(g.Image)
}

// Bounds returns the bounds of the GIF's logical screen.
func (g *GIF) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Config.Width, g.Config.Height)
}

// Delay returns the display duration of frame i.
func (g *GIF) Delay(i int) time.Duration {
	if g.GIF.Delay == nil {
		return 0
	}
	// GIF delays are in hundredths of a second.
	return 10 * time.Duration(g.GIF.Delay[i]) * time.Millisecond
}

func (g *GIF) disposal(i int) byte {
	if g.Disposal == nil {
		return gif.DisposalNone
	}
	return g.Disposal[i]
}

// background returns the fill used for the restore to background disposal.
func (g *GIF) background() color.NRGBA {
	pal, ok := g.Config.ColorModel.(color.Palette)
	if !ok {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(pal[g.BackgroundIndex]).(color.NRGBA)
}

// Frames returns an iterator over the composited frames of the GIF. The
// image yielded is reused between iterations.
//
// The canvas holds straight alpha. Pixels of a frame that are not fully
// transparent replace the canvas pixel beneath them.
func (g *GIF) Frames() iter.Seq2[image.Image, time.Duration] {
	return func(yield func(image.Image, time.Duration) bool) {
		dst := image.NewNRGBA(g.Bounds())
		background := g.background()
		for i, frame := range g.Image {
			fb := frame.Bounds().Intersect(dst.Rect)
			disposal := g.disposal(i)
			var restore *image.NRGBA
			if disposal == gif.DisposalPrevious {
				restore = image.NewNRGBA(fb)
				copyNRGBA(restore, dst, fb)
			}
			composite(dst, frame, fb)
			if !yield(dst, g.Delay(i)) {
				return
			}
			switch disposal {
			case gif.DisposalBackground:
				fillNRGBA(dst, fb, background)
			case gif.DisposalPrevious:
				copyNRGBA(dst, restore, fb)
			}
		}
	}
}

// composite writes the non-transparent pixels of src within r onto dst.
func composite(dst *image.NRGBA, src *image.Paletted, r image.Rectangle) {
	pal := make([]color.NRGBA, len(src.Palette))
	for i, c := range src.Palette {
		pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			idx := int(src.ColorIndexAt(x, y))
			if idx >= len(pal) || pal[idx].A == 0 {
				continue
			}
			dst.SetNRGBA(x, y, pal[idx])
		}
	}
}

// copyNRGBA copies the pixels of src within r to dst.
func copyNRGBA(dst, src *image.NRGBA, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(dst.Pix[dst.PixOffset(r.Min.X, y):dst.PixOffset(r.Max.X, y)], src.Pix[src.PixOffset(r.Min.X, y):src.PixOffset(r.Max.X, y)])
	}
}

// fillNRGBA sets the pixels of dst within r to c.
func fillNRGBA(dst *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetNRGBA(x, y, c)
		}
	}
}
