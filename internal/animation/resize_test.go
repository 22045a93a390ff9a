// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var filters = []Filter{Nearest, Triangle, CatmullRom, Gaussian, Lanczos3}

func randomNRGBA(rnd *rand.Rand, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(rnd.IntN(256))
	}
	return img
}

func TestResizeSameSize(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	src := randomNRGBA(rnd, 7, 5)
	want := make([]byte, len(src.Pix))
	for i := 0; i < len(want); i += 4 {
		want[i], want[i+1], want[i+2], want[i+3] = src.Pix[i+2], src.Pix[i+1], src.Pix[i], src.Pix[i+3]
	}
	for _, f := range filters {
		t.Run(f.String(), func(t *testing.T) {
			got := Resize(src, 7, 5, f)
			if !cmp.Equal(got, want) {
				t.Errorf("unexpected pixels for same size resize:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
			}
		})
	}
}

func TestResizeSameSizeOffsetBounds(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	src := randomNRGBA(rnd, 6, 6)
	sub := src.SubImage(image.Rect(2, 2, 5, 4)).(*image.NRGBA)
	got := Resize(sub, 3, 2, Lanczos3)
	var want []byte
	for y := 2; y < 4; y++ {
		for x := 2; x < 5; x++ {
			c := src.NRGBAAt(x, y)
			want = append(want, c.B, c.G, c.R, c.A)
		}
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected pixels for offset image:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestResizeTranslucent(t *testing.T) {
	c := color.NRGBA{R: 200, G: 100, B: 50, A: 128}
	want := []byte{50, 100, 200, 128}

	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, c)
	got := Resize(src, 1, 1, Lanczos3)
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected pixels for translucent same size resize:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}

	// Scaling a uniform translucent image keeps straight alpha
	// to within rounding.
	src = image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, c)
		}
	}
	got = Resize(src, 2, 2, Nearest)
	for i, v := range got {
		w := want[i%4]
		if v < w-1 || v > w+1 {
			t.Errorf("unexpected byte %d for translucent scaled resize: got:%d want:%d±1", i, v, w)
		}
	}
}

func TestSolidStraightAlpha(t *testing.T) {
	got := Solid(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	want := []byte{50, 100, 200, 128}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected solid pixels:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestResizeLength(t *testing.T) {
	rnd := rand.New(rand.NewPCG(5, 6))
	sizes := []image.Point{{1, 1}, {3, 7}, {16, 9}, {40, 10}, {9, 16}}
	targets := []image.Point{{1, 1}, {2, 2}, {5, 3}, {32, 18}, {7, 31}}
	for _, f := range filters {
		for _, size := range sizes {
			src := randomNRGBA(rnd, size.X, size.Y)
			for _, target := range targets {
				if size == target {
					continue
				}
				t.Run(fmt.Sprintf("%s_%v_to_%v", f, size, target), func(t *testing.T) {
					got := len(Resize(src, target.X, target.Y, f))
					want := target.X * target.Y * 4
					if got != want {
						t.Errorf("unexpected buffer length: got:%d want:%d", got, want)
					}
				})
			}
		}
	}
}

func TestResizeFills(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	green := color.RGBA{G: 0xff, A: 0xff}
	blue := color.RGBA{B: 0xff, A: 0xff}

	// Four vertical stripes; filling a square target
	// must crop the outer two.
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		src.SetRGBA(0, y, green)
		src.SetRGBA(1, y, red)
		src.SetRGBA(2, y, blue)
		src.SetRGBA(3, y, green)
	}
	got := Resize(src, 2, 2, Nearest)
	want := []byte{
		0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0xff,
		0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0xff,
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected fill result:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestFill(t *testing.T) {
	tests := []struct {
		r             image.Rectangle
		width, height int
		want          image.Rectangle
	}{
		{r: image.Rect(0, 0, 4, 2), width: 2, height: 2, want: image.Rect(1, 0, 3, 2)},
		{r: image.Rect(0, 0, 2, 4), width: 2, height: 2, want: image.Rect(0, 1, 2, 3)},
		{r: image.Rect(0, 0, 16, 9), width: 32, height: 18, want: image.Rect(0, 0, 16, 9)},
		{r: image.Rect(10, 10, 110, 20), width: 1, height: 1, want: image.Rect(55, 10, 65, 20)},
		{r: image.Rect(0, 0, 100, 1), width: 1, height: 100, want: image.Rect(49, 0, 50, 1)},
	}
	for _, test := range tests {
		got := fill(test.r, test.width, test.height)
		if got != test.want {
			t.Errorf("unexpected fill rectangle for %v to %dx%d: got:%v want:%v",
				test.r, test.width, test.height, got, test.want)
		}
	}
}

func TestResizeInvalidDimensions(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if !strings.Contains(fmt.Sprint(r), "invalid target dimensions") {
			t.Errorf("unexpected panic: %v", r)
		}
	}()
	Resize(image.NewRGBA(image.Rect(0, 0, 1, 1)), 0, 10, Nearest)
}

func TestParseFilter(t *testing.T) {
	for _, f := range filters {
		for _, name := range []string{f.String(), strings.ToUpper(f.String())} {
			got, err := ParseFilter(name)
			if err != nil {
				t.Errorf("unexpected error parsing %q: %v", name, err)
				continue
			}
			if got != f {
				t.Errorf("unexpected filter for %q: got:%v want:%v", name, got, f)
			}
		}
	}
	_, err := ParseFilter("bicubic")
	if err == nil {
		t.Error("expected error for unknown filter")
	}

	var f Filter
	err = f.UnmarshalText([]byte("Gaussian"))
	if err != nil {
		t.Errorf("unexpected error unmarshaling filter: %v", err)
	}
	if f != Gaussian {
		t.Errorf("unexpected unmarshaled filter: got:%v want:%v", f, Gaussian)
	}
}

func TestSolid(t *testing.T) {
	got := Solid(2, 1, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff})
	want := []byte{0x30, 0x20, 0x10, 0xff, 0x30, 0x20, 0x10, 0xff}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected solid fill:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}
