// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes a still image from r. GIF data is decoded as its first
// frame.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// Validate reports whether the data in r can be fully decoded, returning
// the detected format and the number of frames. Data that is not a GIF has
// a single frame.
func Validate(r io.Reader) (format string, frames int, err error) {
	rp := AsReadPeeker(r)
	if IsGIF(rp) {
		g, err := DecodeGIF(rp)
		if err != nil {
			return "gif", 0, err
		}
		return "gif", g.Len(), nil
	}
	_, format, err = image.Decode(rp)
	if err != nil {
		return format, 0, err
	}
	return format, 1, nil
}

// ReadFile returns the contents of the image file at path after checking
// that it holds a decodable image.
func ReadFile(path string) (data []byte, format string, frames int, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", 0, err
	}
	format, frames, err = Validate(bytes.NewReader(data))
	if err != nil {
		return nil, format, 0, fmt.Errorf("%s: %w", path, err)
	}
	return data, format, frames, nil
}
