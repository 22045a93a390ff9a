// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package surface

import (
	"errors"
	"os"
)

// Framebuffer is a Linux fbdev surface.
type Framebuffer struct {
	f      *os.File
	width  int
	height int
	stride int   // Bytes per line.
	offset int64 // Byte offset of the visible area.
}

func (s *Framebuffer) Size() (width, height int) { return s.width, s.height }

// Present writes pix into the visible area of the framebuffer, one row
// at a time.
func (s *Framebuffer) Present(pix []byte) error {
	err := checkLen(pix, s.width, s.height)
	if err != nil {
		return err
	}
	row := 4 * s.width
	if row == s.stride {
		_, err = s.f.WriteAt(pix, s.offset)
		return err
	}
	for y := range s.height {
		_, err = s.f.WriteAt(pix[y*row:(y+1)*row], s.offset+int64(y*s.stride))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Framebuffer) Close() error {
	if s.f == nil {
		return errors.New("close of unopened framebuffer")
	}
	return s.f.Close()
}
