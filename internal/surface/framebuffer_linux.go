// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package surface

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linux/fb.h ioctl requests.
const (
	_FBIOGET_VSCREENINFO = 0x4600
	_FBIOGET_FSCREENINFO = 0x4602
)

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// fbVarScreeninfo is struct fb_var_screeninfo.
type fbVarScreeninfo struct {
	Xres, Yres               uint32
	XresVirtual, YresVirtual uint32
	Xoffset, Yoffset         uint32
	BitsPerPixel             uint32
	Grayscale                uint32
	Red, Green, Blue, Transp fbBitfield
	Nonstd                   uint32
	Activate                 uint32
	Height, Width            uint32
	AccelFlags               uint32
	Pixclock                 uint32
	LeftMargin, RightMargin  uint32
	UpperMargin, LowerMargin uint32
	HsyncLen, VsyncLen       uint32
	Sync                     uint32
	Vmode                    uint32
	Rotate                   uint32
	Colorspace               uint32
	Reserved                 [4]uint32
}

// fbFixScreeninfo is struct fb_fix_screeninfo.
type fbFixScreeninfo struct {
	ID           [16]byte
	SmemStart    uintptr
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	Xpanstep     uint16
	Ypanstep     uint16
	Ywrapstep    uint16
	LineLength   uint32
	MmioStart    uintptr
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

func ioctl(fd uintptr, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// OpenFramebuffer opens the fbdev device at path. The device must be
// configured for 32 bits per pixel.
func OpenFramebuffer(path string) (*Framebuffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	var v fbVarScreeninfo
	err = ioctl(f.Fd(), _FBIOGET_VSCREENINFO, unsafe.Pointer(&v))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: get variable screen info: %w", path, err)
	}
	var fix fbFixScreeninfo
	err = ioctl(f.Fd(), _FBIOGET_FSCREENINFO, unsafe.Pointer(&fix))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: get fixed screen info: %w", path, err)
	}
	if v.BitsPerPixel != 32 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported pixel depth: %d bits", path, v.BitsPerPixel)
	}
	offset := int64(v.Yoffset)*int64(fix.LineLength) + int64(v.Xoffset)*4
	fb, err := newFramebuffer(f, int(v.Xres), int(v.Yres), int(fix.LineLength), offset)
	if err != nil {
		f.Close()
		return nil, err
	}
	return fb, nil
}

func newFramebuffer(f *os.File, width, height, stride int, offset int64) (*Framebuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: invalid framebuffer geometry: %dx%d", f.Name(), width, height)
	}
	if stride < 4*width {
		return nil, fmt.Errorf("%s: line length too short: %d < 4*%d", f.Name(), stride, width)
	}
	return &Framebuffer{f: f, width: width, height: height, stride: stride, offset: offset}, nil
}
