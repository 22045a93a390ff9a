// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package surface

import (
	"errors"
)

// OpenFramebuffer returns an error on platforms without fbdev.
func OpenFramebuffer(path string) (*Framebuffer, error) {
	return nil, errors.New("framebuffer devices not supported on this platform")
}
