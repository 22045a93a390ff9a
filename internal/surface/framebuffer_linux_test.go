// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package surface

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFramebufferPresent(t *testing.T) {
	tests := []struct {
		name   string
		stride int
		offset int64
		want   []byte
	}{
		{
			name:   "packed",
			stride: 8,
			want: []byte{
				1, 2, 3, 4, 5, 6, 7, 8,
				9, 10, 11, 12, 13, 14, 15, 16,
			},
		},
		{
			name:   "padded",
			stride: 12,
			want: []byte{
				1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0,
				9, 10, 11, 12, 13, 14, 15, 16,
			},
		},
		{
			name:   "offset",
			stride: 12,
			offset: 16,
			want: []byte{
				0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8,
				9, 10, 11, 12, 13, 14, 15, 16,
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fb")
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("unexpected error creating framebuffer file: %v", err)
			}
			fb, err := newFramebuffer(f, 2, 2, test.stride, test.offset)
			if err != nil {
				t.Fatalf("unexpected error making framebuffer: %v", err)
			}
			err = fb.Present([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
			if err != nil {
				t.Fatalf("unexpected error presenting: %v", err)
			}
			err = fb.Close()
			if err != nil {
				t.Fatalf("unexpected error closing: %v", err)
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("unexpected error reading framebuffer file: %v", err)
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected framebuffer contents:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestFramebufferGeometry(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "fb"))
	if err != nil {
		t.Fatalf("unexpected error creating framebuffer file: %v", err)
	}
	defer f.Close()
	_, err = newFramebuffer(f, 4, 1, 12, 0)
	if err == nil {
		t.Error("expected error for short line length")
	}
	_, err = newFramebuffer(f, 0, 1, 12, 0)
	if err == nil {
		t.Error("expected error for empty geometry")
	}
}

func TestOpenFramebufferNotDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fb")
	err := os.WriteFile(path, nil, 0o600)
	if err != nil {
		t.Fatalf("unexpected error writing file: %v", err)
	}
	_, err = OpenFramebuffer(path)
	if err == nil {
		t.Error("expected error opening regular file as framebuffer")
	}
}
