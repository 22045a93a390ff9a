// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdg

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var envOrDefaultTests = []struct {
	name string
	set  map[string]string

	key, def, home string

	want   string
	wantOK bool
}{
	{
		name: "key_set",
		set: map[string]string{
			"test_HOME": "testdata/home",
			"testkey":   "testdata/home/dir",
		},
		key:  "testkey",
		def:  "testdata/global_dir",
		home: "test_HOME",

		want:   "testdata/home/dir",
		wantOK: true,
	},
	{
		name: "default_in_home",
		set: map[string]string{
			"test_HOME": "testdata/home",
		},
		key:  "testkey",
		def:  "testdata/global_dir",
		home: "test_HOME",

		want:   "testdata/home/testdata/global_dir",
		wantOK: true,
	},
	{
		name: "no_default",
		set: map[string]string{
			"test_HOME": "testdata/home",
		},
		key:  "testkey",
		def:  "",
		home: "test_HOME",

		want:   "",
		wantOK: false,
	},
	{
		name: "no_home",
		key:  "testkey",
		def:  "testdata/global_dir",
		home: "",

		want:   "testdata/global_dir",
		wantOK: true,
	},
	{
		name: "invalid_home",
		set: map[string]string{
			"test_HOME": "testdata/home",
		},
		key:  "testkey",
		def:  "testdata/global_dir",
		home: "invalid",

		want:   "",
		wantOK: false,
	},
}

func TestEnvOrDefault(t *testing.T) {
	for _, test := range envOrDefaultTests {
		t.Run(test.name, func(t *testing.T) {
			for k, v := range test.set {
				t.Setenv(k, v)
			}
			got, gotOK := envOrDefault(test.key, test.def, test.home)
			if gotOK != test.wantOK {
				t.Errorf("unexpected ok: got:%t want:%t", gotOK, test.wantOK)
			}
			if got != test.want {
				t.Errorf("unexpected result: got:%q want:%q", got, test.want)
			}
		})
	}
}

func TestMkRuntime(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("runtime directory is only taken from the environment on linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", base)
	for range 2 {
		dir, err := MkRuntime("app")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(base, "app"); dir != want {
			t.Errorf("unexpected directory: got:%q want:%q", dir, want)
		}
		fi, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if perm := fi.Mode().Perm(); perm != 0o700 {
			t.Errorf("unexpected permissions: got:%o want:700", perm)
		}
	}
	path, err := Runtime("app")
	if err != nil {
		t.Errorf("unexpected error finding runtime directory: %v", err)
	}
	if want := filepath.Join(base, "app"); path != want {
		t.Errorf("unexpected path: got:%q want:%q", path, want)
	}
}
