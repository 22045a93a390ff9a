// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides paperd configuration types, validation and live
// configuration reloading.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// System is a complete configuration.
type System struct {
	// Network is the network the control socket
	// listens on, "unix" or "tcp".
	Network   string      `json:"network,omitempty" toml:"network"`
	LogLevel  *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	AddSource *bool       `json:"log_add_source,omitempty" toml:"log_add_source"`

	Cache   *Cache            `json:"cache,omitempty" toml:"cache"`
	Outputs map[string]Output `json:"output,omitempty" toml:"output"`
}

// Cache is the animation frame cache configuration.
type Cache struct {
	// Codec is the frame compressor, "brotli" or
	// "deflate".
	Codec string `json:"codec,omitempty" toml:"codec"`
	// Level is the compression level. If nil, the
	// codec's default is used.
	Level *int `json:"level,omitempty" toml:"level"`
}

// Output is a display output configuration.
type Output struct {
	// Device is the path to the output's framebuffer
	// device. If Device is empty, the output is headless
	// and Width and Height must be set.
	Device string `json:"device,omitempty" toml:"device"`
	Width  int    `json:"width,omitempty" toml:"width"`
	Height int    `json:"height,omitempty" toml:"height"`

	// Image is the path to the image shown on the
	// output. A leading "~/" is expanded to the
	// user's home directory.
	Image string `json:"image,omitempty" toml:"image"`
	// Filter is the name of the resampling filter.
	Filter string `json:"filter,omitempty" toml:"filter"`
}

const outputName = "output"

// Schema is the schema for a valid configuration.
const Schema = `
{
	network?:        "tcp" | "unix"
	log_level?:      _#log_level
	log_add_source?: bool
	cache?:          _#cache
	output?:         {[string]: _#output}
}

_#cache: {
	codec?: "brotli" | "deflate"
	level?: int & >=0 & <=11
}

_#output: O={
	device?: string
	width?:  int & >0
	height?: int & >0
	if O.device == _|_ {
		width:  int & >0
		height: int & >0
	}
	image?:  string
	filter?: _#filter
}

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
_#filter: =~"(?i)^(?:nearest|triangle|catmullrom|gaussian|lanczos3)$"
`

// Load returns the configuration held in the file at path.
func Load(path string) (*System, Sum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Sum{}, err
	}
	return Unmarshal(b)
}

// Unmarshal returns a, potentially partial, configuration and its semantic
// hash from the provided raw TOML data. If the data holds invalid outputs,
// they are removed from the returned configuration and a non-nil error
// describing the problems is returned with it. Other invalid data results
// in a nil configuration.
func Unmarshal(b []byte) (*System, Sum, error) {
	var cfg System
	err := toml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, Sum{}, err
	}

	paths, deferredErr := Validate(Schema, &cfg)
	if deferredErr != nil {
		err = remove(&cfg, paths)
		if err != nil {
			return nil, Sum{}, errors.Join(err, deferredErr)
		}
	}
	for name, o := range cfg.Outputs {
		o.Image, err = ExpandHome(o.Image)
		if err != nil {
			return nil, Sum{}, fmt.Errorf("output %s: %w", name, err)
		}
		cfg.Outputs[name] = o
	}

	// The JSON encoding has sorted map keys, so equal
	// configurations hash equally.
	h := sha1.New()
	err = json.NewEncoder(h).Encode(&cfg)
	if err != nil {
		return nil, Sum{}, err
	}
	return &cfg, Sum(h.Sum(nil)), deferredErr
}

// remove removes outputs in cfg that correspond to invalid field paths
// identified by Validate. Paths outside the output table are not
// repairable and result in an error.
func remove(cfg *System, paths [][]string) error {
	for _, p := range paths {
		if len(p) < 2 || p[0] != outputName {
			return fmt.Errorf("cannot repair config: invalid path: %q", strings.Join(p, "."))
		}
	}
	for _, p := range paths {
		delete(cfg.Outputs, p[1])
	}
	return nil
}

// ExpandHome replaces a leading "~/" in path with the user's home
// directory.
func ExpandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rest), nil
}

// Sum is a SHA-1 sum of a configuration's semantic content.
type Sum [sha1.Size]byte

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero returns whether s is the zero sum.
func (s Sum) IsZero() bool {
	return s == Sum{}
}
