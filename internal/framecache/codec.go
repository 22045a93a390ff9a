// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package framecache

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Codec is a lossless compressor for frame pixel buffers.
//
// Compress and Decompress panic on failure; they operate only on
// in-memory data produced by the same codec.
type Codec interface {
	Compress(pix []byte) []byte
	Decompress(data []byte) []byte
	String() string
}

// Codec names.
const (
	Brotli  = "brotli"
	Deflate = "deflate"
)

// DefaultLevel is the level used by NewCodec when level is negative.
var DefaultLevel = map[string]int{
	Brotli:  5,
	Deflate: 6,
}

// NewCodec returns the named codec compressing at the given level. A
// negative level selects the codec's default.
func NewCodec(name string, level int) (Codec, error) {
	if level < 0 {
		level = DefaultLevel[name]
	}
	switch name {
	case Brotli:
		if level > brotli.BestCompression {
			return nil, fmt.Errorf("invalid brotli level: %d", level)
		}
		return brotliCodec{level: level}, nil
	case Deflate:
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return nil, fmt.Errorf("invalid deflate level: %d", level)
		}
		return deflateCodec{level: level}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
}

type brotliCodec struct {
	level int
}

func (c brotliCodec) Compress(pix []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.level)
	mustWrite(w, pix)
	return buf.Bytes()
}

func (c brotliCodec) Decompress(data []byte) []byte {
	return mustReadAll(brotli.NewReader(bytes.NewReader(data)))
}

func (c brotliCodec) String() string {
	return fmt.Sprintf("%s:%d", Brotli, c.level)
}

type deflateCodec struct {
	level int
}

func (c deflateCodec) Compress(pix []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		panic(err)
	}
	mustWrite(w, pix)
	return buf.Bytes()
}

func (c deflateCodec) Decompress(data []byte) []byte {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return mustReadAll(r)
}

func (c deflateCodec) String() string {
	return fmt.Sprintf("%s:%d", Deflate, c.level)
}

func mustWrite(w io.WriteCloser, p []byte) {
	_, err := w.Write(p)
	if err != nil {
		panic(fmt.Sprintf("compress frame: %v", err))
	}
	err = w.Close()
	if err != nil {
		panic(fmt.Sprintf("compress frame: %v", err))
	}
}

func mustReadAll(r io.Reader) []byte {
	b, err := io.ReadAll(r)
	if err != nil {
		panic(fmt.Sprintf("decompress frame: %v", err))
	}
	return b
}
