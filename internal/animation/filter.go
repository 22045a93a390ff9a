// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Filter is a resampling filter policy.
type Filter int

const (
	Nearest Filter = iota
	Triangle
	CatmullRom
	Gaussian
	Lanczos3
)

var filterNames = [...]string{
	Nearest:    "nearest",
	Triangle:   "triangle",
	CatmullRom: "catmullrom",
	Gaussian:   "gaussian",
	Lanczos3:   "lanczos3",
}

// ParseFilter returns the Filter with the given name. Names are matched
// case-insensitively.
func ParseFilter(name string) (Filter, error) {
	for f, n := range filterNames {
		if strings.EqualFold(name, n) {
			return Filter(f), nil
		}
	}
	return 0, fmt.Errorf("unknown filter: %q", name)
}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("Filter(%d)", int(f))
	}
	return filterNames[f]
}

// MarshalText implements the encoding.TextMarshaler interface.
func (f Filter) MarshalText() ([]byte, error) {
	if f < 0 || int(f) >= len(filterNames) {
		return nil, fmt.Errorf("invalid filter: %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (f *Filter) UnmarshalText(text []byte) error {
	var err error
	*f, err = ParseFilter(string(text))
	return err
}

// interpolator returns the x/image/draw scaler for the filter.
func (f Filter) interpolator() draw.Interpolator {
	switch f {
	case Nearest:
		return draw.NearestNeighbor
	case Triangle:
		return draw.BiLinear
	case CatmullRom:
		return draw.CatmullRom
	case Gaussian:
		return gaussian
	case Lanczos3:
		return lanczos3
	default:
		panic(fmt.Sprintf("invalid filter: %d", int(f)))
	}
}

var (
	gaussian = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		const sigma = 0.5
		return math.Exp(-t*t/(2*sigma*sigma)) / math.Sqrt(2*math.Pi*sigma*sigma)
	}}
	lanczos3 = &draw.Kernel{Support: 3, At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t < 0 {
			t = -t
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	}}
)
