// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package display manages a set of named outputs and the images shown
// on them.
package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kortschak/paperd/internal/animation"
	"github.com/kortschak/paperd/internal/config"
	"github.com/kortschak/paperd/internal/playback"
	"github.com/kortschak/paperd/internal/surface"
)

var (
	// ErrUnknownOutput is returned when a request names an
	// output that is not configured.
	ErrUnknownOutput = errors.New("unknown output")

	// ErrImage is returned when an image cannot be used.
	ErrImage = errors.New("image error")
)

// Opener opens the surface for an output configuration.
type Opener func(cfg config.Output) (surface.Sink, error)

// OpenSink is the default Opener. Outputs with a device are opened as
// framebuffers, and outputs without one are headless.
func OpenSink(cfg config.Output) (surface.Sink, error) {
	if cfg.Device == "" {
		return surface.Discard{Width: cfg.Width, Height: cfg.Height}, nil
	}
	return surface.OpenFramebuffer(cfg.Device)
}

// Manager owns a set of outputs and the playback sessions showing images
// on them.
type Manager struct {
	proc *playback.Processor
	open Opener
	log  *slog.Logger

	// ctx is the lifetime of the manager's
	// playback sessions.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	outputs  map[string]*output
	sessions map[*session]bool
}

// output is a configured output. The sink, state and session fields are
// protected by mu. A consumer only presents to an output while the output
// is attached to the consumer's session.
type output struct {
	name string
	cfg  config.Output

	mu      sync.Mutex
	sink    surface.Sink
	image   string
	filter  animation.Filter
	session *session
}

// session is an animated playback session and the consumer presenting
// its frames.
type session struct {
	anim    *playback.Animation
	outputs map[string]*output
}

// State is the state of an output.
type State struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Image    string `json:"image,omitempty"`
	Filter   string `json:"filter,omitempty"`
	Animated bool   `json:"animated"`
}

// NewManager returns a new Manager using proc to render images. If open is
// nil, OpenSink is used. Playback sessions are stopped when ctx is cancelled
// or the Manager is closed.
func NewManager(ctx context.Context, proc *playback.Processor, open Opener, log *slog.Logger) *Manager {
	if open == nil {
		open = OpenSink
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		proc:     proc,
		open:     open,
		log:      log.With(slog.String("component", "display")),
		ctx:      ctx,
		cancel:   cancel,
		outputs:  make(map[string]*output),
		sessions: make(map[*session]bool),
	}
}

// Configure sets the outputs held by the manager. Outputs no longer present
// are closed, outputs whose device or size changed are reopened and outputs
// whose image or filter changed are shown the new image. Errors from each
// output are collected and returned together; a failed output does not
// prevent others from being configured.
func (m *Manager) Configure(ctx context.Context, cfg map[string]config.Output) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, o := range m.outputs {
		if _, ok := cfg[name]; ok {
			continue
		}
		m.log.LogAttrs(ctx, slog.LevelInfo, "remove output", slog.String("name", name))
		m.detach(ctx, o)
		errs = append(errs, m.closeOutput(o))
		delete(m.outputs, name)
	}

	for _, name := range slices.Sorted(maps.Keys(cfg)) {
		c := cfg[name]
		o, ok := m.outputs[name]
		if ok && o.cfg.Device == c.Device && o.cfg.Width == c.Width && o.cfg.Height == c.Height {
			if o.cfg.Image == c.Image && o.cfg.Filter == c.Filter {
				continue
			}
			o.cfg = c
		} else {
			if ok {
				m.log.LogAttrs(ctx, slog.LevelInfo, "reopen output", slog.String("name", name))
				m.detach(ctx, o)
				errs = append(errs, m.closeOutput(o))
				delete(m.outputs, name)
			}
			sink, err := m.open(c)
			if err != nil {
				errs = append(errs, fmt.Errorf("output %s: %w", name, err))
				continue
			}
			w, h := sink.Size()
			m.log.LogAttrs(ctx, slog.LevelInfo, "open output", slog.String("name", name), slog.Int("width", w), slog.Int("height", h))
			o = &output{name: name, cfg: c, sink: sink}
			m.outputs[name] = o
		}
		if c.Image == "" {
			m.detach(ctx, o)
			continue
		}
		filter, err := parseFilter(c.Filter)
		if err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", name, err))
			continue
		}
		err = m.set(ctx, []string{name}, c.Image, filter)
		if err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) closeOutput(o *output) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := o.sink.Close()
	if err != nil {
		return fmt.Errorf("output %s: %w", o.name, err)
	}
	return nil
}

func parseFilter(name string) (animation.Filter, error) {
	if name == "" {
		return animation.Lanczos3, nil
	}
	return animation.ParseFilter(name)
}

// Set shows the image at path on the named outputs. If names is empty, the
// image is shown on all outputs. Outputs sharing a size share a single
// playback session.
func (m *Manager) Set(ctx context.Context, names []string, path string, filter animation.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(ctx, names, path, filter)
}

func (m *Manager) set(ctx context.Context, names []string, path string, filter animation.Filter) error {
	outs, err := m.lookup(names)
	if err != nil {
		return err
	}
	data, format, frames, err := animation.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImage, err)
	}
	m.log.LogAttrs(ctx, slog.LevelInfo, "set image",
		slog.String("path", path),
		slog.String("format", format),
		slog.Int("frames", frames),
		slog.Any("outputs", names),
	)

	for _, o := range outs {
		m.detach(ctx, o)
	}
	var errs []error
	for _, group := range groupBySize(outs) {
		ids := make([]string, len(group))
		for i, o := range group {
			ids[i] = o.name
		}
		w, h := group[0].sink.Size()
		res := m.proc.Process(m.ctx, playback.Request{
			Outputs: ids,
			Width:   w,
			Height:  h,
			Filter:  filter,
			Source:  bytes.NewReader(data),
		})
		if res.Static != nil {
			for _, o := range group {
				o.mu.Lock()
				o.image = path
				o.filter = filter
				err := o.sink.Present(res.Static.Pix)
				o.mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("output %s: %w", o.name, err))
				}
			}
			continue
		}
		s := &session{anim: res.Animation, outputs: make(map[string]*output, len(group))}
		for _, o := range group {
			s.outputs[o.name] = o
			o.mu.Lock()
			o.image = path
			o.filter = filter
			o.session = s
			o.mu.Unlock()
		}
		m.sessions[s] = true
		m.wg.Add(1)
		go m.play(s)
	}
	return errors.Join(errs...)
}

// play presents the frames of an animated session until the session
// terminates.
func (m *Manager) play(s *session) {
	defer m.wg.Done()
	for f := range s.anim.Frames {
		for _, name := range f.Outputs {
			o := s.outputs[name]
			o.mu.Lock()
			if o.session == s {
				err := o.sink.Present(f.Pix)
				if err != nil {
					m.log.LogAttrs(m.ctx, slog.LevelWarn, "present frame", slog.String("name", name), slog.Any("error", err))
				}
			}
			o.mu.Unlock()
		}
	}
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
	m.log.LogAttrs(m.ctx, slog.LevelDebug, "session ended", slog.Any("outputs", slices.Sorted(maps.Keys(s.outputs))))
}

// detach removes o from any session it is attached to. No frame from that
// session is presented to o after detach returns.
func (m *Manager) detach(ctx context.Context, o *output) {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.image = ""
	o.mu.Unlock()
	if s == nil {
		return
	}
	if !s.anim.Remove(m.ctx, o.name) {
		m.log.LogAttrs(ctx, slog.LevelDebug, "remove from ended session", slog.String("name", o.name))
	}
}

// groupBySize returns outs grouped by sink dimensions, ordered by the first
// appearance of each size.
func groupBySize(outs []*output) [][]*output {
	type size struct{ w, h int }
	idx := make(map[size]int)
	var groups [][]*output
	for _, o := range outs {
		w, h := o.sink.Size()
		i, ok := idx[size{w, h}]
		if !ok {
			i = len(groups)
			idx[size{w, h}] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], o)
	}
	return groups
}

// Clear fills the named outputs with c. If names is empty, all outputs are
// cleared.
func (m *Manager) Clear(ctx context.Context, names []string, c color.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	outs, err := m.lookup(names)
	if err != nil {
		return err
	}
	var errs []error
	for _, o := range outs {
		m.detach(ctx, o)
		w, h := o.sink.Size()
		o.mu.Lock()
		err := o.sink.Present(animation.Solid(w, h, c))
		o.mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("output %s: %w", o.name, err))
		}
	}
	return errors.Join(errs...)
}

// lookup returns the named outputs in sorted order, or all outputs if names
// is empty.
func (m *Manager) lookup(names []string) ([]*output, error) {
	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(m.outputs))
	} else {
		names = slices.Compact(slices.Sorted(slices.Values(names)))
	}
	outs := make([]*output, 0, len(names))
	var missing []string
	for _, n := range names {
		o, ok := m.outputs[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		outs = append(outs, o)
	}
	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, strings.Join(missing, ", "))
	}
	return outs, nil
}

// Query returns the state of all outputs, sorted by name.
func (m *Manager) Query() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]State, 0, len(m.outputs))
	for _, name := range slices.Sorted(maps.Keys(m.outputs)) {
		o := m.outputs[name]
		w, h := o.sink.Size()
		o.mu.Lock()
		st := State{
			Name:     name,
			Width:    w,
			Height:   h,
			Image:    o.image,
			Animated: o.session != nil,
		}
		if o.image != "" {
			st.Filter = o.filter.String()
		}
		o.mu.Unlock()
		states = append(states, st)
	}
	return states
}

// Close stops all playback sessions and closes all outputs.
func (m *Manager) Close() error {
	m.mu.Lock()
	var errs []error
	for name, o := range m.outputs {
		o.mu.Lock()
		o.session = nil
		o.mu.Unlock()
		errs = append(errs, m.closeOutput(o))
		delete(m.outputs, name)
	}
	for s := range m.sessions {
		s.anim.Close()
	}
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
	return errors.Join(errs...)
}

// ParseColor parses a color in #rrggbb form.
func ParseColor(s string) (color.RGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color: %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color: %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
