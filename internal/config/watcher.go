// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a configuration change identified by a Watcher. If the
// configuration file was removed, Config is nil and Err is nil.
type Change struct {
	Event  []fsnotify.Event
	Config *System
	Sum    Sum
	Err    error
}

// Op returns an aggregated fsnotify.Op for all elements of the receivers'
// Event field.
func (c Change) Op() fsnotify.Op {
	var op fsnotify.Op
	for _, e := range c.Event {
		op |= e.Op
	}
	return op
}

func (c Change) LogValue() slog.Value {
	events := make([]eventValue, len(c.Event))
	for i, e := range c.Event {
		events[i] = eventValue{Name: e.Name, Op: e.Op.String(), Code: int(e.Op)}
	}
	return slog.AnyValue(struct {
		Event  []eventValue `json:"event"`
		Config *System      `json:"config"`
		Sum    string       `json:"sum"`
		Err    error        `json:"err"`
	}{
		Event:  events,
		Config: c.Config,
		Sum:    c.Sum.String(),
		Err:    c.Err,
	})
}

type eventValue struct {
	Name string `json:"name"`
	Op   string `json:"op"`
	Code int    `json:"op_code"`
}

// Watcher watches a configuration file and sends semantically meaningful
// changes to its contents.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	last     Sum
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher starts a Watcher for the configuration file at path, sending
// changes on the provided channel. The current contents of the file, if it
// exists, are sent as an initial create change. The directory holding the
// file is watched so that files replaced by renaming are seen. The debounce
// parameter specifies how long to wait after an fsnotify.Event before reading
// the file to ensure that writes will be reflected in the semantic hash. If
// it is less than zero, FileDebounce is used.
func NewWatcher(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		log:      log.With(slog.String("component", "config_watcher")),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		w.init(ctx)
		w.process(ctx)
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// init sends the current configuration if the file exists.
func (w *Watcher) init(ctx context.Context) {
	_, err := os.Stat(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		w.log.LogAttrs(ctx, slog.LevelDebug, "no config file", slog.String("path", w.path))
		return
	}
	w.load(ctx, fsnotify.Event{Name: w.path, Op: fsnotify.Create}, true)
}

// process watches the fsnotify.Watcher events performing aggregation and
// semantic filtering.
func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "write", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.debounce):
				}
				w.load(ctx, ev, false)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.String("name", ev.Name))
				w.last = Sum{}
				w.send(ctx, Change{Event: []fsnotify.Event{ev}})
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

// load reads and sends the configuration if its semantic content has
// changed or force is true.
func (w *Watcher) load(ctx context.Context, ev fsnotify.Event, force bool) {
	cfg, sum, err := Load(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		// Renamed away while debouncing.
		return
	}
	if !force && cfg != nil && sum == w.last {
		w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.String("sum", sum.String()))
		return
	}
	if cfg != nil {
		w.last = sum
	}
	w.send(ctx, Change{Event: []fsnotify.Event{ev}, Config: cfg, Sum: sum, Err: err})
}

func (w *Watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
