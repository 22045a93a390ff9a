// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The paperd command is an animated wallpaper daemon. It shows still and
// animated images on framebuffer outputs described by its configuration
// file, and is controlled at run time by paperctl.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/kortschak/jsonrpc2"

	"github.com/kortschak/paperd/internal/config"
	"github.com/kortschak/paperd/internal/display"
	"github.com/kortschak/paperd/internal/framecache"
	"github.com/kortschak/paperd/internal/playback"
	"github.com/kortschak/paperd/internal/slogext"
	"github.com/kortschak/paperd/internal/version"
	"github.com/kortschak/paperd/internal/xdg"
	"github.com/kortschak/paperd/rpc"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	cfgPath := flag.String("config", "", "path to configuration file (default $XDG_CONFIG_HOME/paperd/config.toml)")
	check := flag.Bool("check", false, "validate configuration and exit")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	addSource := slogext.NewAtomicBool(*lines)

	path := *cfgPath
	if path == "" {
		path, err = defaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}

	if *check {
		return checkConfig(path)
	}

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "paperd.main"))

	runtimeDir, err := xdg.MkRuntime(rpc.RuntimeDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	pidFile := filepath.Join(runtimeDir, "pid")
	fl := flock.New(pidFile)
	ok, err := fl.TryLock()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "paperd is already running")
		return internalError
	}
	defer func() {
		fl.Unlock()
		os.Remove(pidFile)
	}()
	pid := fmt.Sprintln(os.Getpid())
	err = os.WriteFile(pidFile, []byte(pid), 0o600)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			log.LogAttrs(ctx, slog.LevelInfo, "terminating")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, _, err := config.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		mlog.LogAttrs(ctx, slog.LevelInfo, "no config file", slog.String("path", path))
		cfg = &config.System{}
	case cfg == nil:
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return internalError
	case err != nil:
		mlog.LogAttrs(ctx, slog.LevelWarn, "invalid config", slog.Any("error", err))
	}
	applyLogging(cfg, &level, addSource)

	codec, err := cacheCodec(cfg.Cache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid cache config: %v\n", err)
		return internalError
	}
	mlog.LogAttrs(ctx, slog.LevelInfo, "frame cache", slog.Any("codec", slogext.Stringer{Stringer: codec}))
	proc := &playback.Processor{Codec: codec, Log: log}

	disp := display.NewManager(ctx, proc, nil, log)
	defer func() {
		err := disp.Close()
		if err != nil {
			mlog.LogAttrs(context.Background(), slog.LevelWarn, "failed to close outputs", slog.Any("error", err))
		}
	}()
	err = disp.Configure(ctx, cfg.Outputs)
	if err != nil {
		mlog.LogAttrs(ctx, slog.LevelWarn, "output configure error", slog.Any("error", err))
	}

	network := cfg.Network
	if network == "" {
		network = "unix"
	}
	srv, err := rpc.NewServer(ctx, network, disp, cancel, jsonrpc2.NetListenOptions{}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		return internalError
	}
	defer func() {
		err := srv.Close()
		if err != nil {
			mlog.LogAttrs(context.Background(), slog.LevelWarn, "failed to close server", slog.Any("error", err))
		}
	}()
	mlog.LogAttrs(ctx, slog.LevelInfo, "listening", slog.String("network", network), slog.Any("addr", slogext.Stringer{Stringer: srv.Addr()}))

	changes := make(chan config.Change)
	watcher, err := config.NewWatcher(ctx, path, changes, -1, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to watch config: %v\n", err)
		return internalError
	}
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			mlog.LogAttrs(context.Background(), slog.LevelInfo, "exit")
			return success
		case change := <-changes:
			mlog.LogAttrs(ctx, slog.LevelDebug, "config change", slog.Any("change", change))
			if change.Err != nil {
				mlog.LogAttrs(ctx, slog.LevelWarn, "config error", slog.Any("error", change.Err))
			}
			if change.Config == nil {
				if change.Err == nil {
					mlog.LogAttrs(ctx, slog.LevelWarn, "config file removed, keeping current configuration")
				}
				continue
			}
			next := change.Config
			applyLogging(next, &level, addSource)
			if next.Network != cfg.Network {
				mlog.LogAttrs(ctx, slog.LevelWarn, "network change requires restart", slog.String("network", next.Network))
			}
			if !equalCache(next.Cache, cfg.Cache) {
				mlog.LogAttrs(ctx, slog.LevelWarn, "cache change requires restart")
			}
			err = disp.Configure(ctx, next.Outputs)
			if err != nil {
				mlog.LogAttrs(ctx, slog.LevelWarn, "output configure error", slog.Any("error", err))
			}
			cfg = next
		}
	}
}

// defaultConfigPath returns the path to the configuration file in the
// user's configuration directory, creating the directory if necessary so
// that it can be watched.
func defaultConfigPath() (string, error) {
	dir, err := xdg.Config("paperd", true)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		home, ok := xdg.ConfigHome()
		if !ok {
			return "", errors.New("no xdg config directory")
		}
		dir = filepath.Join(home, "paperd")
		err = os.MkdirAll(dir, 0o755)
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "config.toml"), nil
}

// checkConfig validates the configuration file at path, reporting the
// configured outputs on success.
func checkConfig(path string) int {
	cfg, sum, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config %s: %v\n", path, err)
		return internalError
	}
	_, err = cacheCodec(cfg.Cache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config %s: %v\n", path, err)
		return internalError
	}
	fmt.Printf("config ok: %d outputs (sum %s)\n", len(cfg.Outputs), sum)
	return success
}

// cacheCodec returns the frame cache codec described by cfg.
func cacheCodec(cfg *config.Cache) (framecache.Codec, error) {
	name := framecache.Brotli
	level := -1
	if cfg != nil {
		if cfg.Codec != "" {
			name = cfg.Codec
		}
		if cfg.Level != nil {
			level = *cfg.Level
		}
	}
	return framecache.NewCodec(name, level)
}

func equalCache(a, b *config.Cache) bool {
	ca, errA := cacheCodec(a)
	cb, errB := cacheCodec(b)
	if errA != nil || errB != nil {
		return false
	}
	return ca.String() == cb.String()
}

// applyLogging sets the dynamic logging options held in cfg.
func applyLogging(cfg *config.System, level *slog.LevelVar, addSource *atomic.Bool) {
	if cfg.LogLevel != nil {
		level.Set(*cfg.LogLevel)
	}
	if cfg.AddSource != nil {
		addSource.Store(*cfg.AddSource)
	}
}
