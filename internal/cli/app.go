// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Dependency wiring shared by every command.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jeranaias/threadline/internal/api"
	"github.com/jeranaias/threadline/internal/auth"
	"github.com/jeranaias/threadline/internal/config"
	"github.com/jeranaias/threadline/internal/controller"
	"github.com/jeranaias/threadline/internal/logging"
	"github.com/jeranaias/threadline/internal/storage"
	"github.com/jeranaias/threadline/internal/store"
	"github.com/jeranaias/threadline/internal/util"
)

// globalOptions are the persistent flags of the root command.
type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
	jsonOut    bool
}

// appOptions select what a command needs wired.
type appOptions struct {
	// backend wires the gate, API client and controller.
	backend bool

	// console mirrors logs to stderr when --verbose is set. The TUI turns
	// this off because it owns the terminal.
	console bool

	// onExpired runs once when the credential turns unusable.
	onExpired func()
}

// app holds the wired dependencies of one invocation.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	gate   *auth.Gate
	client *api.Client
	cache  *storage.Cache
	ctrl   *controller.Controller

	closers []io.Closer
}

// loadConfig reads the configuration selected by the global flags.
func loadConfig(g *globalOptions) (*config.Config, string, error) {
	path := g.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}

	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, path, nil
}

// newApp wires the dependencies for one command.
func newApp(g *globalOptions, opts appOptions) (*app, error) {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, g.verbose && opts.console)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if cfg.Cache.Enabled {
		if path, err := cfg.CachePath(); err == nil {
			cache, err := storage.Open(path, log)
			if err != nil {
				// RELIABILITY: The cache is an optimization; a broken cache
				// file must not block online use.
				log.Warn("thread cache unavailable", zap.String("path", path), zap.Error(err))
			} else {
				a.cache = cache
				a.closers = append(a.closers, cache)
			}
		}
	}

	if !opts.backend {
		return a, nil
	}

	gateOpts := []auth.GateOption{auth.WithLogger(log)}
	if opts.onExpired != nil {
		gateOpts = append(gateOpts, auth.WithOnExpired(opts.onExpired))
	}
	if cfg.Auth.TokenFile != "" {
		src, err := auth.NewFileTokenSource(cfg.Auth.TokenFile, cfg.Auth.WatchTokenFile, log)
		if err != nil {
			a.Close()
			return nil, NewCommandError("auth", "read token file", cfg.Auth.TokenFile, err)
		}
		a.closers = append(a.closers, src)
		a.gate = auth.NewGate(src, gateOpts...)
	} else {
		a.gate = auth.NewStaticGate(cfg.Auth.Token, gateOpts...)
	}

	a.client = api.NewClient(cfg.API.BaseURL, a.gate).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs) * time.Second).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst).
		WithLogger(log)

	ctrlOpts := []controller.Option{controller.WithLogger(log)}
	if a.cache != nil {
		ctrlOpts = append(ctrlOpts, controller.WithCache(a.cache))
	}
	a.ctrl = controller.New(a.client, a.gate, ctrlOpts...)
	return a, nil
}

// newLogger builds the file logger, creating the log directory owner-only.
func newLogger(cfg *config.Config, console bool) (*zap.Logger, error) {
	lc := cfg.Log
	path, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), util.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lc.File = path
	lc.Console = lc.Console || console
	return logging.New(lc)
}

// requireSession fails fast when no usable credential is configured.
func (a *app) requireSession() error {
	if a.gate == nil || a.gate.Expired() {
		return ErrSessionExpired
	}
	return nil
}

// loadThreads fills the store from the backend, or reads the cache when
// offline is set. Offline snapshots are detached from the controller.
func (a *app) loadThreads(ctx context.Context, offline bool) (store.Snapshot, error) {
	if offline {
		if a.cache == nil {
			return store.Snapshot{}, NewCommandError("list", "read cache", "the thread cache is disabled", nil)
		}
		threads, err := a.cache.LoadThreads(ctx)
		if err != nil {
			return store.Snapshot{}, NewCommandError("list", "read cache", "could not load cached threads", err)
		}
		return store.New(store.WithThreads(threads), store.WithLogger(a.log)).Snapshot(), nil
	}

	if err := a.requireSession(); err != nil {
		return store.Snapshot{}, err
	}
	a.ctrl.ListThreads(ctx)
	if msg := a.ctrl.Error(); msg != "" {
		return store.Snapshot{}, NewCommandError("list", "fetch threads", msg, nil)
	}
	return a.ctrl.Store().Snapshot(), nil
}

// Close releases the cache and token watcher and flushes the log.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	_ = a.log.Sync()
	return err
}
