// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Serve command implementation for valvegate.
//
// Command: serve
// Short:   Run the HTTP API server
// Aliases: server
//
// Runs until SIGINT or SIGTERM, then drains in-flight requests for
// server.shutdown_grace_secs before exiting. A config file watcher logs
// edits; tier and backend tables are fixed at startup, so changes apply
// on the next restart.
//
// Examples:
//   valvegate serve
//   valvegate serve --addr 0.0.0.0:8090
//   VALVEGATE_AUTH_TOKEN=secret valvegate serve
//
// Flags:
//   --addr HOST:PORT   Override the configured listen address
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/config"
	"github.com/jeranaias/valvegate/internal/server"
)

const (
	// janitorInterval is how often expired cache entries are purged.
	janitorInterval = 5 * time.Minute
	// watcherDebounce coalesces bursts of config file events.
	watcherDebounce = 500 * time.Millisecond
	// defaultShutdownGrace applies when the config leaves it unset.
	defaultShutdownGrace = 10 * time.Second
)

// HandleServeCommand handles the "serve" command.
func HandleServeCommand(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}

	logger, err := newLogger(cfg, args, "")
	if err != nil {
		return err
	}

	pipe, err := BuildPipeline(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return err
	}
	defer pipe.Close()

	srv, err := server.New(cfg.Server, pipe.Router)
	if err != nil {
		return err
	}
	srv.WithLogger(logger).WithVersion(Version)

	logger.Info("valvegate starting",
		zap.String("version", Version),
		zap.Int("tiers", pipe.Router.Tiers().Len()),
		zap.String("durable_cache", cfg.Cache.Durable),
		zap.Bool("cache_encryption", cfg.Security.EncryptCache))

	// Periodic purge of expired entries in both cache layers.
	stopJanitor := make(chan struct{})
	go pipe.Store.StartJanitor(janitorInterval, stopJanitor)
	defer close(stopJanitor)

	watchConfig(args, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := time.Duration(cfg.Server.ShutdownGraceSecs) * time.Second
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	logger.Info("shutting down", zap.Duration("grace", grace))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

// watchConfig starts a best-effort watcher on the active config file.
// Reloads are logged, not applied: the tier table, backends and cache
// are wired once at startup, and swapping them live would let requests
// observe half-applied config.
func watchConfig(args Args, logger *zap.Logger) {
	path := args.ConfigPath
	if path == "" {
		var err error
		path, err = config.ConfigPathTOML()
		if err != nil {
			return
		}
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	w, err := config.NewWatcher(path, watcherDebounce, func(next *config.Config) {
		logger.Info("config file changed; restart to apply",
			zap.String("path", path))
	}, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		return
	}
	if err := w.Watch(); err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
		_ = w.Close()
	}
}
