// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// build.go - Pipeline assembly from configuration.
//
// Every command that routes queries builds the same pipeline: the tier
// table, one backend invoker per tier, the two-tier cache, the analyzer
// and the router. Construction is explicit so a bad config fails here,
// once, instead of somewhere mid-request.
package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/backend"
	"github.com/jeranaias/valvegate/internal/cache"
	"github.com/jeranaias/valvegate/internal/config"
	"github.com/jeranaias/valvegate/internal/logging"
	"github.com/jeranaias/valvegate/internal/router"
	"github.com/jeranaias/valvegate/internal/telemetry"
	"github.com/jeranaias/valvegate/internal/tier"
)

// loadConfig loads the effective configuration, honoring --config.
func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// newLogger builds the command logger. One-shot commands pass a
// levelOverride of "warn" so routine pipeline logs stay off the
// terminal; --verbose and --quiet win over everything.
func newLogger(cfg *config.Config, args Args, levelOverride string) (*zap.Logger, error) {
	lc := cfg.Logging
	if levelOverride != "" {
		lc.Level = levelOverride
	}
	if args.Verbose {
		lc.Level = "debug"
	}
	if args.Quiet {
		lc.Level = "error"
	}
	return logging.New(lc)
}

// Pipeline bundles the routing stack a command needs to process queries.
type Pipeline struct {
	Config  *config.Config
	Logger  *zap.Logger
	Router  *router.Router
	Store   *cache.Store
	Metrics *telemetry.Metrics
}

// Close releases the pipeline's resources. Safe to defer immediately
// after BuildPipeline succeeds.
func (p *Pipeline) Close() error {
	err := p.Store.Close()
	_ = p.Logger.Sync()
	return err
}

// BuildPipeline assembles the full routing pipeline from cfg. The logger
// is shared by every component; nil means silent.
func BuildPipeline(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline needs a config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tiers, err := buildTiers(cfg)
	if err != nil {
		return nil, err
	}

	backends, err := buildBackends(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	opts := []router.Option{
		router.WithLogger(logger),
		router.WithMetrics(metrics),
	}
	if cfg.Server.MaxQueryBytes > 0 {
		opts = append(opts, router.WithMaxQueryLen(cfg.Server.MaxQueryBytes))
	}

	rt, err := router.New(analyzer.New(tiers), tiers, backends, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Pipeline{
		Config:  cfg,
		Logger:  logger,
		Router:  rt,
		Store:   store,
		Metrics: metrics,
	}, nil
}

// buildTiers maps the config tier table into a tier registry.
func buildTiers(cfg *config.Config) (*tier.Registry, error) {
	tiers := make([]tier.Tier, 0, len(cfg.Tiers))
	for _, tc := range cfg.Tiers {
		tiers = append(tiers, tier.Tier{
			Name:        tc.Name,
			Model:       tc.Model,
			MaxTokens:   tc.MaxTokens,
			CostPerUnit: tc.CostPerUnit,
			UpperBound:  tc.UpperBound,
			Accelerated: tc.Accelerated,
		})
	}
	reg, err := tier.NewRegistry(tiers)
	if err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}
	return reg, nil
}

// buildBackends registers one invoker per tier, chosen by the tier's
// backend kind.
func buildBackends(cfg *config.Config) (*backend.Registry, error) {
	reg := backend.NewRegistry()

	for _, tc := range cfg.Tiers {
		var inv backend.Invoker
		switch strings.ToLower(tc.Backend) {
		case "classifier":
			inv = backend.NewClassifier(tc.Model)
		case "", "generative":
			inv = backend.NewGenerative(tc.Model)
		case "http":
			inv = backend.NewHTTP(backend.HTTPConfig{
				BaseURL: cfg.Backend.BaseURL,
				APIKey:  cfg.Backend.APIKey,
				Timeout: time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
			})
		default:
			return nil, fmt.Errorf("tier %q: unknown backend kind %q", tc.Name, tc.Backend)
		}

		if err := reg.Register(tc.Name, inv); err != nil {
			return nil, fmt.Errorf("tier %q: %w", tc.Name, err)
		}
	}

	return reg, nil
}

// buildStore assembles the two-tier cache from the cache and security
// config sections.
func buildStore(cfg *config.Config, logger *zap.Logger) (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		// Caching off: keep the pipeline shape, retain nothing. Entries
		// expire before the next read so every request recomputes.
		return cache.New(cache.Config{
			MaxEntries: 1,
			TTL:        time.Nanosecond,
			Logger:     logger,
		}), nil
	}

	durable, err := buildDurable(cfg)
	if err != nil {
		if errors.Is(err, errUnknownDurable) {
			return nil, err
		}
		// An unreachable durable backend must not keep the pipeline
		// from starting. Run on the fast layer alone until it is back.
		logger.Warn("durable cache layer unavailable, continuing with fast layer only",
			zap.String("backend", cfg.Cache.Durable),
			zap.Error(err))
		durable = nil
	}

	cipher, err := buildCipher(cfg, logger)
	if err != nil {
		if durable != nil {
			_ = durable.Close()
		}
		return nil, err
	}

	return cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        time.Duration(cfg.Cache.TTLHours) * time.Hour,
		Durable:    durable,
		Cipher:     cipher,
		Logger:     logger,
	}), nil
}

// errUnknownDurable marks an unrecognized cache.durable value. A bad
// name fails the build; an unreachable backend only degrades it.
var errUnknownDurable = errors.New("unknown durable cache backend")

// buildDurable opens the configured persistent cache layer, or returns
// nil for fast-layer-only operation.
func buildDurable(cfg *config.Config) (cache.Durable, error) {
	switch strings.ToLower(cfg.Cache.Durable) {
	case "", "none":
		return nil, nil

	case "sqlite":
		path := cfg.Cache.SQLitePath
		if path == "" {
			var err error
			path, err = config.DefaultCachePath()
			if err != nil {
				return nil, fmt.Errorf("sqlite cache: %w", err)
			}
		}
		db, err := cache.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("sqlite cache: %w", err)
		}
		return db, nil

	case "redis":
		rd, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rd, nil

	default:
		return nil, fmt.Errorf("%w %q", errUnknownDurable, cfg.Cache.Durable)
	}
}

// buildCipher derives the at-rest encryption cipher when cache
// encryption is enabled. A missing salt is generated and logged so the
// operator can persist it; until they do, the key changes on restart
// and old durable entries read as misses.
func buildCipher(cfg *config.Config, logger *zap.Logger) (*cache.Cipher, error) {
	if !cfg.Security.EncryptCache {
		return nil, nil
	}

	passphrase := cfg.Security.Passphrase
	if passphrase == "" {
		return nil, fmt.Errorf("security.encrypt_cache is on but no passphrase is set (use security.passphrase or VALVEGATE_PASSPHRASE)")
	}

	var salt []byte
	if cfg.Security.Salt != "" {
		var err error
		salt, err = base64.StdEncoding.DecodeString(cfg.Security.Salt)
		if err != nil {
			return nil, fmt.Errorf("security.salt is not valid base64: %w", err)
		}
	} else {
		var err error
		salt, err = cache.GenerateSalt()
		if err != nil {
			return nil, fmt.Errorf("generate encryption salt: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(salt)
		cfg.Security.Salt = encoded
		logger.Warn("generated new cache encryption salt; persist it with `valvegate config set security.salt <value>` to keep cached entries readable across restarts",
			zap.String("salt", encoded))
	}

	return cache.NewCipher(cache.DeriveKey(passphrase, salt))
}
