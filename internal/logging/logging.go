// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the process-wide structured logger. Every other
// package receives a *zap.Logger through its constructor; nothing logs
// through globals.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults, applied when the config leaves them zero.
const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// Config controls logger construction. The zero value logs at info level
// to stderr in console format.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `toml:"level" json:"level"`

	// Format is console or json. Empty means console.
	Format string `toml:"format" json:"format"`

	// File, when set, sends output to a rotated log file instead of
	// stderr.
	File string `toml:"file" json:"file"`

	MaxSizeMB  int `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days"`
}

// New builds a logger from cfg. The caller owns the returned logger and
// should defer a Sync on shutdown.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("log format %q: want console or json", cfg.Format)
	}

	var sink zapcore.WriteSyncer
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     orDefault(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   true,
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return zap.New(zapcore.NewCore(enc, sink, level)), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
