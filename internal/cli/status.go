// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for valvegate.
//
// Command: status
// Short:   Display system status
// Aliases: s
//
// Status Sections:
//   System:  version, active config file, log level
//   Server:  listen address, auth, rate limit
//   Tiers:   tier table with backend kinds and bounds
//   Cache:   layer configuration and a live reachability probe
//
// Examples:
//   valvegate status            Show system status
//   valvegate s                 Show status (short alias)
//   valvegate status --json     Status in JSON format
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/config"
)

// statusProbeTimeout bounds the durable cache reachability check.
const statusProbeTimeout = 3 * time.Second

// statusData is the JSON payload for the status command.
type statusData struct {
	Version    string           `json:"version"`
	ConfigPath string           `json:"config_path"`
	Server     serverStatusInfo `json:"server"`
	Cache      cacheStatusInfo  `json:"cache"`
	Tiers      []tierStatusInfo `json:"tiers"`
}

type serverStatusInfo struct {
	Addr              string  `json:"addr"`
	AuthEnabled       bool    `json:"auth_enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

type cacheStatusInfo struct {
	Enabled    bool   `json:"enabled"`
	MaxEntries int    `json:"max_entries"`
	TTLHours   int    `json:"ttl_hours"`
	Durable    string `json:"durable"`
	Encrypted  bool   `json:"encrypted"`
	Health     string `json:"health"`
}

type tierStatusInfo struct {
	Name        string  `json:"name"`
	Backend     string  `json:"backend"`
	Model       string  `json:"model"`
	CostPerUnit float64 `json:"cost_per_unit"`
	UpperBound  int     `json:"upper_bound,omitempty"`
	Accelerated bool    `json:"accelerated,omitempty"`
}

// HandleStatusCommand handles the "status" command.
func HandleStatusCommand(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "status", err)
	}

	data := statusData{
		Version:    Version,
		ConfigPath: activeConfigPath(args),
		Server: serverStatusInfo{
			Addr:              cfg.Server.Addr,
			AuthEnabled:       cfg.Server.AuthToken != "",
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		},
		Cache: cacheStatusInfo{
			Enabled:    cfg.Cache.Enabled,
			MaxEntries: cfg.Cache.MaxEntries,
			TTLHours:   cfg.Cache.TTLHours,
			Durable:    cfg.Cache.Durable,
			Encrypted:  cfg.Security.EncryptCache,
			Health:     probeCache(cfg),
		},
	}
	for _, tc := range cfg.Tiers {
		data.Tiers = append(data.Tiers, tierStatusInfo{
			Name:        tc.Name,
			Backend:     tc.Backend,
			Model:       tc.Model,
			CostPerUnit: tc.CostPerUnit,
			UpperBound:  tc.UpperBound,
			Accelerated: tc.Accelerated,
		})
	}

	if args.JSON {
		return NewJSONResponse("status", data).Print()
	}

	fmt.Println()
	fmt.Println("valvegate Status")
	fmt.Println(strings.Repeat("=", 39))

	fmt.Println()
	fmt.Println("System")
	fmt.Printf("  %-14s %s\n", "Version:", data.Version)
	fmt.Printf("  %-14s %s\n", "Config:", data.ConfigPath)
	fmt.Printf("  %-14s %s\n", "Log Level:", cfg.Logging.Level)

	fmt.Println()
	fmt.Println("Server")
	fmt.Printf("  %-14s %s\n", "Address:", data.Server.Addr)
	fmt.Printf("  %-14s %s\n", "Auth:", onOff(data.Server.AuthEnabled))
	if data.Server.RequestsPerSecond > 0 {
		fmt.Printf("  %-14s %.0f req/s (burst %d)\n", "Rate Limit:", data.Server.RequestsPerSecond, data.Server.Burst)
	} else {
		fmt.Printf("  %-14s off\n", "Rate Limit:")
	}

	fmt.Println()
	fmt.Println("Tiers")
	for _, t := range data.Tiers {
		bound := "unbounded"
		if t.UpperBound > 0 {
			bound = fmt.Sprintf("score<%d", t.UpperBound)
		}
		accel := ""
		if t.Accelerated {
			accel = "  accelerated"
		}
		fmt.Printf("  %-14s %-11s $%.4g/unit  %s%s\n", t.Name, t.Backend, t.CostPerUnit, bound, accel)
	}

	fmt.Println()
	fmt.Println("Cache")
	fmt.Printf("  %-14s %s\n", "Enabled:", onOff(data.Cache.Enabled))
	fmt.Printf("  %-14s %d entries, %dh TTL\n", "Fast Layer:", data.Cache.MaxEntries, data.Cache.TTLHours)
	fmt.Printf("  %-14s %s\n", "Durable:", durableLabel(cfg))
	fmt.Printf("  %-14s %s\n", "Encryption:", onOff(data.Cache.Encrypted))
	fmt.Printf("  %-14s %s\n", "Health:", data.Cache.Health)
	fmt.Println()
	return nil
}

// probeCache builds the configured cache store and pings it. The result
// is a short status word, with the error folded in on failure.
func probeCache(cfg *config.Config) string {
	if !cfg.Cache.Enabled {
		return "disabled"
	}

	store, err := buildStore(cfg, zap.NewNop())
	if err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()
	if !store.Healthy(ctx) {
		return fmt.Sprintf("degraded (%v)", store.DurableErr())
	}
	return "ok"
}

// activeConfigPath reports which config file the command is running on.
func activeConfigPath(args Args) string {
	if args.ConfigPath != "" {
		return args.ConfigPath
	}
	if path, err := config.ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return path
		}
	}
	if path, err := config.ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return path
		}
	}
	return "(built-in defaults)"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// durableLabel names the durable layer with its target for display.
func durableLabel(cfg *config.Config) string {
	switch strings.ToLower(cfg.Cache.Durable) {
	case "", "none":
		return "none (fast layer only)"
	case "sqlite":
		path := cfg.Cache.SQLitePath
		if path == "" {
			if p, err := config.DefaultCachePath(); err == nil {
				path = p
			}
		}
		return fmt.Sprintf("sqlite (%s)", path)
	case "redis":
		return fmt.Sprintf("redis (%s)", cfg.Cache.RedisAddr)
	default:
		return cfg.Cache.Durable
	}
}
