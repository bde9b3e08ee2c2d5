// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig_Default tests that Default() returns a valid config.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.Version == "" {
		t.Error("Default config should have a version")
	}
	if cfg.Server.Addr == "" {
		t.Error("Default config should have a listen address")
	}
	if len(cfg.Tiers) != 3 {
		t.Errorf("Default config should have 3 tiers, got %d", len(cfg.Tiers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "invalid listen address",
			config: func() *Config {
				c := Default()
				c.Server.Addr = "not an address"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "negative rate limit",
			config: func() *Config {
				c := Default()
				c.Server.RequestsPerSecond = -1
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid durable backend",
			config: func() *Config {
				c := Default()
				c.Cache.Durable = "memcached"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "cache max entries too large",
			config: func() *Config {
				c := Default()
				c.Cache.MaxEntries = 200000
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid backend URL",
			config: func() *Config {
				c := Default()
				c.Backend.BaseURL = "ftp://example.com"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "no tiers",
			config: func() *Config {
				c := Default()
				c.Tiers = nil
				return c
			}(),
			wantErr: true,
		},
		{
			name: "duplicate tier names",
			config: func() *Config {
				c := Default()
				c.Tiers[1].Name = c.Tiers[0].Name
				return c
			}(),
			wantErr: true,
		},
		{
			name: "zero tier cost",
			config: func() *Config {
				c := Default()
				c.Tiers[0].CostPerUnit = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid tier backend kind",
			config: func() *Config {
				c := Default()
				c.Tiers[0].Backend = "quantum"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "http tier without backend URL",
			config: func() *Config {
				c := Default()
				c.Backend.BaseURL = ""
				c.Tiers[2].Backend = "http"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid log format",
			config: func() *Config {
				c := Default()
				c.Logging.Format = "xml"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid log level",
			config: func() *Config {
				c := Default()
				c.Logging.Level = "verbose"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid salt",
			config: func() *Config {
				c := Default()
				c.Security.Salt = "not base64!!!"
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_SetDefaults tests that zero values are filled in.
func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Server.Addr == "" {
		t.Error("SetDefaults should fill the listen address")
	}
	if cfg.Cache.MaxEntries == 0 {
		t.Error("SetDefaults should fill cache max entries")
	}
	if len(cfg.Tiers) == 0 {
		t.Error("SetDefaults should fill the tier table")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("SetDefaults logging level = %q, want info", cfg.Logging.Level)
	}

	// A tier without a backend kind defaults to generative.
	cfg2 := &Config{Tiers: []TierConfig{{Name: "only", CostPerUnit: 0.1, MaxTokens: 64}}}
	cfg2.SetDefaults()
	if cfg2.Tiers[0].Backend != "generative" {
		t.Errorf("tier backend = %q, want generative", cfg2.Tiers[0].Backend)
	}
}

// TestConfig_EnvOverrides tests environment variable overrides.
func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("VALVEGATE_ADDR", "0.0.0.0:9999")
	t.Setenv("VALVEGATE_AUTH_TOKEN", "secret-token")
	t.Setenv("VALVEGATE_CACHE_DURABLE", "redis")
	t.Setenv("VALVEGATE_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.Addr != "0.0.0.0:9999" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q", cfg.Server.AuthToken)
	}
	if cfg.Cache.Durable != "redis" {
		t.Errorf("Durable = %q", cfg.Cache.Durable)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("server.addr")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "127.0.0.1:8090" {
		t.Errorf("Get('server.addr') = %v", val)
	}

	if err := cfg.Set("cache.ttl_hours", "48"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Cache.TTLHours != 48 {
		t.Errorf("TTLHours after Set = %d, want 48", cfg.Cache.TTLHours)
	}

	if err := cfg.Set("cache.enabled", "false"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("Enabled should be false after Set")
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
}

// TestConfig_SaveLoadRoundTrip tests TOML save and reload.
func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, "config.toml")

	cfg := Default()
	cfg.Server.Addr = "127.0.0.1:7777"
	cfg.Cache.Durable = "none"
	cfg.Tiers[0].Model = "custom-model"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Server.Addr != "127.0.0.1:7777" {
		t.Errorf("Addr = %q", loaded.Server.Addr)
	}
	if loaded.Cache.Durable != "none" {
		t.Errorf("Durable = %q", loaded.Cache.Durable)
	}
	if len(loaded.Tiers) != 3 || loaded.Tiers[0].Model != "custom-model" {
		t.Errorf("Tiers = %+v", loaded.Tiers)
	}
}

// TestConfig_SaveLoadJSON tests the JSON fallback format.
func TestConfig_SaveLoadJSON(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, "config.json")

	cfg := Default()
	cfg.Backend.BaseURL = "https://inference.internal:8443"

	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Backend.BaseURL != "https://inference.internal:8443" {
		t.Errorf("BaseURL = %q", loaded.Backend.BaseURL)
	}
}

// TestConfig_Clone tests that Clone creates an independent copy.
func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()

	clone.Server.Addr = "changed:1"
	clone.Tiers[0].Name = "changed"

	if original.Server.Addr == "changed:1" {
		t.Error("Clone should not share scalar fields")
	}
	if original.Tiers[0].Name == "changed" {
		t.Error("Clone should deep-copy the tier table")
	}
}

// TestConfig_StringRedactsSecrets tests that String() hides credentials.
func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Server.AuthToken = "super-secret"
	cfg.Backend.APIKey = "sk-12345"
	cfg.Security.Passphrase = "hunter2"

	s := cfg.String()
	for _, secret := range []string{"super-secret", "sk-12345", "hunter2"} {
		if strings.Contains(s, secret) {
			t.Errorf("String() leaked %q", secret)
		}
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark redacted fields")
	}
}

// TestWatcher_Reload tests that a config change on disk reaches the
// reload callback.
func TestWatcher_Reload(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, "config.toml")

	cfg := Default()
	cfg.Server.Addr = "127.0.0.1:7001"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(c *Config) { reloaded <- c }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	cfg.Server.Addr = "127.0.0.1:7002"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-reloaded:
		if got.Server.Addr != "127.0.0.1:7002" {
			t.Errorf("reloaded Addr = %q, want 127.0.0.1:7002", got.Server.Addr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

// TestWatcher_InvalidChangeIgnored tests that a broken config on disk
// does not reach the callback, and a subsequent fix does.
func TestWatcher_InvalidChangeIgnored(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, "config.toml")

	if err := SaveTOML(Default(), path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(c *Config) { reloaded <- c }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("this is not toml {{{"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("broken config should not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}

	good := Default()
	good.Server.Addr = "127.0.0.1:7003"
	if err := SaveTOML(good, path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-reloaded:
		if got.Server.Addr != "127.0.0.1:7003" {
			t.Errorf("reloaded Addr = %q", got.Server.Addr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fixed config was not observed")
	}
}
