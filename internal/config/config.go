// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/valvegate/internal/logging"
	"github.com/jeranaias/valvegate/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete valvegate configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server configuration (HTTP API)
	Server ServerConfig `toml:"server" json:"server"`

	// Cache configuration (fast layer + durable layer)
	Cache CacheConfig `toml:"cache" json:"cache"`

	// Backend configuration (remote inference endpoint for http tiers)
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Tiers is the ordered tier table, cheapest first.
	Tiers []TierConfig `toml:"tiers" json:"tiers"`

	// Logging configuration
	Logging logging.Config `toml:"logging" json:"logging"`

	// Security configuration
	Security SecurityConfig `toml:"security" json:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr" json:"addr"`
	// AuthToken protects mutating endpoints. Empty disables auth.
	AuthToken string `toml:"auth_token" json:"auth_token"`
	// RequestsPerSecond is the per-client rate limit. Zero disables it.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the rate limiter burst allowance.
	Burst int `toml:"burst" json:"burst"`
	// MaxQueryBytes bounds accepted query length.
	MaxQueryBytes int `toml:"max_query_bytes" json:"max_query_bytes"`
	// ShutdownGraceSecs is how long in-flight requests get on shutdown.
	ShutdownGraceSecs int `toml:"shutdown_grace_secs" json:"shutdown_grace_secs"`
}

// CacheConfig contains cache configuration.
type CacheConfig struct {
	// Enabled controls whether caching is active.
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxEntries is the fast layer capacity.
	MaxEntries int `toml:"max_entries" json:"max_entries"`
	// TTLHours is the time-to-live for cache entries in hours.
	TTLHours int `toml:"ttl_hours" json:"ttl_hours"`
	// Durable selects the persistent layer: "none", "sqlite" or "redis".
	Durable string `toml:"durable" json:"durable"`
	// SQLitePath is the cache database path (empty = ~/.valvegate/cache.db).
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
	// RedisAddr is the Redis server address.
	RedisAddr string `toml:"redis_addr" json:"redis_addr"`
	// RedisPassword is the Redis password, if any.
	RedisPassword string `toml:"redis_password" json:"redis_password"`
	// RedisDB is the Redis database number.
	RedisDB int `toml:"redis_db" json:"redis_db"`
}

// BackendConfig contains the remote inference endpoint used by tiers with
// the "http" backend kind.
type BackendConfig struct {
	// BaseURL is the inference server URL.
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey is sent as a bearer token when set.
	APIKey string `toml:"api_key" json:"api_key"`
	// TimeoutSecs is the per-request timeout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// TierConfig describes one routing tier. The order of tiers in the config
// file is the selection order, cheapest first.
type TierConfig struct {
	// Name identifies the tier in requests and cache keys.
	Name string `toml:"name" json:"name"`
	// Model is the model identifier handed to the backend.
	Model string `toml:"model" json:"model"`
	// MaxTokens caps the response length.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// CostPerUnit is the per-unit cost used for estimates.
	CostPerUnit float64 `toml:"cost_per_unit" json:"cost_per_unit"`
	// UpperBound is the exclusive complexity bound. Zero means unbounded
	// and is only valid on the last tier.
	UpperBound int `toml:"upper_bound" json:"upper_bound"`
	// Accelerated marks tiers that run on dedicated hardware.
	Accelerated bool `toml:"accelerated" json:"accelerated"`
	// Backend is the invoker kind: "classifier", "generative" or "http".
	Backend string `toml:"backend" json:"backend"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// EncryptCache encrypts durable cache values at rest with AES-256-GCM.
	EncryptCache bool `toml:"encrypt_cache" json:"encrypt_cache"`
	// Passphrase derives the encryption key. Prefer VALVEGATE_PASSPHRASE
	// over storing it here.
	Passphrase string `toml:"passphrase" json:"passphrase"`
	// Salt is the base64-encoded key derivation salt. When empty a fresh
	// salt is generated at startup and logged; persist it here to keep
	// the key stable across restarts.
	Salt string `toml:"salt" json:"salt"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values. The default tier
// table routes between the bundled classifier and generative backends so a
// fresh install works without a remote inference server.
func Default() *Config {
	return &Config{
		Version: "0.1.0",

		Server: ServerConfig{
			Addr:              "127.0.0.1:8090",
			RequestsPerSecond: 10,
			Burst:             20,
			MaxQueryBytes:     1000,
			ShutdownGraceSecs: 10,
		},

		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 10000,
			TTLHours:   1,
			Durable:    "sqlite",
			RedisAddr:  "localhost:6379",
		},

		Backend: BackendConfig{
			BaseURL:     "http://127.0.0.1:11434",
			TimeoutSecs: 60,
		},

		Tiers: []TierConfig{
			{
				Name:        "basic",
				Model:       "microsoft/BiomedNLP-PubMedBERT-base-uncased-abstract",
				MaxTokens:   512,
				CostPerUnit: 0.0001,
				UpperBound:  25,
				Backend:     "classifier",
			},
			{
				Name:        "intermediate",
				Model:       "microsoft/BiomedNLP-PubMedBERT-large-uncased-abstract",
				MaxTokens:   1024,
				CostPerUnit: 0.0005,
				UpperBound:  150,
				Accelerated: true,
				Backend:     "generative",
			},
			{
				Name:        "advanced",
				Model:       "microsoft/BiomedNLP-PubMedBERT-large-uncased-abstract-fulltext",
				MaxTokens:   2048,
				CostPerUnit: 0.001,
				Accelerated: true,
				Backend:     "generative",
			},
		},

		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},

		Security: SecurityConfig{
			EncryptCache: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the valvegate configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".valvegate"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultCachePath returns the default SQLite cache database path.
func DefaultCachePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files should be 0600 (owner read/write only) to protect tokens.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finish(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finish(cfg)
		}
	}

	// No config file: run on defaults.
	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies env overrides, defaults, and validation to a loaded config.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	// The file's tier table replaces the defaults rather than appending.
	cfg.Tiers = nil

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}

	cfg.Tiers = nil

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# valvegate configuration file\n")
	buf.WriteString("# Generated by valvegate - edit with care\n")
	buf.WriteString("\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Atomic write with fsync so a crash mid-save never truncates the
	// config. 0600 keeps tokens out of other users' reach.
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validBackendKinds = map[string]bool{
	"classifier": true,
	"generative": true,
	"http":       true,
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// ==========================================================================
	// Server Settings Validation
	// ==========================================================================

	if c.Server.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "server.addr",
				Message: fmt.Sprintf("invalid listen address %q: %v", c.Server.Addr, err),
			})
		}
	}
	if c.Server.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.requests_per_second",
			Message: "must be non-negative",
		})
	}
	if c.Server.Burst < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.burst",
			Message: "must be non-negative",
		})
	}
	if c.Server.MaxQueryBytes < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.max_query_bytes",
			Message: "must be positive",
		})
	}

	// ==========================================================================
	// Cache Settings Validation
	// ==========================================================================

	if c.Cache.TTLHours < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_hours",
			Message: "must be non-negative",
		})
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxEntries > 100000 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_entries",
			Message: fmt.Sprintf("must be 0-100000, got %d", c.Cache.MaxEntries),
		})
	}
	switch strings.ToLower(c.Cache.Durable) {
	case "", "none", "sqlite", "redis":
	default:
		errs = append(errs, ValidationError{
			Field:   "cache.durable",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: none, sqlite, redis", c.Cache.Durable),
		})
	}

	// ==========================================================================
	// Backend Settings Validation
	// ==========================================================================

	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "backend.base_url",
				Message: fmt.Sprintf("invalid URL %q, must be http or https", c.Backend.BaseURL),
			})
		}
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: "must be non-negative",
		})
	}

	// ==========================================================================
	// Tier Settings Validation
	// ==========================================================================

	if len(c.Tiers) == 0 {
		errs = append(errs, ValidationError{
			Field:   "tiers",
			Message: "at least one tier is required",
		})
	}
	seen := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		field := fmt.Sprintf("tiers[%d]", i)
		if t.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		} else if seen[t.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate tier name '%s'", t.Name),
			})
		}
		seen[t.Name] = true

		if t.CostPerUnit <= 0 {
			errs = append(errs, ValidationError{Field: field + ".cost_per_unit", Message: "must be positive"})
		}
		if t.MaxTokens <= 0 {
			errs = append(errs, ValidationError{Field: field + ".max_tokens", Message: "must be positive"})
		}
		if !validBackendKinds[strings.ToLower(t.Backend)] {
			errs = append(errs, ValidationError{
				Field:   field + ".backend",
				Message: fmt.Sprintf("invalid kind '%s', must be one of: classifier, generative, http", t.Backend),
			})
		}
		if strings.ToLower(t.Backend) == "http" && c.Backend.BaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".backend",
				Message: "http backend requires backend.base_url",
			})
		}
	}

	// ==========================================================================
	// Logging Settings Validation
	// ==========================================================================

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be console or json", c.Logging.Format),
		})
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	// ==========================================================================
	// Security Settings Validation
	// ==========================================================================

	if c.Security.Salt != "" {
		if _, err := base64.StdEncoding.DecodeString(c.Security.Salt); err != nil {
			errs = append(errs, ValidationError{
				Field:   "security.salt",
				Message: "must be valid base64",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.MaxQueryBytes == 0 {
		c.Server.MaxQueryBytes = defaults.Server.MaxQueryBytes
	}
	if c.Server.ShutdownGraceSecs == 0 {
		c.Server.ShutdownGraceSecs = defaults.Server.ShutdownGraceSecs
	}

	// Cache defaults
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = defaults.Cache.TTLHours
	}
	if c.Cache.Durable == "" {
		c.Cache.Durable = defaults.Cache.Durable
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = defaults.Cache.RedisAddr
	}

	// Backend defaults
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaults.Backend.BaseURL
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}

	// Tier defaults
	if len(c.Tiers) == 0 {
		c.Tiers = defaults.Tiers
	}
	for i := range c.Tiers {
		if c.Tiers[i].Backend == "" {
			c.Tiers[i].Backend = "generative"
		}
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - VALVEGATE_ADDR: overrides server.addr
//   - VALVEGATE_AUTH_TOKEN: overrides server.auth_token
//   - VALVEGATE_BACKEND_URL: overrides backend.base_url
//   - VALVEGATE_API_KEY: overrides backend.api_key
//   - VALVEGATE_CACHE_DURABLE: overrides cache.durable
//   - VALVEGATE_REDIS_ADDR: overrides cache.redis_addr
//   - VALVEGATE_SQLITE_PATH: overrides cache.sqlite_path
//   - VALVEGATE_LOG_LEVEL: overrides logging.level
//   - VALVEGATE_LOG_FORMAT: overrides logging.format
//   - VALVEGATE_PASSPHRASE: overrides security.passphrase
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("VALVEGATE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("VALVEGATE_AUTH_TOKEN"); token != "" {
		c.Server.AuthToken = token
	}
	if baseURL := os.Getenv("VALVEGATE_BACKEND_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if key := os.Getenv("VALVEGATE_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if durable := os.Getenv("VALVEGATE_CACHE_DURABLE"); durable != "" {
		c.Cache.Durable = durable
	}
	if addr := os.Getenv("VALVEGATE_REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if path := os.Getenv("VALVEGATE_SQLITE_PATH"); path != "" {
		c.Cache.SQLitePath = path
	}
	if level := os.Getenv("VALVEGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("VALVEGATE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if passphrase := os.Getenv("VALVEGATE_PASSPHRASE"); passphrase != "" {
		c.Security.Passphrase = passphrase
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.addr").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "server.addr").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all scalar configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.addr",
		"server.auth_token",
		"server.requests_per_second",
		"server.burst",
		"server.max_query_bytes",
		"server.shutdown_grace_secs",
		"cache.enabled",
		"cache.max_entries",
		"cache.ttl_hours",
		"cache.durable",
		"cache.sqlite_path",
		"cache.redis_addr",
		"cache.redis_password",
		"cache.redis_db",
		"backend.base_url",
		"backend.api_key",
		"backend.timeout_secs",
		"logging.level",
		"logging.format",
		"logging.file",
		"security.encrypt_cache",
		"security.passphrase",
		"security.salt",
	}
}

// Clone creates a deep copy of the configuration. The tier table is the
// only reference field; copying it keeps mutations of the clone from
// reaching the original.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Tiers != nil {
		clone.Tiers = make([]TierConfig, len(c.Tiers))
		copy(clone.Tiers, c.Tiers)
	}
	return &clone
}

// String returns a string representation of the config for debugging.
// Secrets are redacted so the output is safe to log.
func (c *Config) String() string {
	safe := c.Clone()

	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}
	if safe.Backend.APIKey != "" {
		safe.Backend.APIKey = "[REDACTED]"
	}
	if safe.Cache.RedisPassword != "" {
		safe.Cache.RedisPassword = "[REDACTED]"
	}
	if safe.Security.Passphrase != "" {
		safe.Security.Passphrase = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
