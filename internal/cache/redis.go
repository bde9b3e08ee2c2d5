// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// redisInfoFields is the subset of INFO lines surfaced in cache stats.
var redisInfoFields = map[string]bool{
	"redis_version":     true,
	"connected_clients": true,
	"used_memory_human": true,
	"keyspace_hits":     true,
	"keyspace_misses":   true,
	"uptime_in_seconds": true,
}

// RedisConfig holds connection settings for the Redis durable layer.
type RedisConfig struct {
	Addr         string `toml:"addr" json:"addr"`
	Password     string `toml:"password" json:"password"`
	DB           int    `toml:"db" json:"db"`
	PoolSize     int    `toml:"pool_size" json:"pool_size"`
	MinIdleConns int    `toml:"min_idle_conns" json:"min_idle_conns"`
}

// Redis is the Redis-backed durable layer. Entries are stored as opaque
// string values under their cache key with a native TTL (SET ... EX).
type Redis struct {
	client *goredis.Client
}

// NewRedis connects to Redis and verifies the connection with a short ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client}, nil
}

// Name implements Durable.
func (r *Redis) Name() string { return "redis" }

// Get implements Durable. A missing key is a clean miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set implements Durable.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // Redis treats zero expiration as "keep forever"
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements Durable.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Clear implements Durable by flushing the configured database.
func (r *Redis) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

// Ping implements Durable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Info implements Durable, returning a trimmed INFO snapshot plus the
// keyspace size.
func (r *Redis) Info(ctx context.Context) (map[string]string, error) {
	raw, err := r.client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}

	info := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok || !redisInfoFields[k] {
			continue
		}
		info[k] = v
	}

	if size, err := r.client.DBSize(ctx).Result(); err == nil {
		info["entries"] = fmt.Sprintf("%d", size)
	}
	return info, nil
}

// Close implements Durable.
func (r *Redis) Close() error {
	return r.client.Close()
}
