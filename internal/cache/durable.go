// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"time"
)

// Durable is the persistent KV layer under the fast cache. Values are
// opaque bytes; the store handles entry encoding and optional encryption
// above this interface.
type Durable interface {
	// Name identifies the backend ("redis", "sqlite") for stats and logs.
	Name() string

	// Get returns the stored value. A clean miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a lifetime. Non-positive ttl stores forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes everything this backend holds.
	Clear(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Info returns backend details for the stats endpoint.
	Info(ctx context.Context) (map[string]string, error)

	// Close releases the backend's resources.
	Close() error
}

// Purger is implemented by durable backends that can drop expired entries
// in bulk. The store's janitor calls it opportunistically.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
