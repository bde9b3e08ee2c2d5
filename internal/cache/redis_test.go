// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestRedis connects to the Redis named by VALVEGATE_TEST_REDIS (for
// example "localhost:6379") and uses database 15 so a stray FlushDB never
// touches real data. Tests are skipped when the variable is unset.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	addr := os.Getenv("VALVEGATE_TEST_REDIS")
	if addr == "" {
		t.Skip("set VALVEGATE_TEST_REDIS to run Redis integration tests")
	}

	r, err := NewRedis(RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Clear(context.Background())
		_ = r.Close()
	})
	return r
}

// TestRedis_SetGet tests the basic KV round trip.
func TestRedis_SetGet(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	value := []byte(`{"response":"hello"}`)
	require.NoError(t, r.Set(ctx, "k1", value, time.Minute))

	got, found, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value, got)
}

// TestRedis_Miss tests that an absent key is a clean miss, not an error.
func TestRedis_Miss(t *testing.T) {
	r := newTestRedis(t)

	_, found, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, found)
}

// TestRedis_TTL tests native key expiry.
func TestRedis_TTL(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "short", []byte("v"), time.Second))

	_, found, err := r.Get(ctx, "short")
	require.NoError(t, err)
	require.True(t, found)

	time.Sleep(1500 * time.Millisecond)

	_, found, err = r.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found, "Key should expire")
}

// TestRedis_DeleteAndClear tests removal operations.
func TestRedis_DeleteAndClear(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, r.Set(ctx, "k2", []byte("v"), time.Minute))

	require.NoError(t, r.Delete(ctx, "k1"))
	_, found, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, r.Clear(ctx))
	_, found, err = r.Get(ctx, "k2")
	require.NoError(t, err)
	require.False(t, found)
}

// TestRedis_Info tests the trimmed INFO snapshot.
func TestRedis_Info(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k1", []byte("v"), time.Minute))

	info, err := r.Info(ctx)
	require.NoError(t, err)
	require.Contains(t, info, "redis_version")
	require.Contains(t, info, "entries")
	require.NoError(t, r.Ping(ctx))
}

// TestRedis_ConnectFailure tests that an unreachable address fails fast.
func TestRedis_ConnectFailure(t *testing.T) {
	if os.Getenv("VALVEGATE_TEST_REDIS") == "" {
		t.Skip("set VALVEGATE_TEST_REDIS to run Redis integration tests")
	}

	_, err := NewRedis(RedisConfig{Addr: "localhost:1"})
	require.Error(t, err)
}
