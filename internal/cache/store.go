// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the two-tier response cache: a bounded in-process
// LRU with TTL in front of a durable KV backend (Redis or SQLite).
//
// Reads check the fast layer first and promote durable hits into it.
// Writes go through to both layers, but a durable write failure is logged
// and counted rather than surfaced: the entry keeps being served from
// memory and the store degrades to fast-layer-only operation until the
// backend recovers. Values can optionally be encrypted at rest with
// AES-256-GCM before they leave the process.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config assembles a Store.
type Config struct {
	// MaxEntries bounds the fast layer. Non-positive uses DefaultMaxEntries.
	MaxEntries int
	// TTL is the entry lifetime in both layers. Non-positive disables expiry.
	TTL time.Duration
	// Durable is the persistent layer. Nil runs fast-layer-only.
	Durable Durable
	// Cipher encrypts durable values at rest. Nil stores plaintext.
	Cipher *Cipher
	// Logger receives degradation warnings. Nil uses a no-op logger.
	Logger *zap.Logger
}

// Store is the two-tier cache.
type Store struct {
	memory  *Memory
	durable Durable
	cipher  *Cipher
	ttl     time.Duration
	logger  *zap.Logger

	mu         sync.RWMutex
	durableErr error
}

// New builds a Store from the config.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		memory:  NewMemory(cfg.MaxEntries, cfg.TTL),
		durable: cfg.Durable,
		cipher:  cfg.Cipher,
		ttl:     cfg.TTL,
		logger:  logger,
	}
}

// Get retrieves an entry, checking the fast layer first. A durable hit is
// promoted into the fast layer. Durable failures degrade the store and
// read as misses; they are never surfaced to the caller.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool) {
	if entry, ok := s.memory.Get(key); ok {
		return entry, true
	}

	if s.durable == nil || s.isDegraded() {
		return Entry{}, false
	}

	data, found, err := s.durable.Get(ctx, key)
	if err != nil {
		s.markDegraded(err)
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}

	entry, err := s.decodeEntry(data)
	if err != nil {
		s.logger.Warn("dropping undecodable cache entry",
			zap.String("key", key),
			zap.String("backend", s.durable.Name()),
			zap.Error(err))
		_ = s.durable.Delete(ctx, key)
		return Entry{}, false
	}

	s.memory.Set(key, entry)
	return entry, true
}

// Put stores an entry in both layers. The fast layer always succeeds; a
// durable failure is logged and degrades the store but is not returned,
// so a flaky backend never fails a request that already has its result.
func (s *Store) Put(ctx context.Context, key string, entry Entry) {
	s.memory.Set(key, entry)

	if s.durable == nil || s.isDegraded() {
		return
	}

	data, err := s.encodeEntry(entry)
	if err != nil {
		s.logger.Warn("encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.durable.Set(ctx, key, data, s.ttl); err != nil {
		s.markDegraded(err)
	}
}

// Clear wipes the layers selected by scope. Unlike Get and Put, an
// explicit clear surfaces durable errors to the caller.
func (s *Store) Clear(ctx context.Context, scope Scope) error {
	switch scope {
	case ScopeAll:
		s.memory.Clear()
		return s.clearDurable(ctx)
	case ScopeFast:
		s.memory.Clear()
		return nil
	case ScopeDurable:
		return s.clearDurable(ctx)
	default:
		return fmt.Errorf("unknown cache scope %q", scope)
	}
}

func (s *Store) clearDurable(ctx context.Context) error {
	if s.durable == nil {
		return nil
	}
	if err := s.durable.Clear(ctx); err != nil {
		s.markDegraded(err)
		return err
	}
	return nil
}

// Stats describes both layers for the stats endpoint.
type Stats struct {
	Fast             MemoryStats       `json:"fast"`
	DurableBackend   string            `json:"durable_backend,omitempty"`
	DurableAvailable bool              `json:"durable_available"`
	DurableInfo      map[string]string `json:"durable_info,omitempty"`
}

// Stats snapshots both layers. Durable info is nil while the backend is
// unavailable.
func (s *Store) Stats(ctx context.Context) Stats {
	stats := Stats{Fast: s.memory.Stats()}
	if s.durable == nil {
		return stats
	}

	stats.DurableBackend = s.durable.Name()
	info, err := s.durable.Info(ctx)
	if err != nil {
		s.markDegraded(err)
		return stats
	}
	s.clearDegraded()
	stats.DurableAvailable = true
	stats.DurableInfo = info
	return stats
}

// Healthy probes both layers: a fast-layer round trip plus a durable ping
// when a backend is configured. A successful ping clears degradation.
func (s *Store) Healthy(ctx context.Context) bool {
	const probeKey = "health_check"
	probe := Entry{Response: "ok", CreatedAt: time.Now()}

	s.memory.Set(probeKey, probe)
	got, ok := s.memory.Get(probeKey)
	s.memory.Delete(probeKey)
	if !ok || got.Response != probe.Response {
		return false
	}

	if s.durable == nil {
		return true
	}
	if err := s.durable.Ping(ctx); err != nil {
		s.markDegraded(err)
		return false
	}
	s.clearDegraded()
	return true
}

// DurableErr returns the error that degraded the durable layer, or nil
// while it is healthy.
func (s *Store) DurableErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durableErr
}

// StartJanitor sweeps expired entries out of both layers every interval
// until stopCh closes. Run it in its own goroutine.
func (s *Store) StartJanitor(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.memory.CleanupExpired(); n > 0 {
				s.logger.Debug("swept expired fast cache entries", zap.Int("count", n))
			}
			if purger, ok := s.durable.(Purger); ok && !s.isDegraded() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := purger.PurgeExpired(ctx); err == nil && n > 0 {
					s.logger.Debug("purged expired durable cache entries", zap.Int64("count", n))
				}
				cancel()
			}
		case <-stopCh:
			return
		}
	}
}

// Close releases the durable backend.
func (s *Store) Close() error {
	if s.durable == nil {
		return nil
	}
	return s.durable.Close()
}

// ============================================================================
// ENTRY CODEC
// ============================================================================

func (s *Store) encodeEntry(entry Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	if s.cipher != nil {
		return s.cipher.EncryptValue(data)
	}
	return data, nil
}

func (s *Store) decodeEntry(data []byte) (Entry, error) {
	if s.cipher != nil {
		plain, err := s.cipher.DecryptValue(data)
		if err != nil {
			return Entry{}, err
		}
		data = plain
	} else if IsEncrypted(data) {
		return Entry{}, fmt.Errorf("entry is encrypted but no cache cipher is configured")
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ============================================================================
// DEGRADATION
// ============================================================================

func (s *Store) isDegraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durableErr != nil
}

// markDegraded records a durable failure. Only the transition is logged,
// not every subsequent skipped operation.
func (s *Store) markDegraded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.durableErr != nil {
		return
	}
	s.durableErr = &DegradedError{Layer: s.durable.Name(), Cause: err}
	s.logger.Warn("durable cache layer degraded, continuing fast-layer-only",
		zap.String("backend", s.durable.Name()),
		zap.Error(err))
}

func (s *Store) clearDegraded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.durableErr == nil {
		return
	}
	s.durableErr = nil
	s.logger.Info("durable cache layer recovered")
}
