// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"container/list"
	"sync"
	"time"
)

// memoryEntry is one fast-layer slot with its LRU list handle.
type memoryEntry struct {
	key        string
	value      Entry
	insertedAt time.Time
	element    *list.Element
}

// isExpired checks the entry against the cache TTL. A non-positive TTL
// disables expiry.
func (e *memoryEntry) isExpired(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(e.insertedAt) > ttl
}

// Memory is the bounded in-process LRU layer with per-cache TTL.
// Thread-safe; Get takes the write lock because a hit reorders the LRU list.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]*memoryEntry
	lruList   *list.List
	maxSize   int
	ttl       time.Duration
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewMemory creates a fast layer holding at most maxSize entries, each
// living for ttl. Non-positive maxSize falls back to DefaultMaxEntries;
// non-positive ttl disables expiry.
func NewMemory(maxSize int, ttl time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	return &Memory{
		entries: make(map[string]*memoryEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves an entry. Expired entries count as misses and are removed.
func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists || entry.isExpired(m.ttl) {
		m.misses++
		if exists {
			m.removeEntry(key)
		}
		return Entry{}, false
	}

	m.lruList.MoveToFront(entry.element)
	m.hits++
	return entry.value, true
}

// Set stores an entry, refreshing its TTL and recency. The least recently
// used entry is evicted when the layer is full.
func (m *Memory) Set(key string, value Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.entries[key]; exists {
		entry.value = value
		entry.insertedAt = time.Now()
		m.lruList.MoveToFront(entry.element)
		return
	}

	if m.lruList.Len() >= m.maxSize {
		m.evictLRU()
	}

	entry := &memoryEntry{
		key:        key,
		value:      value,
		insertedAt: time.Now(),
	}
	entry.element = m.lruList.PushFront(key)
	m.entries[key] = entry
}

// Delete removes a single entry.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeEntry(key)
}

// Clear removes all entries. Counters are preserved.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	m.lruList.Init()
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lruList.Len()
}

// MemoryStats is a snapshot of fast-layer counters.
type MemoryStats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns a snapshot of the layer's counters.
func (m *Memory) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MemoryStats{
		Size:      m.lruList.Len(),
		MaxSize:   m.maxSize,
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
		HitRate:   m.hitRate(),
	}
}

// hitRate must be called with the lock held.
func (m *Memory) hitRate() float64 {
	total := m.hits + m.misses
	if total == 0 {
		return 0
	}
	return float64(m.hits) / float64(total)
}

// removeEntry must be called with the lock held.
func (m *Memory) removeEntry(key string) {
	if entry, exists := m.entries[key]; exists {
		m.lruList.Remove(entry.element)
		delete(m.entries, key)
	}
}

// evictLRU must be called with the lock held.
func (m *Memory) evictLRU() {
	back := m.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	m.lruList.Remove(back)
	delete(m.entries, key)
	m.evictions++
}

// CleanupExpired removes all expired entries and returns how many went.
func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ttl <= 0 {
		return 0
	}

	var expired []string
	for key, entry := range m.entries {
		if entry.isExpired(m.ttl) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		m.removeEntry(key)
	}
	return len(expired)
}
