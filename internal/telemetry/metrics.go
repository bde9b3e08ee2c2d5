// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/valvegate/internal/util"
)

// topQueryLimit caps the most-expensive-queries list.
const topQueryLimit = 10

// promptPreviewLen is how much of a query is kept in telemetry.
const promptPreviewLen = 100

// Observation is one completed request.
type Observation struct {
	Query    string
	Tier     string
	Cost     float64
	Elapsed  time.Duration
	CacheHit bool
	Failed   bool
}

// QueryCost records one request for the top-queries list.
type QueryCost struct {
	Timestamp time.Time     `json:"timestamp"`
	Prompt    string        `json:"prompt"`
	Tier      string        `json:"tier"`
	Cost      float64       `json:"cost"`
	Duration  time.Duration `json:"duration"`
	CacheHit  bool          `json:"cache_hit"`
}

// tierMetrics aggregates one tier's traffic.
type tierMetrics struct {
	requests uint64
	cost     float64
	elapsed  time.Duration
}

// Metrics is the in-process metrics registry. All methods are safe for
// concurrent use.
type Metrics struct {
	mu          sync.RWMutex
	startTime   time.Time
	total       uint64
	failures    uint64
	cacheHits   uint64
	cacheMisses uint64
	totalCost   float64
	totalSaved  float64
	elapsed     time.Duration
	tiers       map[string]*tierMetrics
	topQueries  []QueryCost
}

// NewMetrics returns an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		tiers:     make(map[string]*tierMetrics),
	}
}

// Record folds one completed request into the aggregates. A cache hit
// counts its stored cost as savings: the backend run it avoided.
func (m *Metrics) Record(obs Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.elapsed += obs.Elapsed

	if obs.Failed {
		m.failures++
		return
	}

	if obs.CacheHit {
		m.cacheHits++
		m.totalSaved += obs.Cost
	} else {
		m.cacheMisses++
		m.totalCost += obs.Cost
	}

	tm := m.tiers[obs.Tier]
	if tm == nil {
		tm = &tierMetrics{}
		m.tiers[obs.Tier] = tm
	}
	tm.requests++
	tm.elapsed += obs.Elapsed
	if !obs.CacheHit {
		tm.cost += obs.Cost
	}

	m.topQueries = append(m.topQueries, QueryCost{
		Timestamp: time.Now(),
		Prompt:    util.TruncateRunes(obs.Query, promptPreviewLen),
		Tier:      obs.Tier,
		Cost:      obs.Cost,
		Duration:  obs.Elapsed,
		CacheHit:  obs.CacheHit,
	})
	sort.SliceStable(m.topQueries, func(i, j int) bool {
		return m.topQueries[i].Cost > m.topQueries[j].Cost
	})
	if len(m.topQueries) > topQueryLimit {
		m.topQueries = m.topQueries[:topQueryLimit]
	}
}

// TierSnapshot is one tier's aggregate view.
type TierSnapshot struct {
	Requests     uint64  `json:"requests"`
	Cost         float64 `json:"cost"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of every aggregate.
type Snapshot struct {
	UptimeSeconds float64                 `json:"uptime_seconds"`
	TotalRequests uint64                  `json:"total_requests"`
	Failures      uint64                  `json:"failures"`
	CacheHits     uint64                  `json:"cache_hits"`
	CacheMisses   uint64                  `json:"cache_misses"`
	CacheHitRate  float64                 `json:"cache_hit_rate"`
	TotalCost     float64                 `json:"total_cost"`
	TotalSaved    float64                 `json:"total_saved"`
	AvgLatencyMs  float64                 `json:"avg_latency_ms"`
	Tiers         map[string]TierSnapshot `json:"tiers"`
	TopQueries    []QueryCost             `json:"top_queries"`
}

// Snapshot returns a deep copy so callers never hold references into the
// live aggregates.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		TotalRequests: m.total,
		Failures:      m.failures,
		CacheHits:     m.cacheHits,
		CacheMisses:   m.cacheMisses,
		TotalCost:     m.totalCost,
		TotalSaved:    m.totalSaved,
		Tiers:         make(map[string]TierSnapshot, len(m.tiers)),
		TopQueries:    make([]QueryCost, len(m.topQueries)),
	}
	copy(snap.TopQueries, m.topQueries)

	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(m.cacheHits) / float64(lookups)
	}
	if m.total > 0 {
		snap.AvgLatencyMs = float64(m.elapsed.Milliseconds()) / float64(m.total)
	}

	for name, tm := range m.tiers {
		ts := TierSnapshot{Requests: tm.requests, Cost: tm.cost}
		if tm.requests > 0 {
			ts.AvgLatencyMs = float64(tm.elapsed.Milliseconds()) / float64(tm.requests)
		}
		snap.Tiers[name] = ts
	}
	return snap
}

// Reset zeroes every aggregate, keeping the original start time.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = 0
	m.failures = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.totalCost = 0
	m.totalSaved = 0
	m.elapsed = 0
	m.tiers = make(map[string]*tierMetrics)
	m.topQueries = nil
}
