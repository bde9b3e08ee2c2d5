// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/backend"
	"github.com/jeranaias/valvegate/internal/cache"
	"github.com/jeranaias/valvegate/internal/telemetry"
	"github.com/jeranaias/valvegate/internal/tier"
)

// DefaultMaxQueryLen bounds accepted query length in bytes.
const DefaultMaxQueryLen = 1000

// logPreviewLen is how much of a query appears in log lines.
const logPreviewLen = 50

// Response is the envelope returned for every processed query.
type Response struct {
	Text            string        `json:"response"`
	TierUsed        string        `json:"tier_used"`
	Cost            float64       `json:"cost"`
	Elapsed         time.Duration `json:"elapsed"`
	CacheHit        bool          `json:"cache_hit"`
	ComplexityScore int           `json:"complexity_score"`
	Confidence      float64       `json:"confidence"`
}

// Router is the query pipeline. Construct it with New; the zero value is
// not usable.
type Router struct {
	analyzer    *analyzer.Analyzer
	tiers       *tier.Registry
	backends    *backend.Registry
	cache       *cache.Store
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	maxQueryLen int
}

// Option customizes a Router at construction.
type Option func(*Router)

// WithMetrics attaches a metrics registry. Without one, nothing is
// recorded.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithLogger attaches a logger. Without one, the router is silent.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMaxQueryLen overrides the query length limit.
func WithMaxQueryLen(n int) Option {
	return func(r *Router) { r.maxQueryLen = n }
}

// New builds a Router. Every dependency is explicit and required: the
// analyzer that scores queries, the tier table, the backend registry,
// and the cache store. There are no hidden defaults for any of them.
func New(an *analyzer.Analyzer, tiers *tier.Registry, backends *backend.Registry, store *cache.Store, opts ...Option) (*Router, error) {
	if an == nil {
		return nil, errors.New("router needs an analyzer")
	}
	if tiers == nil {
		return nil, errors.New("router needs a tier registry")
	}
	if backends == nil {
		return nil, errors.New("router needs a backend registry")
	}
	if store == nil {
		return nil, errors.New("router needs a cache store")
	}

	r := &Router{
		analyzer:    an,
		tiers:       tiers,
		backends:    backends,
		cache:       store,
		logger:      zap.NewNop(),
		maxQueryLen: DefaultMaxQueryLen,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Process runs one query through the pipeline. An empty forcedTier uses
// the analyzer's recommendation; a non-empty one must name a registered
// tier and is used verbatim, with no fallback to another tier.
//
// The pipeline order is fixed: validate, analyze, resolve the tier,
// consult the cache, invoke the backend, store the result. An unknown
// forced tier fails before the cache or any backend is touched. A backend
// failure caches nothing and is returned as is; there are no retries and
// no silent downgrades.
func (r *Router) Process(ctx context.Context, query string, forcedTier string) (Response, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return Response{}, &ValidationError{Field: "query", Message: "must not be empty"}
	}
	if len(query) > r.maxQueryLen {
		return Response{}, &ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("exceeds %d bytes", r.maxQueryLen),
		}
	}

	// The analysis always runs, even for forced tiers: the envelope
	// reports complexity and confidence regardless of how the tier was
	// chosen.
	analysis := r.analyzer.Analyze(query)

	tierName := analysis.RecommendedTier
	if forcedTier != "" {
		tierName = forcedTier
	}
	selected, ok := r.tiers.Get(tierName)
	if !ok {
		return Response{}, &UnknownTierError{Name: tierName}
	}

	// Keys derive from the normalized text so casing and whitespace
	// variants of one question share a cache entry.
	key := cache.Key(analysis.Normalized, selected.Name, nil)
	if entry, ok := r.cache.Get(ctx, key); ok {
		r.logger.Info("cache hit",
			zap.String("query", preview(query)),
			zap.String("tier", selected.Name))

		resp := Response{
			Text:            entry.Response,
			TierUsed:        selected.Name,
			Cost:            entry.Cost, // cost paid when the entry was computed
			Elapsed:         time.Since(start),
			CacheHit:        true,
			ComplexityScore: analysis.ComplexityScore,
			Confidence:      analysis.Confidence,
		}
		r.record(query, resp, nil)
		return resp, nil
	}

	inv, ok := r.backends.Get(selected.Name)
	if !ok {
		err := &backend.UnavailableError{
			Tier:  selected.Name,
			Cause: errors.New("no backend registered"),
		}
		r.record(query, Response{TierUsed: selected.Name, Elapsed: time.Since(start)}, err)
		return Response{}, err
	}

	r.logger.Info("processing query",
		zap.String("query", preview(query)),
		zap.String("tier", selected.Name),
		zap.Int("complexity_score", analysis.ComplexityScore),
		zap.String("backend", inv.Kind().String()))

	text, err := inv.Invoke(ctx, backend.Request{
		Query:    query,
		Analysis: analysis,
		Tier:     selected,
	})
	if err != nil {
		wrapped := &backend.UnavailableError{Tier: selected.Name, Cause: err}
		r.record(query, Response{TierUsed: selected.Name, Elapsed: time.Since(start)}, wrapped)
		return Response{}, wrapped
	}

	// The cost is the analysis-time estimate, also when the tier was
	// forced. Per-tier pricing is EstimateCosts' job.
	cost := analysis.EstimatedCost

	// Don't write the cache on a canceled request: the caller is gone,
	// and the next uncanceled request will recompute and store cleanly.
	if ctx.Err() == nil {
		r.cache.Put(ctx, key, cache.Entry{
			Response:        text,
			Cost:            cost,
			Tier:            selected.Name,
			ComplexityScore: analysis.ComplexityScore,
			CreatedAt:       time.Now(),
		})
	}

	resp := Response{
		Text:            text,
		TierUsed:        selected.Name,
		Cost:            cost,
		Elapsed:         time.Since(start),
		CacheHit:        false,
		ComplexityScore: analysis.ComplexityScore,
		Confidence:      analysis.Confidence,
	}
	r.record(query, resp, nil)
	return resp, nil
}

// Analyze exposes the analyzer for endpoints that report analysis without
// processing.
func (r *Router) Analyze(query string) analyzer.Analysis {
	return r.analyzer.Analyze(query)
}

// TierCost is one tier's estimate in a cost comparison.
type TierCost struct {
	EstimatedCost float64 `json:"estimated_cost"`
	Recommended   bool    `json:"recommended"`
}

// CostEstimate compares the cost of a query across every tier.
type CostEstimate struct {
	Analysis    analyzer.Analysis   `json:"query_analysis"`
	Tiers       map[string]TierCost `json:"tier_costs"`
	Recommended string              `json:"recommended_tier"`
}

// EstimateCosts analyzes a query and prices it on every registered tier.
func (r *Router) EstimateCosts(query string) CostEstimate {
	analysis := r.analyzer.Analyze(query)

	est := CostEstimate{
		Analysis:    analysis,
		Tiers:       make(map[string]TierCost, r.tiers.Len()),
		Recommended: analysis.RecommendedTier,
	}
	for _, t := range r.tiers.List() {
		est.Tiers[t.Name] = TierCost{
			EstimatedCost: r.analyzer.EstimateCost(t, analysis),
			Recommended:   t.Name == analysis.RecommendedTier,
		}
	}
	return est
}

// Tiers returns the tier table.
func (r *Router) Tiers() *tier.Registry { return r.tiers }

// Backends returns the backend registry.
func (r *Router) Backends() *backend.Registry { return r.backends }

// Cache returns the cache store.
func (r *Router) Cache() *cache.Store { return r.cache }

// Metrics returns the metrics registry, or nil when none is attached.
func (r *Router) Metrics() *telemetry.Metrics { return r.metrics }

func (r *Router) record(query string, resp Response, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.Record(telemetry.Observation{
		Query:    query,
		Tier:     resp.TierUsed,
		Cost:     resp.Cost,
		Elapsed:  resp.Elapsed,
		CacheHit: resp.CacheHit,
		Failed:   err != nil,
	})
}

// preview truncates a query for logging.
func preview(s string) string {
	if len(s) <= logPreviewLen {
		return s
	}
	return s[:logPreviewLen] + "..."
}
