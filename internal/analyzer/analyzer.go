// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer turns free-text queries into routing signals: extracted
// domain features, a complexity score, a query type, and a tier
// recommendation with cost estimate and confidence.
//
// Analysis is a pure function of the input text and the configured policy
// tables. The Analyzer performs no I/O and holds no mutable state, so a
// single instance is safe for concurrent use.
package analyzer

import (
	"github.com/jeranaias/valvegate/internal/tier"
)

// Analyzer composes feature extraction, complexity scoring, query type
// classification, and tier recommendation into one pass.
type Analyzer struct {
	weights  Weights
	keywords TypeKeywords
	bands    tier.CostBands
	tiers    *tier.Registry
}

// Option customizes an Analyzer at construction.
type Option func(*Analyzer)

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) { a.weights = w }
}

// WithTypeKeywords overrides the query type keyword tables.
func WithTypeKeywords(k TypeKeywords) Option {
	return func(a *Analyzer) { a.keywords = k }
}

// WithCostBands overrides the cost multiplier bands.
func WithCostBands(b tier.CostBands) Option {
	return func(a *Analyzer) { a.bands = b }
}

// New builds an Analyzer recommending tiers from the given registry,
// with the default policy tables unless overridden by options.
func New(tiers *tier.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{
		weights:  DefaultWeights(),
		keywords: DefaultTypeKeywords(),
		bands:    tier.DefaultCostBands(),
		tiers:    tiers,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the full analysis pass over one query.
func (a *Analyzer) Analyze(text string) Analysis {
	norm := Normalize(text)
	f := Extract(norm)
	score := a.weights.Score(f)
	rec := a.tiers.SelectForScore(score)

	return Analysis{
		Query:           text,
		Normalized:      norm,
		Features:        f,
		ComplexityScore: score,
		QueryType:       a.keywords.Classify(norm, f),
		RecommendedTier: rec.Name,
		EstimatedCost:   a.bands.EstimateCost(rec, score, f.WordCount),
		Confidence:      tier.Confidence(f.HasDomainTerms(), score),
	}
}

// EstimateCost estimates the cost of running the analyzed query on an
// arbitrary tier, using the analyzer's cost bands.
func (a *Analyzer) EstimateCost(t tier.Tier, analysis Analysis) float64 {
	return a.bands.EstimateCost(t, analysis.ComplexityScore, analysis.Features.WordCount)
}
