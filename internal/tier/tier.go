// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tier defines the model tiers available for query processing and
// the policy for selecting the cheapest capable tier for a complexity score.
//
// Tiers are ordered cheapest first. Each tier has an EXCLUSIVE upper
// complexity bound: a score selects the first tier whose bound exceeds it,
// and a score equal to the bound falls through to the next tier. The highest
// tier carries no bound and absorbs everything.
package tier

import (
	"fmt"
)

// Built-in tier names.
const (
	Basic        = "basic"
	Intermediate = "intermediate"
	Advanced     = "advanced"
)

// ============================================================================
// TIER
// ============================================================================

// Tier describes one model tier: its reference model, token ceiling,
// per-unit cost, and the complexity range it serves.
type Tier struct {
	// Name identifies the tier ("basic", "intermediate", "advanced").
	Name string `toml:"name" json:"name"`
	// Model is the reference model backing this tier.
	Model string `toml:"model" json:"model"`
	// MaxTokens caps the input length forwarded to the backend.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// CostPerUnit is the nominal cost per processing unit.
	CostPerUnit float64 `toml:"cost_per_unit" json:"cost_per_unit"`
	// UpperBound is the exclusive complexity bound for this tier.
	// Zero or negative means unbounded (highest tier only).
	UpperBound int `toml:"upper_bound" json:"upper_bound"`
	// Accelerated indicates the backing model runs on accelerated hardware.
	Accelerated bool `toml:"accelerated" json:"accelerated"`
}

// Unbounded reports whether the tier has no upper complexity bound.
func (t Tier) Unbounded() bool {
	return t.UpperBound <= 0
}

// String returns a short human-readable summary of the tier.
func (t Tier) String() string {
	if t.Unbounded() {
		return fmt.Sprintf("%s (cost=%.4g/unit, unbounded)", t.Name, t.CostPerUnit)
	}
	return fmt.Sprintf("%s (cost=%.4g/unit, score<%d)", t.Name, t.CostPerUnit, t.UpperBound)
}

// DefaultTiers returns the built-in three-tier table.
//
// Bounds are exclusive: scores below 25 stay on basic, scores below 150 go
// to intermediate, everything else lands on advanced.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:        Basic,
			Model:       "microsoft/BiomedNLP-PubMedBERT-base-uncased-abstract",
			MaxTokens:   512,
			CostPerUnit: 0.0001,
			UpperBound:  25,
			Accelerated: false,
		},
		{
			Name:        Intermediate,
			Model:       "microsoft/BiomedNLP-PubMedBERT-large-uncased-abstract",
			MaxTokens:   1024,
			CostPerUnit: 0.0005,
			UpperBound:  150,
			Accelerated: true,
		},
		{
			Name:        Advanced,
			Model:       "microsoft/BiomedNLP-PubMedBERT-large-uncased-abstract-fulltext",
			MaxTokens:   2048,
			CostPerUnit: 0.001,
			UpperBound:  0,
			Accelerated: true,
		},
	}
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry holds the configured tiers, ordered cheapest first.
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	tiers  []Tier
	byName map[string]int
}

// NewRegistry builds a registry from an ordered tier list.
//
// Validation rules:
//   - at least one tier
//   - unique, non-empty names
//   - bounds strictly ascending
//   - only the highest tier may be unbounded; the highest tier MUST be unbounded
func NewRegistry(tiers []Tier) (*Registry, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("registry requires at least one tier")
	}

	byName := make(map[string]int, len(tiers))
	prevBound := 0
	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("tier %d has no name", i)
		}
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tier name %q", t.Name)
		}
		byName[t.Name] = i

		last := i == len(tiers)-1
		if last {
			if !t.Unbounded() {
				return nil, fmt.Errorf("highest tier %q must be unbounded", t.Name)
			}
			continue
		}
		if t.Unbounded() {
			return nil, fmt.Errorf("tier %q is unbounded but is not the highest tier", t.Name)
		}
		if t.UpperBound <= prevBound {
			return nil, fmt.Errorf("tier %q bound %d does not exceed previous bound %d", t.Name, t.UpperBound, prevBound)
		}
		prevBound = t.UpperBound
	}

	owned := make([]Tier, len(tiers))
	copy(owned, tiers)
	return &Registry{tiers: owned, byName: byName}, nil
}

// Default returns a registry with the built-in tiers.
func Default() *Registry {
	r, err := NewRegistry(DefaultTiers())
	if err != nil {
		panic(err) // built-in table is known good
	}
	return r
}

// SelectForScore returns the cheapest tier whose upper bound exceeds the
// score. Bound edges are exclusive: a score equal to a tier's bound selects
// the next tier up. Scores beyond every bound land on the highest tier.
func (r *Registry) SelectForScore(score int) Tier {
	for _, t := range r.tiers {
		if !t.Unbounded() && score < t.UpperBound {
			return t
		}
	}
	return r.tiers[len(r.tiers)-1]
}

// Get looks up a tier by name.
func (r *Registry) Get(name string) (Tier, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tier{}, false
	}
	return r.tiers[i], true
}

// List returns a copy of the tier table, cheapest first.
func (r *Registry) List() []Tier {
	out := make([]Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// Names returns the tier names, cheapest first.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tiers))
	for i, t := range r.tiers {
		out[i] = t.Name
	}
	return out
}

// Len returns the number of registered tiers.
func (r *Registry) Len() int {
	return len(r.tiers)
}
