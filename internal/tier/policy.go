// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tier

// ============================================================================
// COST ESTIMATION
// ============================================================================

// CostBands scales the cost estimate by complexity. Scores above High pay
// HighFactor, scores above Elevated pay ElevatedFactor, everything else
// pays face value. The bands are independent of tier selection bounds.
type CostBands struct {
	Elevated       int
	High           int
	ElevatedFactor float64
	HighFactor     float64
}

// DefaultCostBands returns the standard bands: 1.5x above 50, 2x above 150.
func DefaultCostBands() CostBands {
	return CostBands{
		Elevated:       50,
		High:           150,
		ElevatedFactor: 1.5,
		HighFactor:     2.0,
	}
}

// Multiplier returns the cost multiplier for a complexity score.
func (b CostBands) Multiplier(score int) float64 {
	switch {
	case score > b.High:
		return b.HighFactor
	case score > b.Elevated:
		return b.ElevatedFactor
	default:
		return 1.0
	}
}

// EstimateCost estimates the cost of processing a query on the given tier.
// The word count stands in for the token count (one unit per 100 tokens).
func (b CostBands) EstimateCost(t Tier, score, wordCount int) float64 {
	return t.CostPerUnit * b.Multiplier(score) * float64(wordCount) / 100
}

// EstimateCost estimates cost using the default bands.
func EstimateCost(t Tier, score, wordCount int) float64 {
	return DefaultCostBands().EstimateCost(t, score, wordCount)
}

// ============================================================================
// CONFIDENCE
// ============================================================================

const (
	confidenceBase        = 0.7
	confidenceDomainBonus = 0.2
	confidenceRangeBonus  = 0.1
	confidenceRangeLow    = 20
	confidenceRangeHigh   = 200
)

// Confidence scores how reliable a tier recommendation is, in [0.7, 1.0].
// Matching domain vocabulary earns +0.2; a complexity score inside the
// well-calibrated 20..200 range earns +0.1.
func Confidence(domainMatch bool, score int) float64 {
	c := confidenceBase
	if domainMatch {
		c += confidenceDomainBonus
	}
	if score >= confidenceRangeLow && score <= confidenceRangeHigh {
		c += confidenceRangeBonus
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
