// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"math"
	"strings"
)

// ============================================================================
// COMPLEXITY SCORING
// ============================================================================

// Weights are the per-category scoring weights. Each matched term
// contributes its category weight once; word count contributes fractionally.
type Weights struct {
	WordCount   float64
	DomainTerm  float64
	Measurement float64
	Procedure   float64
	Diagnostic  float64
	Clinical    float64
	Technical   float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		WordCount:   0.1,
		DomainTerm:  10,
		Measurement: 5,
		Procedure:   8,
		Diagnostic:  6,
		Clinical:    4,
		Technical:   3,
	}
}

// Score computes the complexity score for a feature set, rounded to the
// nearest integer. An empty query scores zero.
func (w Weights) Score(f Features) int {
	raw := float64(f.WordCount)*w.WordCount +
		float64(len(f.DomainTerms))*w.DomainTerm +
		float64(len(f.Measurements))*w.Measurement +
		float64(len(f.Procedures))*w.Procedure +
		float64(len(f.Diagnostics))*w.Diagnostic +
		float64(len(f.Clinical))*w.Clinical +
		float64(len(f.Technical))*w.Technical
	return int(math.Round(raw))
}

// ============================================================================
// QUERY TYPE CLASSIFICATION
// ============================================================================

// TypeKeywords holds the trigger keywords per query type. They are matched
// by substring against normalized text and are deliberately separate from
// the scoring term tables: "assessment" scores as a diagnostic term but
// classifies as an assessment query.
type TypeKeywords struct {
	Diagnostic  []string
	Therapeutic []string
	Assessment  []string
}

// DefaultTypeKeywords returns the standard classification keywords.
func DefaultTypeKeywords() TypeKeywords {
	return TypeKeywords{
		Diagnostic:  []string{"diagnosis", "diagnostic"},
		Therapeutic: []string{"treatment", "procedure", "surgery"},
		Assessment:  []string{"measurement", "assessment"},
	}
}

// Classify determines the query type. First match wins:
//
//	1. diagnostic keywords
//	2. therapeutic keywords
//	3. assessment keywords
//	4. any domain term present -> domain_specific
//	5. general
func (k TypeKeywords) Classify(text string, f Features) QueryType {
	q := Normalize(text)

	if containsAny(q, k.Diagnostic) {
		return QueryTypeDiagnostic
	}
	if containsAny(q, k.Therapeutic) {
		return QueryTypeTherapeutic
	}
	if containsAny(q, k.Assessment) {
		return QueryTypeAssessment
	}
	if f.HasDomainTerms() {
		return QueryTypeDomainSpecific
	}
	return QueryTypeGeneral
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
