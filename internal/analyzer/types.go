// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

// ============================================================================
// QUERY TYPE
// ============================================================================

// QueryType is the coarse category of a query, used for response shaping
// and routing diagnostics.
type QueryType string

const (
	// QueryTypeDiagnostic covers queries asking for a diagnosis.
	QueryTypeDiagnostic QueryType = "diagnostic"
	// QueryTypeTherapeutic covers treatment and procedure queries.
	QueryTypeTherapeutic QueryType = "therapeutic"
	// QueryTypeAssessment covers measurement and assessment queries.
	QueryTypeAssessment QueryType = "assessment"
	// QueryTypeDomainSpecific covers queries that name domain vocabulary
	// without falling into a more specific category.
	QueryTypeDomainSpecific QueryType = "domain_specific"
	// QueryTypeGeneral is the fallback for everything else.
	QueryTypeGeneral QueryType = "general"
)

// ============================================================================
// FEATURES
// ============================================================================

// Features holds the term lists extracted from a query. Each list is
// ordered by first match and de-duplicated; a term counts once no matter
// how often it appears.
type Features struct {
	// DomainTerms are matches from the structural heart vocabulary.
	DomainTerms []string `json:"domain_terms"`
	// Measurements are numeric values with clinical units ("2.5 cm", "35%").
	Measurements []string `json:"measurements"`
	// Procedures are intervention and surgery terms.
	Procedures []string `json:"procedures"`
	// Diagnostics are diagnosis and evaluation terms.
	Diagnostics []string `json:"diagnostics"`
	// Clinical are patient context terms.
	Clinical []string `json:"clinical"`
	// Technical are methodology and computation terms.
	Technical []string `json:"technical"`
	// WordCount is the number of whitespace-separated words after
	// normalization.
	WordCount int `json:"word_count"`
}

// HasDomainTerms reports whether any domain vocabulary matched.
func (f Features) HasDomainTerms() bool {
	return len(f.DomainTerms) > 0
}

// ============================================================================
// ANALYSIS
// ============================================================================

// Analysis is the full result of analyzing one query: extracted features,
// complexity score, query type, and the tier recommendation with its cost
// estimate and confidence.
type Analysis struct {
	Query           string    `json:"query"`
	Normalized      string    `json:"normalized"`
	Features        Features  `json:"features"`
	ComplexityScore int       `json:"complexity_score"`
	QueryType       QueryType `json:"query_type"`
	RecommendedTier string    `json:"recommended_tier"`
	EstimatedCost   float64   `json:"estimated_cost"`
	Confidence      float64   `json:"confidence"`
}
