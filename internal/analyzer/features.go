// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"regexp"
	"strings"
)

// ============================================================================
// NORMALIZATION
// ============================================================================

// Normalize lowercases the text, trims it, and collapses internal whitespace
// runs to a single space. All feature matching operates on this form, which
// makes every match case-insensitive.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// ============================================================================
// TERM TABLES
// ============================================================================

// domainVocabulary is the structural heart term list, matched by substring
// against normalized text. Entries are lowercase and scanned in order, so
// extraction output is deterministic.
var domainVocabulary = []string{
	"aortic valve",
	"mitral valve",
	"tricuspid valve",
	"pulmonary valve",
	"valvular stenosis",
	"valvular regurgitation",
	"prolapse",
	"annuloplasty",
	"valve replacement",
	"transcatheter",
	"echocardiography",
	"cardiac catheterization",
	"cardiac mri",
	"left ventricular",
	"right ventricular",
	"atrial",
	"ventricular",
	"ejection fraction",
	"cardiac output",
	"stroke volume",
	"coronary artery",
	"myocardial infarction",
	"cardiomyopathy",
	"congenital heart disease",
	"rheumatic heart disease",
}

// DomainVocabulary returns a copy of the domain term list.
func DomainVocabulary() []string {
	out := make([]string, len(domainVocabulary))
	copy(out, domainVocabulary)
	return out
}

var (
	// measurementPattern captures a numeric value with a clinical unit.
	// The percent sign needs no trailing word boundary so values at the
	// end of the text ("35%") still match; "mmhg" precedes "mm" so the
	// longer unit wins.
	measurementPattern = regexp.MustCompile(`\b\d+\.?\d*\s*(?:(?:mmhg|mm|cm|ml|bpm)\b|%)`)

	procedurePattern  = regexp.MustCompile(`\b(?:procedure|surgery|intervention|treatment|operation)\b`)
	diagnosticPattern = regexp.MustCompile(`\b(?:diagnosis|diagnostic|assessment|evaluation|examination)\b`)
	clinicalPattern   = regexp.MustCompile(`\b(?:patient|case|history|symptoms|clinical)\b`)
	technicalPattern  = regexp.MustCompile(`\b(?:algorithm|protocol|methodology|analysis|computation)\b`)
)

// ============================================================================
// EXTRACTION
// ============================================================================

// Extract derives the feature term lists from query text. The text is
// normalized before matching, so callers may pass raw input.
func Extract(text string) Features {
	norm := Normalize(text)

	f := Features{
		WordCount: len(strings.Fields(norm)),
	}

	for _, term := range domainVocabulary {
		if strings.Contains(norm, term) {
			f.DomainTerms = append(f.DomainTerms, term)
		}
	}

	f.Measurements = dedupe(measurementPattern.FindAllString(norm, -1))
	f.Procedures = dedupe(procedurePattern.FindAllString(norm, -1))
	f.Diagnostics = dedupe(diagnosticPattern.FindAllString(norm, -1))
	f.Clinical = dedupe(clinicalPattern.FindAllString(norm, -1))
	f.Technical = dedupe(technicalPattern.FindAllString(norm, -1))

	return f
}

// dedupe removes repeated terms, keeping first-match order.
func dedupe(terms []string) []string {
	if len(terms) < 2 {
		return terms
	}
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
