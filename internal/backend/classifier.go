// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"

	"github.com/jeranaias/valvegate/internal/analyzer"
)

// classifierCategories is the fixed label space of the structural heart
// classifier head. Indices are part of the trained model contract and
// must not be reordered.
var classifierCategories = [...]string{
	0: "Normal cardiac structure and function",
	1: "Aortic valve disease detected",
	2: "Mitral valve disease detected",
	3: "Tricuspid valve disease detected",
	4: "Pulmonary valve disease detected",
	5: "Complex structural heart disease",
	6: "Requires further diagnostic evaluation",
	7: "Surgical intervention recommended",
	8: "Medical management appropriate",
}

// inconclusiveResponse is returned when no class can be assigned.
const inconclusiveResponse = "Analysis inconclusive"

// valveClasses maps each valve vocabulary term to its label index.
var valveClasses = map[string]int{
	"aortic valve":    1,
	"mitral valve":    2,
	"tricuspid valve": 3,
	"pulmonary valve": 4,
}

// diseaseTerms are vocabulary matches that indicate structural disease
// beyond a single named valve.
var diseaseTerms = map[string]bool{
	"valvular stenosis":        true,
	"valvular regurgitation":   true,
	"prolapse":                 true,
	"myocardial infarction":    true,
	"cardiomyopathy":           true,
	"congenital heart disease": true,
	"rheumatic heart disease":  true,
}

// Classifier serves a tier with the structural heart label space. The
// class is derived deterministically from the query's extracted features,
// so identical queries always classify identically.
type Classifier struct {
	model string
}

// NewClassifier returns a classifier invoker. The model name is reported
// in status output.
func NewClassifier(model string) *Classifier {
	return &Classifier{model: model}
}

// Kind implements Invoker.
func (c *Classifier) Kind() Kind { return KindClassifier }

// Model returns the configured model name.
func (c *Classifier) Model() string { return c.model }

// Invoke implements Invoker. Classification rules, in order:
//
//  1. Two or more distinct valves mentioned: complex structural disease.
//  2. Exactly one valve mentioned: that valve's disease class.
//  3. Any other disease term: complex structural disease.
//  4. Diagnostic query: further evaluation. Therapeutic: surgical
//     intervention. Assessment: medical management.
//  5. Anything else: normal structure and function.
//
// A query with no analyzable content is inconclusive.
func (c *Classifier) Invoke(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Analysis.Features.WordCount == 0 {
		return inconclusiveResponse, nil
	}
	return category(classify(req.Analysis)), nil
}

func classify(a analyzer.Analysis) int {
	var valves []int
	for _, term := range a.Features.DomainTerms {
		if class, ok := valveClasses[term]; ok {
			valves = append(valves, class)
		}
	}

	switch {
	case len(valves) >= 2:
		return 5
	case len(valves) == 1:
		return valves[0]
	}

	for _, term := range a.Features.DomainTerms {
		if diseaseTerms[term] {
			return 5
		}
	}

	switch a.QueryType {
	case analyzer.QueryTypeDiagnostic:
		return 6
	case analyzer.QueryTypeTherapeutic:
		return 7
	case analyzer.QueryTypeAssessment:
		return 8
	}
	return 0
}

func category(class int) string {
	if class < 0 || class >= len(classifierCategories) {
		return inconclusiveResponse
	}
	return classifierCategories[class]
}
