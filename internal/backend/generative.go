// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"

	"github.com/jeranaias/valvegate/internal/analyzer"
)

// Templates maps query types to canned responses for the generative
// backend. Types without an entry fall back to the invoker's default.
type Templates map[analyzer.QueryType]string

// DefaultTemplates returns the stock response table.
func DefaultTemplates() Templates {
	return Templates{
		analyzer.QueryTypeDiagnostic:  "Based on the structural heart analysis, this appears to be a cardiac condition requiring further evaluation.",
		analyzer.QueryTypeTherapeutic: "Treatment options should be discussed with a cardiologist based on the specific structural heart findings.",
		analyzer.QueryTypeAssessment:  "Cardiac measurements indicate normal ranges. Follow-up monitoring recommended.",
	}
}

// defaultFallback answers query types with no template.
const defaultFallback = "The structural heart analysis shows normal cardiac anatomy and function."

// Generative serves a tier with template responses keyed by query type.
type Generative struct {
	model     string
	templates Templates
	fallback  string
}

// GenerativeOption customizes a Generative invoker.
type GenerativeOption func(*Generative)

// WithTemplates replaces the response table.
func WithTemplates(t Templates) GenerativeOption {
	return func(g *Generative) { g.templates = t }
}

// WithFallback replaces the response for untemplated query types.
func WithFallback(text string) GenerativeOption {
	return func(g *Generative) { g.fallback = text }
}

// NewGenerative returns a generative invoker with the stock templates.
func NewGenerative(model string, opts ...GenerativeOption) *Generative {
	g := &Generative{
		model:     model,
		templates: DefaultTemplates(),
		fallback:  defaultFallback,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Kind implements Invoker.
func (g *Generative) Kind() Kind { return KindGenerative }

// Model returns the configured model name.
func (g *Generative) Model() string { return g.model }

// Invoke implements Invoker.
func (g *Generative) Invoke(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text, ok := g.templates[req.Analysis.QueryType]; ok {
		return text, nil
	}
	return g.fallback, nil
}
