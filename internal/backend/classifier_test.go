// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"testing"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/tier"
)

func analyze(t *testing.T, query string) Request {
	t.Helper()
	a := analyzer.New(tier.Default())
	analysis := a.Analyze(query)
	reg := tier.Default()
	selected, _ := reg.Get(analysis.RecommendedTier)
	return Request{Query: query, Analysis: analysis, Tier: selected}
}

func TestClassifierInvoke(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "single valve",
			query: "Diagnosis of mitral valve regurgitation",
			want:  "Mitral valve disease detected",
		},
		{
			name:  "aortic valve",
			query: "Patient presents with aortic valve calcification",
			want:  "Aortic valve disease detected",
		},
		{
			name:  "tricuspid valve",
			query: "tricuspid valve annular dilation",
			want:  "Tricuspid valve disease detected",
		},
		{
			name:  "pulmonary valve",
			query: "Pulmonary valve gradient interpretation",
			want:  "Pulmonary valve disease detected",
		},
		{
			name:  "two valves is complex",
			query: "Severe aortic valve stenosis with mitral valve prolapse",
			want:  "Complex structural heart disease",
		},
		{
			name:  "disease term without valve",
			query: "History of cardiomyopathy in the family",
			want:  "Complex structural heart disease",
		},
		{
			name:  "diagnostic without domain terms",
			query: "Diagnosis of recurring chest pain",
			want:  "Requires further diagnostic evaluation",
		},
		{
			name:  "therapeutic without domain terms",
			query: "What treatment should be considered?",
			want:  "Surgical intervention recommended",
		},
		{
			name:  "assessment without domain terms",
			query: "Routine measurement assessment results",
			want:  "Medical management appropriate",
		},
		{
			name:  "domain term without disease",
			query: "What is the ejection fraction?",
			want:  "Normal cardiac structure and function",
		},
		{
			name:  "general query",
			query: "What is the heart?",
			want:  "Normal cardiac structure and function",
		},
		{
			name:  "empty query is inconclusive",
			query: "",
			want:  "Analysis inconclusive",
		},
		{
			name:  "whitespace only is inconclusive",
			query: "   \t  ",
			want:  "Analysis inconclusive",
		},
	}

	c := NewClassifier("biomed-base")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Invoke(context.Background(), analyze(t, tt.query))
			if err != nil {
				t.Fatalf("Invoke(%q) error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("Invoke(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassifierDeterministic(t *testing.T) {
	c := NewClassifier("biomed-base")
	req := analyze(t, "Severe aortic valve stenosis with regurgitation")

	first, err := c.Invoke(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		got, err := c.Invoke(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Fatalf("classification not deterministic: %q then %q", first, got)
		}
	}
}

func TestClassifierCanceledContext(t *testing.T) {
	c := NewClassifier("biomed-base")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Invoke(ctx, analyze(t, "mitral valve"))
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestClassifierKind(t *testing.T) {
	c := NewClassifier("biomed-base")
	if c.Kind() != KindClassifier {
		t.Errorf("Kind() = %v, want KindClassifier", c.Kind())
	}
	if c.Model() != "biomed-base" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestCategoryOutOfRange(t *testing.T) {
	if got := category(-1); got != inconclusiveResponse {
		t.Errorf("category(-1) = %q", got)
	}
	if got := category(99); got != inconclusiveResponse {
		t.Errorf("category(99) = %q", got)
	}
	if got := category(0); got != "Normal cardiac structure and function" {
		t.Errorf("category(0) = %q", got)
	}
}
