// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tier

import (
	"math"
	"testing"
)

func TestSelectForScore(t *testing.T) {
	r := Default()

	tests := []struct {
		name  string
		score int
		want  string
	}{
		{"zero score stays basic", 0, Basic},
		{"negative score stays basic", -5, Basic},
		{"just below basic bound", 24, Basic},
		{"basic bound is exclusive", 25, Intermediate},
		{"mid intermediate", 80, Intermediate},
		{"just below intermediate bound", 149, Intermediate},
		{"intermediate bound is exclusive", 150, Advanced},
		{"large score", 5000, Advanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.SelectForScore(tt.score)
			if got.Name != tt.want {
				t.Errorf("SelectForScore(%d) = %q, want %q", tt.score, got.Name, tt.want)
			}
		})
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []Tier
		wantErr bool
	}{
		{
			name:    "empty table",
			tiers:   nil,
			wantErr: true,
		},
		{
			name:    "single unbounded tier",
			tiers:   []Tier{{Name: "only", CostPerUnit: 0.001}},
			wantErr: false,
		},
		{
			name: "valid three tiers",
			tiers: []Tier{
				{Name: "a", UpperBound: 10},
				{Name: "b", UpperBound: 20},
				{Name: "c"},
			},
			wantErr: false,
		},
		{
			name: "duplicate names",
			tiers: []Tier{
				{Name: "a", UpperBound: 10},
				{Name: "a"},
			},
			wantErr: true,
		},
		{
			name: "missing name",
			tiers: []Tier{
				{Name: "", UpperBound: 10},
				{Name: "b"},
			},
			wantErr: true,
		},
		{
			name: "bounds not ascending",
			tiers: []Tier{
				{Name: "a", UpperBound: 20},
				{Name: "b", UpperBound: 10},
				{Name: "c"},
			},
			wantErr: true,
		},
		{
			name: "equal bounds",
			tiers: []Tier{
				{Name: "a", UpperBound: 20},
				{Name: "b", UpperBound: 20},
				{Name: "c"},
			},
			wantErr: true,
		},
		{
			name: "unbounded tier in the middle",
			tiers: []Tier{
				{Name: "a", UpperBound: 10},
				{Name: "b"},
				{Name: "c"},
			},
			wantErr: true,
		},
		{
			name: "highest tier bounded",
			tiers: []Tier{
				{Name: "a", UpperBound: 10},
				{Name: "b", UpperBound: 20},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tiers)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryGet(t *testing.T) {
	r := Default()

	got, ok := r.Get(Intermediate)
	if !ok {
		t.Fatal("Get(intermediate) not found")
	}
	if got.CostPerUnit != 0.0005 {
		t.Errorf("intermediate CostPerUnit = %v, want 0.0005", got.CostPerUnit)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("intermediate MaxTokens = %d, want 1024", got.MaxTokens)
	}

	if _, ok := r.Get("deluxe"); ok {
		t.Error("Get(deluxe) found, want miss")
	}
}

func TestRegistryListIsACopy(t *testing.T) {
	r := Default()

	list := r.List()
	list[0].Name = "mutated"

	if got := r.List()[0].Name; got != Basic {
		t.Errorf("List leaked internal state: first tier = %q, want %q", got, Basic)
	}
}

func TestRegistryNames(t *testing.T) {
	r := Default()

	want := []string{Basic, Intermediate, Advanced}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCostMultiplierBands(t *testing.T) {
	b := DefaultCostBands()

	tests := []struct {
		score int
		want  float64
	}{
		{0, 1.0},
		{50, 1.0},
		{51, 1.5},
		{150, 1.5},
		{151, 2.0},
		{1000, 2.0},
	}

	for _, tt := range tests {
		if got := b.Multiplier(tt.score); got != tt.want {
			t.Errorf("Multiplier(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	r := Default()
	basic, _ := r.Get(Basic)
	intermediate, _ := r.Get(Intermediate)
	advanced, _ := r.Get(Advanced)

	tests := []struct {
		name      string
		tier      Tier
		score     int
		wordCount int
		want      float64
	}{
		{"basic short query", basic, 10, 4, 0.0001 * 1.0 * 4 / 100},
		{"intermediate at face value", intermediate, 35, 13, 0.0005 * 1.0 * 13 / 100},
		{"elevated band kicks in", intermediate, 80, 40, 0.0005 * 1.5 * 40 / 100},
		{"high band on advanced", advanced, 200, 120, 0.001 * 2.0 * 120 / 100},
		{"empty query costs nothing", basic, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(tt.tier, tt.score, tt.wordCount)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("EstimateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name        string
		domainMatch bool
		score       int
		want        float64
	}{
		{"no signals", false, 0, 0.7},
		{"score in range only", false, 20, 0.8},
		{"score at top of range", false, 200, 0.8},
		{"score above range", false, 201, 0.7},
		{"score below range", false, 19, 0.7},
		{"domain match only", true, 5, 0.9},
		{"domain match and range capped at one", true, 100, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.domainMatch, tt.score)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Confidence(%v, %d) = %v, want %v", tt.domainMatch, tt.score, got, tt.want)
			}
		})
	}
}

func BenchmarkSelectForScore(b *testing.B) {
	r := Default()
	for i := 0; i < b.N; i++ {
		_ = r.SelectForScore(i % 300)
	}
}
