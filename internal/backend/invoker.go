// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the model backends the router dispatches to.
//
// Each tier is served by one Invoker. Built-in invokers cover the domain
// classifier (fixed label space), the template generative responder, and
// a remote HTTP inference service. The Registry maps tier names to
// invokers and tags each with its kind so status reporting can say what
// actually serves a tier.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/tier"
)

// ============================================================================
// KIND
// ============================================================================

// Kind identifies what sort of backend serves a tier.
type Kind int

const (
	// KindClassifier is the fixed-label domain classifier.
	KindClassifier Kind = iota
	// KindGenerative is the template response generator.
	KindGenerative
	// KindHTTP is a remote inference service reached over HTTP.
	KindHTTP
)

// String returns the kind name used in status output and logs.
func (k Kind) String() string {
	switch k {
	case KindClassifier:
		return "classifier"
	case KindGenerative:
		return "generative"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ============================================================================
// INVOKER
// ============================================================================

// Request carries everything an invocation needs: the raw query, its
// analysis, and the tier configuration it was routed to.
type Request struct {
	Query    string
	Analysis analyzer.Analysis
	Tier     tier.Tier
}

// Invoker produces a response for a query. Implementations must be safe
// for concurrent use.
type Invoker interface {
	// Kind reports what sort of backend this is.
	Kind() Kind

	// Invoke computes the response text. A failure means the backend is
	// unavailable for this request; the router does not retry.
	Invoke(ctx context.Context, req Request) (string, error)
}

// UnavailableError wraps a backend failure for one tier. The router maps
// it to a 503 so callers can distinguish "backend down" from bad input.
type UnavailableError struct {
	Tier  string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend for tier %q unavailable: %v", e.Tier, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry maps tier names to their invokers.
type Registry struct {
	mu       sync.RWMutex
	invokers map[string]Invoker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[string]Invoker)}
}

// Register binds an invoker to a tier name. Registering the same name
// again replaces the previous invoker.
func (r *Registry) Register(tierName string, inv Invoker) error {
	if tierName == "" {
		return fmt.Errorf("backend registration needs a tier name")
	}
	if inv == nil {
		return fmt.Errorf("backend registration for tier %q needs an invoker", tierName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[tierName] = inv
	return nil
}

// Get returns the invoker serving a tier.
func (r *Registry) Get(tierName string) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invokers[tierName]
	return inv, ok
}

// Kinds returns tier name to backend kind for every registration, for
// status reporting.
func (r *Registry) Kinds() map[string]Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Kind, len(r.invokers))
	for name, inv := range r.invokers {
		out[name] = inv.Kind()
	}
	return out
}

// Names returns the registered tier names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.invokers))
	for name := range r.invokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invokers)
}
