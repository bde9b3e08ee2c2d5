// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"fmt"
	"time"
)

// Default sizing, matching the service defaults.
const (
	// DefaultMaxEntries bounds the fast layer.
	DefaultMaxEntries = 10000
	// DefaultTTL is the entry lifetime in both layers.
	DefaultTTL = time.Hour
)

// Entry is one cached backend result. The stored cost is authoritative:
// a later cache hit reports the cost paid when the entry was computed,
// not a fresh estimate.
type Entry struct {
	Response        string    `json:"response"`
	Cost            float64   `json:"cost"`
	Tier            string    `json:"tier"`
	ComplexityScore int       `json:"complexity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ============================================================================
// SCOPE
// ============================================================================

// Scope selects which cache layers an operation touches.
type Scope string

const (
	// ScopeAll touches both layers.
	ScopeAll Scope = "all"
	// ScopeFast touches only the in-memory layer.
	ScopeFast Scope = "fast"
	// ScopeDurable touches only the persistent layer.
	ScopeDurable Scope = "durable"
)

// ParseScope validates a scope string. An empty string means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopeFast, ScopeDurable:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown cache scope %q (want all, fast, or durable)", s)
	}
}

// ============================================================================
// DEGRADED ERROR
// ============================================================================

// DegradedError records a durable layer failure. The store keeps serving
// from the fast layer; callers that care can probe via Store.DurableErr.
type DegradedError struct {
	Layer string
	Cause error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("cache degraded: %s layer unavailable: %v", e.Layer, e.Cause)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}
