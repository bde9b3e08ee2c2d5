// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks request counts, per-tier costs, and cache
// effectiveness for valvegate.
//
// A single Metrics registry is shared by the router and the HTTP
// metrics endpoints. The router records one Observation per completed
// request; readers take a Snapshot, which deep-copies the aggregates
// so callers never see a half-updated view.
//
// # Key Types
//
//   - Metrics: concurrency-safe in-process registry
//   - Observation: one completed request (tier, cost, elapsed, cache hit)
//   - Snapshot: point-in-time copy of all aggregates
//   - QueryCost: entry in the most-expensive-queries list
//
// # Usage
//
// Record a request:
//
//	metrics := telemetry.NewMetrics()
//	metrics.Record(telemetry.Observation{
//	    Query:   "What is severe aortic stenosis?",
//	    Tier:    "intermediate",
//	    Cost:    0.00013,
//	    Elapsed: 42 * time.Millisecond,
//	})
//
// Read the aggregates:
//
//	snap := metrics.Snapshot()
//	fmt.Printf("total cost: $%.6f (saved $%.6f)\n", snap.TotalCost, snap.TotalSaved)
//
// Cache hits count the stored cost they returned as savings: that is
// the backend run the cache avoided.
//
// # Privacy
//
// Telemetry is local-only. Queries are truncated to a short preview
// before they enter the top-queries list, and nothing is transmitted.
package telemetry
