// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router dispatches queries through the full pipeline:
// analyze, select a tier, consult the cache, invoke the backend, report.
//
// # Key Types
//
//   - Router: the pipeline, built explicitly from its four dependencies
//   - Response: the envelope every processed query returns
//   - ValidationError, UnknownTierError: request rejections (HTTP 400)
//
// # Usage
//
// Build a router from its parts and process a query:
//
//	r, err := router.New(an, tiers, backends, store)
//	if err != nil {
//	    ...
//	}
//	resp, err := r.Process(ctx, "Diagnosis of mitral valve regurgitation", "")
//
// Passing a tier name as the second argument forces that tier, bypassing
// the recommendation but not the analysis.
//
// # Cost Reporting
//
// Cost is never invented after the fact. A fresh backend run reports the
// estimate for the tier that served it; a cache hit reports the cost
// stored when the entry was first computed. Elapsed time is always the
// real wall time of this request, so hits show their true (small) latency
// rather than a replayed figure.
//
// # Failure Semantics
//
// The router makes exactly one backend attempt: no retries, no silent
// tier downgrades. A failed invocation caches nothing, so transient
// backend errors never poison the cache.
package router
