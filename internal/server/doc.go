// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the query router over an HTTP API.
//
// # Endpoints
//
//   - POST /query                - Analyze, route, and answer a query
//   - GET  /health               - Health check with per-dependency status
//   - GET  /models/status        - Tier table and registered backends
//   - GET  /models/cost-estimate - Price a query on every tier (also POST)
//   - GET  /cache/stats          - Cache statistics for both layers
//   - POST /cache/clear          - Clear cache layers by scope
//   - GET  /metrics              - Full telemetry snapshot
//   - GET  /performance          - Latency, hit rate, and cache pressure
//
// # Security Features
//
//   - Bearer token authentication with constant-time comparison on
//     /query and /cache/clear
//   - IP allowlist for access control
//   - Per-IP token-bucket rate limiting
//   - CORS headers for cross-origin requests
//   - Security headers (X-Content-Type-Options, X-Frame-Options, etc.)
//   - Request IDs on every request and log line
//   - Panic recovery with stack trace logging
//
// # Key Types
//
//   - Server: HTTP server wrapping a router.Router
//   - AuthConfig: bearer token and IP allowlist settings
//   - IPRateLimiter: per-client token buckets with idle cleanup
//
// # Usage
//
//	srv, err := server.New(cfg.Server, rt)
//	if err != nil {
//		return err
//	}
//	srv.WithLogger(logger).WithVersion(version)
//	go func() {
//		if err := srv.Start(); err != nil {
//			logger.Fatal("server failed", zap.Error(err))
//		}
//	}()
//	// ... wait for a signal ...
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	srv.Shutdown(ctx)
package server
