// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements valvegate's command-line interface: argument
// parsing, the command handlers, and the pipeline assembly they share.
//
// Commands:
//
//   - ask      routes one query through the full pipeline
//   - analyze  scores a query without invoking a backend
//   - cost     prices a query on every tier
//   - serve    runs the HTTP API server
//   - status   shows configuration and cache health
//   - cache    cache stats and clearing
//   - config   reads and writes the config file
//
// Parsing is deliberately plain: global flags first, then the command
// word, then per-command flags. Every command accepts --json and prints
// a stable JSONResponse envelope on stdout, keeping human-readable notes
// on stderr.
//
// BuildPipeline is the composition root. It turns a config.Config into
// the running stack (tier registry, backend registry, two-tier cache,
// analyzer, router) so ask and serve construct identical pipelines.
package cli
