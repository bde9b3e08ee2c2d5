// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for valvegate.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes via temp file + fsync + rename
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//
// # Usage
//
// Persist a file atomically:
//
//	err := util.AtomicWriteFile(path, data, 0600)
//
// Truncate long strings safely for display:
//
//	display := util.TruncateRunes(longText, 50)
package util
