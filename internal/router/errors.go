// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "fmt"

// ValidationError rejects a request before any analysis, cache access, or
// backend work happens. The server maps it to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnknownTierError rejects a forced tier that is not in the tier table.
// It is raised before the cache or any backend is touched, so a typo in
// the tier name has no side effects. The server maps it to HTTP 400.
type UnknownTierError struct {
	Name string
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown tier %q", e.Name)
}
