// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyPayload is the canonical form hashed into a cache key. Fields are
// declared in alphabetical tag order and extra params marshal with sorted
// keys, so identical inputs always produce identical JSON bytes across
// processes.
type keyPayload struct {
	ExtraParams map[string]string `json:"extra_params"`
	Query       string            `json:"query"`
	Tier        string            `json:"tier"`
}

// Key derives the cache key for a query processed on a tier: the hex
// SHA-256 of the canonical JSON payload. A nil and an empty extra-params
// map produce the same key.
func Key(query, tierName string, extra map[string]string) string {
	payload := keyPayload{
		ExtraParams: extra,
		Query:       query,
		Tier:        tierName,
	}
	if len(payload.ExtraParams) == 0 {
		payload.ExtraParams = nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Marshaling a flat struct of strings cannot fail.
		panic(err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
