// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - Cache management CLI commands for valvegate.
//
// Command: cache [subcommand]
// Short:   Inspect and clear the two-tier response cache
//
// Subcommands:
//   stats (default)     Show statistics for both layers
//   clear               Clear cache entries
//
// Examples:
//   valvegate cache                       Show stats (default)
//   valvegate cache stats --json          Stats in JSON format
//   valvegate cache clear                 Clear both layers
//   valvegate cache clear --scope fast    Clear the in-memory layer only
//   valvegate cache clear --scope durable Clear SQLite/Redis only
//
// Statistics Explained:
//   Size        Entries currently in the fast layer
//   Hit Rate    Fast layer hits / lookups
//   Evictions   Entries dropped by the LRU bound
//   Durable     Backend name and whether it is reachable
package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/cache"
)

// cacheOpTimeout bounds durable cache operations from the CLI.
const cacheOpTimeout = 10 * time.Second

// HandleCacheCommand handles the "cache" command.
func HandleCacheCommand(args Args) error {
	switch args.Subcommand {
	case "", "stats":
		return showCacheStats(args)
	case "clear":
		return clearCache(args)
	default:
		return reportError(args, "cache",
			fmt.Errorf("unknown cache subcommand %q (want stats or clear)", args.Subcommand))
	}
}

// showCacheStats displays statistics for both cache layers.
func showCacheStats(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "cache stats", err)
	}

	store, err := buildStore(cfg, zap.NewNop())
	if err != nil {
		return reportError(args, "cache stats", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	stats := store.Stats(ctx)

	if args.JSON {
		return NewJSONResponse("cache stats", stats).Print()
	}

	fmt.Println()
	fmt.Println("valvegate Cache Statistics")
	fmt.Println(strings.Repeat("=", 39))

	fmt.Println()
	fmt.Println("Fast Layer (in-memory LRU)")
	fmt.Printf("  %-14s %d / %d\n", "Size:", stats.Fast.Size, stats.Fast.MaxSize)
	fmt.Printf("  %-14s %d\n", "Hits:", stats.Fast.Hits)
	fmt.Printf("  %-14s %d\n", "Misses:", stats.Fast.Misses)
	fmt.Printf("  %-14s %.1f%%\n", "Hit Rate:", stats.Fast.HitRate*100)
	fmt.Printf("  %-14s %d\n", "Evictions:", stats.Fast.Evictions)

	fmt.Println()
	fmt.Println("Durable Layer")
	if stats.DurableBackend == "" {
		fmt.Printf("  %-14s none\n", "Backend:")
	} else {
		fmt.Printf("  %-14s %s\n", "Backend:", stats.DurableBackend)
		fmt.Printf("  %-14s %s\n", "Available:", onOff(stats.DurableAvailable))
		for _, k := range sortedKeys(stats.DurableInfo) {
			fmt.Printf("  %-14s %s\n", k+":", stats.DurableInfo[k])
		}
	}
	fmt.Println()
	return nil
}

// clearCache clears the selected cache scope.
func clearCache(args Args) error {
	scope, err := cache.ParseScope(args.Scope)
	if err != nil {
		return reportError(args, "cache clear", err)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "cache clear", err)
	}

	store, err := buildStore(cfg, zap.NewNop())
	if err != nil {
		return reportError(args, "cache clear", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := store.Clear(ctx, scope); err != nil {
		return reportError(args, "cache clear", err)
	}

	if args.JSON {
		return NewJSONResponse("cache clear", map[string]string{"scope": string(scope)}).Print()
	}
	fmt.Printf("Cache cleared (scope: %s)\n", scope)
	return nil
}

// sortedKeys returns map keys in stable order for display.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
