// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// analyze.go - Analyze and cost commands for valvegate.
//
// Command: analyze
// Short:   Score a query without invoking a backend
//
// Command: cost
// Short:   Show per-tier cost estimates for a query
// Aliases: estimate
//
// Both commands run the same feature extraction and complexity scoring
// the router uses, but stop before tier invocation, so they are free and
// work offline.
//
// Examples:
//   valvegate analyze "Echo shows EF 35% with moderate MR"
//   valvegate analyze "What is the heart?" --json
//   valvegate cost "TAVR planning CT measurements"
//   cat report.txt | valvegate analyze
package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/router"
	"github.com/jeranaias/valvegate/internal/util"
)

// HandleAnalyzeCommand handles the "analyze" command.
func HandleAnalyzeCommand(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "analyze", err)
	}

	query, err := queryFromArgs(args, "analyze")
	if err != nil {
		return reportError(args, "analyze", err)
	}

	tiers, err := buildTiers(cfg)
	if err != nil {
		return reportError(args, "analyze", err)
	}

	analysis := analyzer.New(tiers).Analyze(query)

	if args.JSON {
		return NewJSONResponse("analyze", analysis).Print()
	}

	printAnalysis(analysis)
	return nil
}

// HandleCostCommand handles the "cost" command.
func HandleCostCommand(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "cost", err)
	}

	query, err := queryFromArgs(args, "cost")
	if err != nil {
		return reportError(args, "cost", err)
	}

	tiers, err := buildTiers(cfg)
	if err != nil {
		return reportError(args, "cost", err)
	}

	an := analyzer.New(tiers)
	analysis := an.Analyze(query)

	// Same shape the HTTP cost-estimate endpoint returns, so scripts can
	// consume either interchangeably.
	est := router.CostEstimate{
		Analysis:    analysis,
		Tiers:       make(map[string]router.TierCost, tiers.Len()),
		Recommended: analysis.RecommendedTier,
	}
	for _, t := range tiers.List() {
		est.Tiers[t.Name] = router.TierCost{
			EstimatedCost: an.EstimateCost(t, analysis),
			Recommended:   t.Name == analysis.RecommendedTier,
		}
	}

	if args.JSON {
		return NewJSONResponse("cost", est).Print()
	}

	fmt.Println()
	fmt.Println("Cost Estimate")
	fmt.Println(strings.Repeat("=", 39))
	fmt.Println()
	fmt.Printf("  %-14s %s\n", "Query:", util.TruncateRunes(analysis.Query, 60))
	fmt.Printf("  %-14s %d\n", "Complexity:", analysis.ComplexityScore)
	fmt.Printf("  %-14s %s\n", "Query Type:", analysis.QueryType)
	fmt.Println()
	for _, t := range tiers.List() {
		marker := " "
		if t.Name == analysis.RecommendedTier {
			marker = "*"
		}
		fmt.Printf("  %s %-14s $%.6f\n", marker, t.Name, an.EstimateCost(t, analysis))
	}
	fmt.Println()
	fmt.Println("  * recommended tier")
	return nil
}

// printAnalysis renders an analysis as aligned label/value lines.
func printAnalysis(analysis analyzer.Analysis) {
	fmt.Println()
	fmt.Println("Query Analysis")
	fmt.Println(strings.Repeat("=", 39))
	fmt.Println()
	fmt.Printf("  %-14s %s\n", "Query:", util.TruncateRunes(analysis.Query, 60))
	fmt.Printf("  %-14s %d\n", "Word Count:", analysis.Features.WordCount)
	fmt.Printf("  %-14s %s\n", "Query Type:", analysis.QueryType)
	fmt.Printf("  %-14s %d\n", "Complexity:", analysis.ComplexityScore)
	fmt.Printf("  %-14s %s\n", "Recommended:", analysis.RecommendedTier)
	fmt.Printf("  %-14s %.2f\n", "Confidence:", analysis.Confidence)
	fmt.Printf("  %-14s $%.6f\n", "Est. Cost:", analysis.EstimatedCost)
	fmt.Println()
	fmt.Println("Extracted Terms")
	printTerms("Domain:", analysis.Features.DomainTerms)
	printTerms("Measurements:", analysis.Features.Measurements)
	printTerms("Procedures:", analysis.Features.Procedures)
	printTerms("Diagnostics:", analysis.Features.Diagnostics)
	printTerms("Clinical:", analysis.Features.Clinical)
	printTerms("Technical:", analysis.Features.Technical)
	fmt.Println()
}

func printTerms(label string, terms []string) {
	value := "(none)"
	if len(terms) > 0 {
		value = strings.Join(terms, ", ")
	}
	fmt.Printf("  %-14s %s\n", label, value)
}
