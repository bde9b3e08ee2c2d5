// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Ask command implementation for valvegate.
//
// Command: ask
// Short:   Route a single query through the full pipeline
//
// Examples:
//   valvegate ask "What is the heart?"
//   valvegate ask "Severe AS with EF 35%" --tier advanced
//   valvegate ask "Review this report:" --file report.txt
//   echo "What is TAVR?" | valvegate ask
//   valvegate ask "Explain mitral regurgitation" --json
//
// Flags:
//   -t, --tier NAME   Force a specific tier (error if unknown, no fallback)
//   -f, --file PATH   Append file contents to the query
//   --json            Output the full response envelope as JSON
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// maxContextFileSize bounds --file attachments.
const maxContextFileSize = 1 << 20

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "ask", err)
	}

	logger, err := newLogger(cfg, args, "warn")
	if err != nil {
		return reportError(args, "ask", err)
	}

	query, err := queryFromArgs(args, "ask")
	if err != nil {
		return reportError(args, "ask", err)
	}

	pipe, err := BuildPipeline(cfg, logger)
	if err != nil {
		return reportError(args, "ask", err)
	}
	defer pipe.Close()

	// Ctrl-C cancels the in-flight request instead of killing the
	// process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := pipe.Router.Process(ctx, query, args.Tier)
	if err != nil {
		return reportError(args, "ask", err)
	}

	if args.JSON {
		return NewJSONResponse("ask", resp).Print()
	}

	fmt.Println(resp.Text)
	if !args.Quiet {
		note := ""
		if resp.CacheHit {
			note = " (cached)"
		}
		stderrf("\n[%s] score=%d confidence=%.2f cost=$%.6f elapsed=%s%s\n",
			resp.TierUsed, resp.ComplexityScore, resp.Confidence,
			resp.Cost, resp.Elapsed.Round(time.Millisecond), note)
	}
	return nil
}

// queryFromArgs resolves the query text from positional args, stdin, and
// --file, in that order.
func queryFromArgs(args Args, command string) (string, error) {
	query := strings.TrimSpace(args.Query)

	// Piped stdin serves as the query when none was given on the
	// command line.
	if query == "" {
		if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(bufio.NewReader(os.Stdin))
			if err == nil && len(data) > 0 {
				query = strings.TrimSpace(string(data))
				if !args.Quiet && !args.JSON {
					stderrf("[+] Read query from stdin (%d bytes)\n", len(data))
				}
			}
		}
	}

	if args.File != "" {
		content, err := readContextFile(args.File)
		if err != nil {
			return "", err
		}
		query = strings.TrimSpace(query + "\n" + content)
		if !args.Quiet && !args.JSON {
			stderrf("[+] Including file: %s\n", args.File)
		}
	}

	if query == "" {
		return "", fmt.Errorf("no query provided (usage: valvegate %s \"your question\")", command)
	}
	return query, nil
}

// readContextFile reads a --file attachment, bounded so a stray path
// cannot balloon the query.
func readContextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if info.Size() > maxContextFileSize {
		return "", fmt.Errorf("file %s is %d bytes, limit is %d", path, info.Size(), maxContextFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- File: %s ---\n", path))
	b.Write(content)
	b.WriteString("\n--- End of file ---")
	return b.String(), nil
}

// reportError prints err in the requested output format and returns it
// so main can exit non-zero.
func reportError(args Args, command string, err error) error {
	if args.JSON {
		_ = NewJSONErrorResponse(command, err).Print()
	}
	return err
}
