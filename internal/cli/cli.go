// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command handlers for valvegate.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdAsk Command = iota
	CmdAnalyze
	CmdCost
	CmdServe
	CmdStatus
	CmdCache
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool // Output in JSON format
	ConfigPath string

	// Command-specific
	Query      string
	Tier       string // Forced tier for ask
	File       string
	Addr       string // Listen address override for serve
	Scope      string // Cache clear scope
	ConfigKey  string
	ConfigVal  string
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `valvegate - complexity-routed query gateway for structural heart queries

Valvegate scores each query's clinical complexity, routes it to the
cheapest model tier that can handle it, and caches responses in a
two-tier cache (in-memory LRU in front of SQLite or Redis).

Usage:
  valvegate ask "question"     Route a single query through the pipeline
  valvegate analyze "question" Score a query without invoking a backend
  valvegate cost "question"    Show per-tier cost estimates for a query
  valvegate serve              Run the HTTP API server
  valvegate status, s          Show system status
  valvegate cache [stats|clear] Cache management
  valvegate config [show|get|set|init|path] Configuration
  valvegate version            Show version information
  valvegate help               Show this help

Ask Options:
  valvegate ask "question"          Route by complexity score
    -t, --tier NAME                 Force a specific tier (no fallback)
    -f, --file PATH                 Append file contents to the query
  echo "question" | valvegate ask   Read the query from stdin

Analysis Commands:
  valvegate analyze "question"      Extracted terms, score, query type
  valvegate cost "question"         Estimated cost on every tier

Cache Commands:
  valvegate cache stats             Show fast and durable layer statistics
  valvegate cache clear             Clear both cache layers
    --scope all|fast|durable        Limit the clear to one layer

Config Commands:
  valvegate config show             Show current configuration (redacted)
  valvegate config get KEY          Read one value (dot notation)
  valvegate config set KEY VALUE    Write one value and save
  valvegate config init             Write a default config file
  valvegate config path             Print the config file path

Serve Options:
  valvegate serve                   Listen on the configured address
    --addr HOST:PORT                Override the listen address

Global Flags:
  -q, --quiet     Minimal output
  -v, --verbose   Debug output
  --json          Output in JSON format
  --config PATH   Load configuration from a specific file

Environment:
  VALVEGATE_ADDR, VALVEGATE_AUTH_TOKEN, VALVEGATE_BACKEND_URL,
  VALVEGATE_API_KEY, VALVEGATE_CACHE_DURABLE, VALVEGATE_REDIS_ADDR,
  VALVEGATE_SQLITE_PATH, VALVEGATE_LOG_LEVEL, VALVEGATE_LOG_FORMAT,
  VALVEGATE_PASSPHRASE

Examples:
  valvegate ask "What is the heart?"
  valvegate ask "Patient with severe aortic stenosis" --tier advanced
  valvegate analyze "Echo shows EF 35%% with moderate MR" --json
  valvegate cost "TAVR planning CT measurements"
  valvegate serve --addr 0.0.0.0:8090
  valvegate cache clear --scope fast
  valvegate config set cache.durable redis

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("valvegate version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return parse(os.Args[1:])
}

// parse is the testable core of Parse.
func parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	// No arguments: print help rather than guessing a command.
	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "ask":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "analyze", "analyse":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdAnalyze, parsedArgs

	case "cost", "estimate":
		parseQueryArgs(&parsedArgs, remaining)
		return CmdCost, parsedArgs

	case "serve", "server":
		parseServeArgs(&parsedArgs, remaining)
		return CmdServe, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "cache":
		parseCacheArgs(&parsedArgs, remaining)
		return CmdCache, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "-v", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Unknown command: treat the whole line as an ask query, so
		// `valvegate "What is the heart?"` works without the verb.
		parseQueryArgs(&parsedArgs, append([]string{cmd}, remaining...))
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsedArgs
}

// parseQueryArgs parses the ask/analyze/cost argument list: flags plus
// positional words that are joined into the query text.
func parseQueryArgs(args *Args, remaining []string) {
	var query []string

	i := 0
	for i < len(remaining) {
		arg := remaining[i]

		switch arg {
		case "-t", "--tier":
			if i+1 < len(remaining) {
				i++
				args.Tier = remaining[i]
			}
		case "-f", "--file":
			if i+1 < len(remaining) {
				i++
				args.File = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--tier=") {
				args.Tier = strings.TrimPrefix(arg, "--tier=")
			} else if strings.HasPrefix(arg, "--file=") {
				args.File = strings.TrimPrefix(arg, "--file=")
			} else if !strings.HasPrefix(arg, "-") {
				query = append(query, arg)
			}
		}
		i++
	}

	args.Query = strings.Join(query, " ")
}

// parseServeArgs parses serve command specific arguments.
func parseServeArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "--addr":
			if i+1 < len(remaining) {
				i++
				args.Addr = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--addr=") {
				args.Addr = strings.TrimPrefix(arg, "--addr=")
			}
		}
	}
}

// parseCacheArgs parses cache command specific arguments.
func parseCacheArgs(args *Args, remaining []string) {
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "--scope":
			if i+1 < len(remaining) {
				i++
				args.Scope = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--scope=") {
				args.Scope = strings.TrimPrefix(arg, "--scope=")
			} else if args.Subcommand == "" && !strings.HasPrefix(arg, "-") {
				args.Subcommand = arg
			}
		}
	}
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	var positional []string
	for _, arg := range remaining {
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
		}
	}

	if len(positional) > 0 {
		args.Subcommand = positional[0]
	}
	if len(positional) > 1 {
		args.ConfigKey = positional[1]
	}
	if len(positional) > 2 {
		args.ConfigVal = strings.Join(positional[2:], " ")
	}
}

// HandleVersion handles the version command.
func HandleVersion(args Args) error {
	if args.JSON {
		resp := NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		})
		return resp.Print()
	}
	PrintVersion()
	return nil
}

// HandleHelp handles the help command.
func HandleHelp() {
	PrintUsage()
}
