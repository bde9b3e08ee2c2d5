// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for valvegate.
//
// Command: config [subcommand]
// Short:   Read and write the configuration file
//
// Subcommands:
//   show (default)      Print the active config with secrets redacted
//   get KEY             Read one value (dot notation, e.g. cache.durable)
//   set KEY VALUE       Write one value and save the file
//   init                Write a default config file
//   path                Print the config file path
//
// Set edits the file directly, without environment overrides, so values
// injected through VALVEGATE_* variables are never baked into the file.
//
// Examples:
//   valvegate config show
//   valvegate config get cache.durable
//   valvegate config set cache.durable redis
//   valvegate config set server.requests_per_second 20
//   valvegate config init
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/valvegate/internal/config"
)

// HandleConfigCommand handles the "config" command.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return showConfig(args)
	case "get":
		return getConfigValue(args)
	case "set":
		return setConfigValue(args)
	case "init":
		return initConfig(args)
	case "path":
		return printConfigPath(args)
	default:
		return reportError(args, "config",
			fmt.Errorf("unknown config subcommand %q (want show, get, set, init, or path)", args.Subcommand))
	}
}

// showConfig prints the active configuration with secrets redacted.
func showConfig(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "config show", err)
	}

	if args.JSON {
		// String() already redacts, so feed it through as raw JSON.
		return NewJSONResponse("config show", json.RawMessage(cfg.String())).Print()
	}

	fmt.Printf("# config: %s\n", activeConfigPath(args))
	fmt.Println(cfg.String())
	return nil
}

// getConfigValue reads one key from the active configuration.
func getConfigValue(args Args) error {
	if args.ConfigKey == "" {
		return reportError(args, "config get",
			fmt.Errorf("usage: valvegate config get KEY (run `valvegate config show` for keys)"))
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return reportError(args, "config get", err)
	}

	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return reportError(args, "config get", err)
	}

	if args.JSON {
		return NewJSONResponse("config get", map[string]interface{}{args.ConfigKey: value}).Print()
	}
	fmt.Printf("%v\n", value)
	return nil
}

// setConfigValue writes one key to the config file. The file is loaded
// without environment overrides so only the user's edit lands in it.
func setConfigValue(args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return reportError(args, "config set",
			fmt.Errorf("usage: valvegate config set KEY VALUE"))
	}

	path, err := targetConfigPath(args)
	if err != nil {
		return reportError(args, "config set", err)
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := loadConfigFile(cfg, path); err != nil {
			return reportError(args, "config set", err)
		}
	}

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return reportError(args, "config set", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return reportError(args, "config set", fmt.Errorf("refusing to save: %w", err))
	}

	if err := saveConfigFile(cfg, path); err != nil {
		return reportError(args, "config set", err)
	}

	if args.JSON {
		return NewJSONResponse("config set", map[string]string{
			"key":   args.ConfigKey,
			"value": args.ConfigVal,
			"path":  path,
		}).Print()
	}
	fmt.Printf("Set %s = %s\n", args.ConfigKey, args.ConfigVal)
	return nil
}

// initConfig writes a fresh default config file.
func initConfig(args Args) error {
	path, err := targetConfigPath(args)
	if err != nil {
		return reportError(args, "config init", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return reportError(args, "config init",
			fmt.Errorf("config file already exists at %s", path))
	}

	if err := saveConfigFile(config.Default(), path); err != nil {
		return reportError(args, "config init", err)
	}

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print()
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

// printConfigPath prints the config file path the other commands use.
func printConfigPath(args Args) error {
	path, err := targetConfigPath(args)
	if err != nil {
		return reportError(args, "config path", err)
	}

	if args.JSON {
		return NewJSONResponse("config path", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}

// targetConfigPath resolves the file that set/init/path operate on.
func targetConfigPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// loadConfigFile loads a config file by extension, without env overrides.
func loadConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.LoadJSON(cfg, path)
	}
	return config.LoadTOML(cfg, path)
}

// saveConfigFile saves a config file by extension.
func saveConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
