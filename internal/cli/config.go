// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display current configuration (secrets redacted)
//   validate            Load and validate, reporting every problem
//   init [--force]      Write a config file with the defaults
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//   keys                List every settable key
//   path                Show configuration file path
//
// Examples:
//   concierge config set retry.max_attempts 5
//   concierge config set server.cors_origins https://a.es,https://b.es
//   concierge config get intent.mode
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/capitalcode/concierge/internal/config"
)

// secretKeys are masked by "config get".
var secretKeys = map[string]bool{
	"provider.api_key":  true,
	"admin.token":       true,
	"admin.totp_secret": true,
}

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	return runConfig(args, os.Stdout)
}

func runConfig(args Args, out io.Writer) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args, out)
	case "validate", "check":
		return configValidate(args, out)
	case "init":
		return configInit(args, out)
	case "get":
		return configGet(args, out)
	case "set":
		return configSet(args, out)
	case "keys":
		return configKeys(args, out)
	case "path":
		return configPath(args, out)
	default:
		return &UsageError{
			Message: "unknown config subcommand: " + args.Subcommand,
			Hint:    "concierge config [show|validate|init|get|set|keys|path]",
		}
	}
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func configShow(args Args, out io.Writer) error {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(out, NewJSONResponse("config show", cfg.Redacted()), false)
	}
	fmt.Fprintln(out, TitleStyle.Render("Configuration"))
	fmt.Fprintf(out, "%s %s\n\n", RenderLabel("File:"), fileStatus(config.ResolvePath(args.ConfigPath)))
	fmt.Fprint(out, cfg.String())
	return nil
}

func configValidate(args Args, out io.Writer) error {
	if _, err := config.Load(args.ConfigPath); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(out, NewJSONResponse("config validate", map[string]bool{"valid": true}), false)
	}
	fmt.Fprintf(out, "%s configuration is valid\n", RenderStatus("ok"))
	return nil
}

func configInit(args Args, out io.Writer) error {
	path := config.ResolvePath(args.ConfigPath)
	if path == "" {
		return NewCommandError("config", "init", "no config path", errors.New("home directory unknown"))
	}
	if _, err := os.Stat(path); err == nil && !args.Force {
		return &UsageError{Message: "config file already exists: " + path, Hint: "use --force to overwrite"}
	}

	cfg := config.Default()
	cfg.SetDefaults()
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "init", "failed to write config", err)
	}
	if args.JSON {
		return writeJSON(out, NewJSONResponse("config init", map[string]string{"path": path}), false)
	}
	fmt.Fprintf(out, "%s wrote %s\n", RenderStatus("ok"), path)
	return nil
}

func configGet(args Args, out io.Writer) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "concierge config get retry.max_attempts")
	}
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return err
	}
	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return &NotFoundError{Resource: "config key", ID: args.ConfigKey}
	}
	if secretKeys[args.ConfigKey] {
		if s, _ := value.(string); s != "" {
			value = "[REDACTED]"
		}
	}
	if args.JSON {
		return writeJSON(out, NewJSONResponse("config get", map[string]interface{}{
			"key":   args.ConfigKey,
			"value": value,
		}), false)
	}
	fmt.Fprintln(out, formatValue(value))
	return nil
}

// configSet edits the file only. Environment overrides are not applied so
// they never get written back.
func configSet(args Args, out io.Writer) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return ErrMissingArgument("key and value", "concierge config set retry.max_attempts 5")
	}
	path := config.ResolvePath(args.ConfigPath)
	if path == "" {
		return NewCommandError("config", "set", "no config path", errors.New("home directory unknown"))
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}
	cfg.Migrate()
	cfg.SetDefaults()

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		if strings.Contains(err.Error(), "unknown") {
			return &NotFoundError{Resource: "config key", ID: args.ConfigKey}
		}
		return &UsageError{Message: err.Error(), Hint: "concierge config keys"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "set", "failed to write config", err)
	}

	if args.JSON {
		return writeJSON(out, NewJSONResponse("config set", map[string]string{
			"key":  args.ConfigKey,
			"path": path,
		}), false)
	}
	fmt.Fprintf(out, "%s %s updated in %s\n", RenderStatus("ok"), args.ConfigKey, path)
	return nil
}

func configKeys(args Args, out io.Writer) error {
	keys := config.GetAllKeys()
	if args.JSON {
		return writeJSON(out, NewJSONResponse("config keys", keys), false)
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

func configPath(args Args, out io.Writer) error {
	path := config.ResolvePath(args.ConfigPath)
	if args.JSON {
		_, err := os.Stat(path)
		return writeJSON(out, NewJSONResponse("config path", map[string]interface{}{
			"path":   path,
			"exists": err == nil,
		}), false)
	}
	fmt.Fprintln(out, path)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func fileStatus(path string) string {
	if path == "" {
		return "(defaults)"
	}
	if _, err := os.Stat(path); err != nil {
		return path + DimStyle.Render(" (not found, using defaults)")
	}
	return path
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
