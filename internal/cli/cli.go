// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for concierge.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdServe Command = iota
	CmdAsk
	CmdChat
	CmdTUI
	CmdConfig
	CmdModels
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Quiet      bool
	Verbose    bool
	Model      string
	JSON       bool

	// Command-specific
	Query      string
	ConfigKey  string
	ConfigVal  string
	Subcommand string
	Force      bool

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `concierge - chat assistant backend for the Capital Code site

Concierge answers visitor questions through hosted models. It builds the
prompt from the business catalog, falls back across models in priority
order and post-processes the reply for the chat widget.

Usage:
  concierge serve                 Start the HTTP API (default)
  concierge ask "question"        Answer one question and exit
  concierge chat                  Interactive chat in the terminal
  concierge tui                   Full-screen chat client
  concierge config [subcommand]   Configuration
  concierge models [remote]       List configured or provider models
  concierge version               Show version
  concierge help                  Show this help

Config Commands:
  concierge config show           Print the effective config (secrets redacted)
  concierge config validate       Validate the config file
  concierge config init [--force] Write a default config file
  concierge config get <key>      Print one value (e.g. server.port)
  concierge config set <key> <v>  Change one value and save
  concierge config keys           List every settable key
  concierge config path           Print the config file path

Chat Commands (inside "concierge chat"):
  /reset                          Start a new conversation
  /intent                         Show the intent of the last message
  /history                        Show the conversation so far
  /help                           Show chat commands
  /quit                           Exit

Global Flags:
  --config PATH                   Config file (default: ~/.concierge/config.toml)
  --model NAME                    Use only this configured model
  --json                          Machine-readable output
  -q, --quiet                     Less output
  -v, --verbose                   More output

Environment:
  GROQ_API_KEY, CONCIERGE_API_KEY Provider API key
  PORT, CONCIERGE_PORT            Listen port
  CONCIERGE_CONFIG                Config file path
  CONCIERGE_DB                    SQLite path (empty disables storage)
  CONCIERGE_CATALOG               Catalog override file
  CONCIERGE_ENV                   development, production or test

A .env file in the working directory is loaded before the config.

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("concierge version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given arguments (without the program name).
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdServe, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "serve", "server", "start":
		return CmdServe, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "tui", "ui":
		return CmdTUI, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "models", "model":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdModels, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Flags may appear before or after the command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--force", "-f":
			parsedArgs.Force = true
		case "--model", "-m":
			if i+1 < len(args) {
				i++
				parsedArgs.Model = args[i]
			}
		case "--config", "-c":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsedArgs.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// parseAskArgs joins the positional arguments into the question.
func parseAskArgs(args *Args, remaining []string) {
	var query []string
	for _, arg := range remaining {
		if strings.HasPrefix(arg, "-") && arg != "-" {
			continue
		}
		query = append(query, arg)
	}
	args.Query = strings.Join(query, " ")
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// VersionData is the JSON payload of "version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion handles the "version" command with JSON output support.
func HandleVersion(args Args) {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		_ = NewJSONResponse("version", data).Print()
		return
	}
	PrintVersion()
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}

// Run dispatches cmd to its handler and returns the process exit code.
func Run(cmd Command, args Args) int {
	var err error
	name := commandName(cmd)

	switch cmd {
	case CmdServe:
		err = HandleServe(args)
	case CmdAsk:
		err = HandleAsk(args)
	case CmdChat:
		err = HandleChat(args)
	case CmdTUI:
		err = HandleTUI(args)
	case CmdConfig:
		err = HandleConfig(args)
	case CmdModels:
		err = HandleModels(args)
	case CmdVersion:
		HandleVersion(args)
	case CmdHelp:
		HandleHelp()
	default:
		err = &UsageError{Message: fmt.Sprintf("unknown command %q", strings.Join(args.Raw, " ")), Hint: "concierge help"}
	}

	if err != nil {
		DisplayError(name, err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func commandName(cmd Command) string {
	switch cmd {
	case CmdServe:
		return "serve"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdTUI:
		return "tui"
	case CmdConfig:
		return "config"
	case CmdModels:
		return "models"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}
