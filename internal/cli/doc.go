// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for concierge.
//
// The default command starts the HTTP API. The other commands run the same
// completion pipeline locally: "ask" answers one question, "chat" is a
// line-editing REPL and "tui" is a full-screen client.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global and command-specific flags
//   - Pipeline: catalog, provider client, orchestrator and classifier wired
//     from one Config
//   - JSONResponse: the envelope every --json output uses
//
// # Usage
//
//	cmd, args := cli.Parse()
//	os.Exit(cli.Run(cmd, args))
//
// Handlers return errors instead of printing them. Run displays an error
// once and maps it to an exit code (see GetExitCode).
package cli
