// concierge - chat assistant backend for the Capital Code site.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/capitalcode/concierge/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate

	// .env is loaded before config so its values act as environment
	// overrides. A missing file is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("DOTENV_LOAD_FAILED | error=%v", err)
	}
}

func main() {
	cmd, args := cli.Parse()
	os.Exit(cli.Run(cmd, args))
}
