// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for concierge.
//
// Configuration is TOML, with sensible defaults, environment variable
// overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Listener, CORS, rate limit and TLS settings
//   - ProviderConfig: Hosted completion API selection and credentials
//   - RetryConfig: Rate-limit retry budget and backoff bounds
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (GROQ_API_KEY, PORT, CONCIERGE_*)
//   - The file named by --config or CONCIERGE_CONFIG
//   - ~/.concierge/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.Server.RequestTimeout()
package config
