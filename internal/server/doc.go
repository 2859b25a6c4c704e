// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP API behind the site's chat widget.
//
// # Endpoints
//
//   - POST /api/chat                - Answer the latest user message
//   - POST /api/customers           - Register or update a customer
//   - GET  /api/quick-questions     - Suggested first questions
//   - GET  /health                  - Health check
//   - GET  /stats                   - Usage statistics
//   - GET  /robots.txt              - Crawler rules
//   - GET  /sitemap.xml             - Public page list
//   - GET  /api/admin/conversations - Stored transcript of one customer
//   - GET  /api/admin/errors        - Recent failures
//
// # Chat Status Codes
//
//   - 200: reply produced by the first model that succeeded
//   - 400: malformed body, invalid transcript or empty message
//   - 429: every model was throttled, or the caller hit the rate limit
//   - 500: provider key missing or an unexpected failure
//   - 503: every model failed, or the request ran out of time
//
// # Security Features
//
//   - Bearer token authentication for admin routes, with optional TOTP
//   - Per-IP token bucket rate limiting
//   - CORS with exact and wildcard subdomain origins
//   - Security headers and panic recovery
//   - Error details hidden in production
//
// # Usage
//
//	srv := server.NewServer(cfg, orch).
//		WithClassifier(classifier).
//		WithCatalog(store).
//		WithStore(db)
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
