// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists customers, chat transcripts and error logs in a
// local SQLite database.
//
// # Key Types
//
//   - Store: database handle with customer, transcript and error-log methods
//   - Customer: a visitor who left a name and email
//   - Turn: one stored chat message with its metadata
//   - ErrorLog: one failed API request
//
// # Usage
//
//	store, err := storage.Open(ctx, "/var/lib/concierge/concierge.db")
//	c, err := store.UpsertCustomer(ctx, "Ana", "ana@example.com")
//	err = store.AppendTurns(ctx, userTurn, assistantTurn)
//
// The driver is modernc.org/sqlite, so no cgo toolchain is needed.
package storage
