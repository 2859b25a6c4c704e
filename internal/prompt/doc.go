// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the system instruction sent with every chat
// completion. The output depends only on the catalog snapshot, the
// conversation and the user query, so the same inputs always produce the
// same text.
package prompt
