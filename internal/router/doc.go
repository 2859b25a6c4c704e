// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router labels each chat turn with the visitor's intent.
//
// # Key Types
//
//   - Intent: closed set of labels (services, pricing, meeting, ...)
//   - KeywordClassifier: ordered, accent-insensitive keyword rules
//   - ModelClassifier: one short completion call, keyword fallback
//
// Classification is advisory. Callers run it next to the main completion
// and use Safe so that any failure becomes IntentGeneral.
//
// # Usage
//
//	c := router.NewModelClassifier(client, small, cat, 5*time.Second)
//	intent := router.Safe(ctx, c, "¿Cuánto cuesta una app?")
package router
