// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat pipeline.
//
// # Key Types
//
//   - ConversationMessage: one turn of the exchange (role + content)
//   - ModelDescriptor: a selectable hosted model (name, token ceiling, priority)
//   - CompletionRequest: the per-call request handed to a completion adapter
//   - Completion: what an adapter returns for a single call
//   - CompletionResult: the post-processed reply returned to callers
//
// # Usage
//
//	models := model.DefaultModels().Sorted()
//	history := []model.ConversationMessage{model.UserMessage("Hola")}
//	latest, prior, ok := model.SplitLatest(history)
package model
