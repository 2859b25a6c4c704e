// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// CompletionRequest is built fresh for every call and never persisted.
type CompletionRequest struct {
	SystemInstruction string
	Messages          []ConversationMessage
	Model             ModelDescriptor
	Temperature       float64
	MaxTokens         int
}

// Wire returns the message list as sent to the API: the system instruction
// first, then the conversation.
func (r CompletionRequest) Wire() []ConversationMessage {
	out := make([]ConversationMessage, 0, len(r.Messages)+1)
	if r.SystemInstruction != "" {
		out = append(out, SystemMessage(r.SystemInstruction))
	}
	return append(out, r.Messages...)
}

// Completion is the raw outcome of one successful adapter call.
type Completion struct {
	Text string

	// Model echoes the model the API reports having used, if any.
	Model string

	// TotalTokens is 0 when the API did not report usage.
	TotalTokens int
}

// CompletionResult is the final, post-processed reply.
type CompletionResult struct {
	Text       string `json:"text"`
	ModelUsed  string `json:"model_used"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}
