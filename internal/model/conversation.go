// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// HISTORY HELPERS
// =============================================================================

// SplitLatest separates the final user message from the turns before it.
// ok is false when the list is empty or the final element is not a user turn.
func SplitLatest(messages []ConversationMessage) (latest ConversationMessage, prior []ConversationMessage, ok bool) {
	if len(messages) == 0 {
		return ConversationMessage{}, nil, false
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return ConversationMessage{}, nil, false
	}
	return last, messages[:len(messages)-1], true
}

// Tail returns at most the n most recent messages. n <= 0 returns nil.
func Tail(messages []ConversationMessage, n int) []ConversationMessage {
	if n <= 0 {
		return nil
	}
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// WithoutSystem returns a copy of messages with system turns removed.
// Caller-supplied system turns are never forwarded to a model.
func WithoutSystem(messages []ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Append returns a new slice with msg appended; the input is never mutated.
func Append(messages []ConversationMessage, msg ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(messages)+1)
	out = append(out, messages...)
	return append(out, msg)
}
