// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Tú"
	case RoleAssistant:
		return "Asistente"
	case RoleSystem:
		return "Sistema"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ConversationMessage is a single turn of the conversation.
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage creates a user message.
func UserMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleAssistant, Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) ConversationMessage {
	return ConversationMessage{Role: RoleSystem, Content: content}
}

// IsBlank reports whether the message has no content after trimming.
func (m ConversationMessage) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}
