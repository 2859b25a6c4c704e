// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/capitalcode/concierge/internal/model"
)

// =============================================================================
// PIPELINE BRIDGE
// =============================================================================

// Answer is one reply as the TUI displays it.
type Answer struct {
	Text     string
	Model    string
	Intent   string
	Tokens   int
	Duration time.Duration
}

// AskFunc answers userMessage given the earlier turns.
type AskFunc func(ctx context.Context, history []model.ConversationMessage, userMessage string) (Answer, error)

// =============================================================================
// MESSAGES
// =============================================================================

// ReplyMsg carries the result of one AskFunc call.
type ReplyMsg struct {
	Seq      int
	UserText string
	Answer   Answer
	Err      error
}

// askCmd runs ask off the UI goroutine.
func askCmd(ctx context.Context, ask AskFunc, seq int, history []model.ConversationMessage, text string) tea.Cmd {
	return func() tea.Msg {
		answer, err := ask(ctx, history, text)
		return ReplyMsg{Seq: seq, UserText: text, Answer: answer, Err: err}
	}
}
