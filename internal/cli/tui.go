// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - The "tui" command: full-screen chat.
package cli

import (
	"context"
	"io"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/ui/chat"
	"github.com/capitalcode/concierge/internal/ui/styles"
)

// HandleTUI handles the "tui" command.
func HandleTUI(args Args) error {
	if err := RequiresTTY("tui"); err != nil {
		return err
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return NewCommandError("tui", "setup", "failed to build pipeline", err)
	}
	if !pipeline.Client.IsConfigured() {
		return ErrNotConfigured
	}

	// Log lines would tear the alternate screen.
	if !args.Verbose {
		log.SetOutput(io.Discard)
	}

	m := chat.New(styles.NewTheme(), askFunc(pipeline), chat.Options{
		Title:      pipeline.Catalog.Get().Company,
		Subtitle:   strings.Join(pipeline.Models.Names(), " → "),
		MaxHistory: cfg.Prompt.MaxHistory,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return NewCommandError("tui", "run", "terminal UI failed", err)
	}
	return nil
}

// askFunc adapts the pipeline to the chat view.
func askFunc(p asker) chat.AskFunc {
	return func(ctx context.Context, history []model.ConversationMessage, userMessage string) (chat.Answer, error) {
		reply, err := p.Ask(ctx, history, userMessage)
		if err != nil {
			return chat.Answer{}, err
		}
		return chat.Answer{
			Text:     reply.Text,
			Model:    reply.Model,
			Intent:   reply.Intent.String(),
			Tokens:   reply.TokensUsed,
			Duration: reply.Duration,
		}, nil
	}
}
