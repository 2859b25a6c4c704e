// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	Meta           lipgloss.Style
	Notice         lipgloss.Style
	Error          lipgloss.Style

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	Spinner        lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
}

// NewTheme detects terminal capabilities and builds the styles.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 2)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.AssistantText = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(2)
	t.Meta = lipgloss.NewStyle().Foreground(TextMuted).PaddingLeft(2)
	t.Notice = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
}
