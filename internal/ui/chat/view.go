// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/capitalcode/concierge/internal/ui/styles"
	"github.com/capitalcode/concierge/internal/util"
)

// Fixed rows outside the viewport.
const (
	headerHeight = 3
	footerHeight = 3
)

// View implements tea.Model.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatusBar(),
	)
}

// renderHeader truncates the plain text first so styling escapes are never
// cut.
func (m Model) renderHeader() string {
	room := max(m.width-6, 4)
	title := util.TruncateWidth(m.opts.Title, room)
	line := m.theme.HeaderTitle.Render(title)
	if rest := room - util.StringWidth(title) - 2; m.opts.Subtitle != "" && rest > 3 {
		line += "  " + m.theme.HeaderSubtitle.Render(util.TruncateWidth(m.opts.Subtitle, rest))
	}
	return m.theme.Header.Width(max(m.width-2, 10)).Render(line)
}

func (m Model) renderTranscript() string {
	width := max(m.width-4, 20)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(m.theme.UserLabel.Render("Tú") + "\n")
			b.WriteString(m.theme.UserText.Width(width).Render(e.text) + "\n")
		case entryAssistant:
			b.WriteString(m.theme.AssistantLabel.Render("Asistente") + "\n")
			b.WriteString(m.theme.AssistantText.Width(width).Render(e.text) + "\n")
			if e.meta != "" {
				b.WriteString(m.theme.Meta.Render(e.meta) + "\n")
			}
		case entryNotice:
			b.WriteString(m.theme.Notice.Width(width).Render(e.text) + "\n")
		case entryError:
			b.WriteString(m.theme.Error.Width(width).Render(styles.StatusIndicators.Error+" "+e.text) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderStatusBar() string {
	var left string
	if m.waiting {
		elapsed := time.Since(m.sentAt).Round(100 * time.Millisecond)
		left = m.spinner.View() + " Pensando... " + elapsed.String()
	} else if m.status != "" {
		left = util.TruncateWidth(m.status, max(m.width/2, 10))
	} else {
		left = styles.StatusIndicators.Pending + " listo"
	}

	right := m.theme.ShortcutKey.Render("esc") + m.theme.ShortcutDesc.Render(" cancelar  ") +
		m.theme.ShortcutKey.Render("ctrl+c") + m.theme.ShortcutDesc.Render(" salir")
	if m.lastModel != "" {
		right = m.theme.ShortcutDesc.Render(m.lastModel+"  ") + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return m.theme.StatusBar.Render(left)
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}
