// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/ui/styles"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
	meta string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures a chat Model.
type Options struct {
	Title      string
	Subtitle   string
	MaxHistory int
	MaxInput   int
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme
	opts  Options
	ask   AskFunc

	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	history []model.ConversationMessage
	entries []entry

	waiting   bool
	seq       int
	cancel    context.CancelFunc
	sentAt    time.Time
	status    string
	lastModel string
}

// New creates a chat model that answers with ask.
func New(theme *styles.Theme, ask AskFunc, opts Options) Model {
	if opts.MaxInput <= 0 {
		opts.MaxInput = 4096
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = "Escribe tu mensaje..."
	ti.CharLimit = opts.MaxInput
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	return Model{
		theme:    theme,
		opts:     opts,
		ask:      ask,
		width:    80,
		height:   24,
		viewport: vp,
		input:    ti,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		return m.handleReply(msg), nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.input.Width = max(msg.Width-4, 10)
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 3)
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.waiting {
			m.interrupt()
			return m, nil
		}
		return m, tea.Quit
	case "esc":
		if m.waiting {
			m.interrupt()
		}
		return m, nil
	case "ctrl+l":
		m.reset()
		return m, nil
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line, or runs it when it is a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.SetValue("")

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.entries = append(m.entries, entry{kind: entryUser, text: text})
	m.waiting = true
	m.seq++
	m.sentAt = time.Now()
	m.status = ""

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.refresh()

	history := append([]model.ConversationMessage(nil), m.history...)
	return m, tea.Batch(m.spinner.Tick, askCmd(ctx, m.ask, m.seq, history, text))
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(strings.Fields(text)[0]) {
	case "/quit", "/exit", "/q":
		return m, tea.Quit
	case "/reset", "/new", "/clear":
		m.reset()
	case "/help", "/?":
		m.notice("Enter envía · Esc cancela · Ctrl+L reinicia · PgUp/PgDn desplaza · /quit sale")
	default:
		m.entries = append(m.entries, entry{kind: entryError, text: "unknown command " + text})
		m.refresh()
	}
	return m, nil
}

func (m Model) handleReply(msg ReplyMsg) Model {
	if msg.Seq != m.seq || !m.waiting {
		return m
	}
	m.waiting = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	switch {
	case errors.Is(msg.Err, context.Canceled):
		m.notice("Cancelado")
	case msg.Err != nil:
		m.entries = append(m.entries, entry{kind: entryError, text: msg.Err.Error()})
		m.status = "error"
	default:
		m.history = model.Append(m.history, model.UserMessage(msg.UserText))
		m.history = model.Append(m.history, model.AssistantMessage(msg.Answer.Text))
		if m.opts.MaxHistory > 0 {
			m.history = model.Tail(m.history, m.opts.MaxHistory)
		}
		m.entries = append(m.entries, entry{kind: entryAssistant, text: msg.Answer.Text, meta: answerMeta(msg.Answer)})
		m.lastModel = msg.Answer.Model
		m.status = fmt.Sprintf("%s · %s", msg.Answer.Intent, msg.Answer.Duration.Round(time.Millisecond))
	}
	m.refresh()
	return m
}

// interrupt cancels the request in flight. The reply still arrives and
// clears the waiting state.
func (m *Model) interrupt() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) reset() {
	if m.waiting {
		m.interrupt()
		m.waiting = false
		m.seq++
	}
	m.history = nil
	m.entries = nil
	m.status = ""
	m.notice("Conversación reiniciada")
}

func (m *Model) notice(text string) {
	m.entries = append(m.entries, entry{kind: entryNotice, text: text})
	m.refresh()
}

// refresh re-renders the transcript and keeps the newest line visible.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// History returns the conversation sent with the next message.
func (m Model) History() []model.ConversationMessage {
	return m.history
}

// Waiting reports whether a reply is in flight.
func (m Model) Waiting() bool {
	return m.waiting
}

func answerMeta(a Answer) string {
	parts := []string{a.Model}
	if a.Tokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", a.Tokens))
	}
	return strings.Join(parts, " · ")
}
