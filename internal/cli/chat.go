// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The "chat" command: an interactive REPL against the pipeline.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/capitalcode/concierge/internal/config"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/router"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlashCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// asker answers one message; *Pipeline implements it.
type asker interface {
	Ask(ctx context.Context, history []model.ConversationMessage, userMessage string) (*Reply, error)
}

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	pipeline   asker
	history    []model.ConversationMessage
	maxHistory int
	lastIntent router.Intent
	turns      int
	tokens     int
	out        io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChatSession creates a session keeping at most maxHistory messages.
func NewChatSession(p asker, maxHistory int, out io.Writer) *ChatSession {
	return &ChatSession{pipeline: p, maxHistory: maxHistory, out: out}
}

// Send answers input and records the exchange. An interrupted request
// leaves the history unchanged.
func (s *ChatSession) Send(input string) (*Reply, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	reply, err := s.pipeline.Ask(ctx, s.history, input)
	if err != nil {
		return nil, err
	}

	s.history = model.Append(s.history, model.UserMessage(input))
	s.history = model.Append(s.history, model.AssistantMessage(reply.Text))
	if s.maxHistory > 0 {
		s.history = model.Tail(s.history, s.maxHistory)
	}
	s.lastIntent = reply.Intent
	s.turns++
	s.tokens += reply.TokensUsed
	return reply, nil
}

// Interrupt cancels the request in flight, if any, and reports whether
// there was one.
func (s *ChatSession) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Reset forgets the conversation.
func (s *ChatSession) Reset() {
	s.history = nil
	s.lastIntent = ""
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var slashCommands = []string{"/help", "/history", "/intent", "/quit", "/reset", "/exit"}

func completeSlashCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

// handleSlashCommand runs one slash command. It returns false when the
// session should end.
func handleSlashCommand(input string, s *ChatSession) (bool, error) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return false, nil
	case "/reset", "/new", "/clear":
		s.Reset()
		fmt.Fprintln(s.out, DimStyle.Render("Conversation reset."))
	case "/intent":
		if s.lastIntent == "" {
			fmt.Fprintln(s.out, DimStyle.Render("No message yet."))
		} else {
			fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Last intent:", 14), s.lastIntent)
		}
	case "/history":
		if len(s.history) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("No messages yet."))
		}
		for _, m := range s.history {
			fmt.Fprintf(s.out, "%s %s\n", RenderLabel(m.Role.DisplayName()+":", 12), m.Content)
		}
	case "/help", "/?":
		fmt.Fprintln(s.out, "Commands: /reset  /intent  /history  /help  /quit")
	default:
		return true, &UsageError{Message: "unknown command " + fields[0], Hint: "/help"}
	}
	return true, nil
}

// =============================================================================
// REPL
// =============================================================================

// HandleChat handles the "chat" command.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return NewCommandError("chat", "setup", "failed to build pipeline", err)
	}
	if !pipeline.Client.IsConfigured() {
		return ErrNotConfigured
	}

	session := NewChatSession(pipeline, cfg.Prompt.MaxHistory, os.Stdout)
	input := NewChatCLI()
	defer input.Close()

	// Ctrl+C while waiting for a reply cancels that reply only.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if session.Interrupt() {
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	if !args.Quiet {
		fmt.Println(TitleStyle.Render(pipeline.Catalog.Get().Company + " concierge"))
		fmt.Println(DimStyle.Render("Models: " + strings.Join(pipeline.Models.Names(), ", ") + "   /help for commands"))
	}

	for {
		line, err := input.ReadInput("tú> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return NewCommandError("chat", "read", "failed to read input", err)
			}
			fmt.Println()
			printExitSummary(session)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cont, err := handleSlashCommand(line, session)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				printExitSummary(session)
				return nil
			}
			continue
		}

		reply, err := session.Send(line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			continue
		}

		fmt.Println(AssistantStyle.Render("asistente>"))
		displayResponse(reply.Text)
		if args.Verbose {
			fmt.Println(replyFooter(reply))
		}
	}
}

// printExitSummary prints the session totals.
func printExitSummary(s *ChatSession) {
	if s.turns == 0 {
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf("%d replies, %d tokens", s.turns, s.tokens)))
}
