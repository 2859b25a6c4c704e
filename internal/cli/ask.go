// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - The "ask" command: answers one question and exits.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
)

// maxStdinQuery bounds a question read from a pipe.
const maxStdinQuery = 64 * 1024

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) error {
	query, err := resolveQuery(args.Query, os.Stdin, !IsTTY())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return NewCommandError("ask", "setup", "failed to build pipeline", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	reply, err := pipeline.Ask(ctx, nil, query)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("ask", reply).Print()
	}

	displayResponse(reply.Text)
	if !args.Quiet {
		fmt.Fprintln(os.Stderr, replyFooter(reply))
	}
	return nil
}

// resolveQuery returns the question from the command line, or from stdin
// when it is piped and the argument is empty or "-".
func resolveQuery(arg string, stdin io.Reader, piped bool) (string, error) {
	query := strings.TrimSpace(arg)
	if (query == "" || query == "-") && piped {
		data, err := io.ReadAll(io.LimitReader(stdin, maxStdinQuery))
		if err != nil {
			return "", NewCommandError("ask", "read", "failed to read stdin", err)
		}
		query = strings.TrimSpace(string(data))
	}
	if query == "" || query == "-" {
		return "", ErrMissingArgument("question", `concierge ask "¿Qué servicios ofrecen?"`)
	}
	return query, nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown content for terminal display at width.
// Returns the original content if rendering fails.
func renderMarkdown(content string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a reply, rendering markdown only on a terminal so
// piped output stays byte-for-byte.
func displayResponse(response string) {
	if IsStdoutTTY() && ColorsEnabled() {
		fmt.Print(renderMarkdown(response, GetTerminalWidth()-4))
		return
	}
	fmt.Println(response)
}

// replyFooter summarizes how a reply was produced.
func replyFooter(r *Reply) string {
	parts := []string{r.Model, "intent: " + r.Intent.String(), r.Duration.Round(time.Millisecond).String()}
	if r.TokensUsed > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", r.TokensUsed))
	}
	return DimStyle.Render(strings.Join(parts, " · "))
}

// signalContext returns a context canceled by Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
