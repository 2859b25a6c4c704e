// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/config"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/orchestrator"
	"github.com/capitalcode/concierge/internal/router"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CONCIERGE_CONFIG", "GROQ_API_KEY", "CONCIERGE_API_KEY", "CONCIERGE_BASE_URL",
		"CONCIERGE_PROVIDER", "PORT", "CONCIERGE_PORT", "CONCIERGE_ENV", "CONCIERGE_DB",
		"CONCIERGE_CATALOG", "CONCIERGE_ADMIN_TOKEN", "CONCIERGE_ADMIN_TOTP",
		"CONCIERGE_NAVIGATION_MODE", "CONCIERGE_INTENT_MODE",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

type fakeClient struct {
	mu         sync.Mutex
	calls      []string
	configured bool
	reply      func(req model.CompletionRequest) (*model.Completion, error)
}

func (f *fakeClient) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Model.Name)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeClient) IsConfigured() bool { return f.configured }

func newTestPipeline(t *testing.T, client *fakeClient) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.SetDefaults()
	p, err := newPipelineWith(cfg, catalog.NewStore(catalog.Default()), client)
	require.NoError(t, err)
	return p
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantCmd Command
		check   func(t *testing.T, a Args)
	}{
		{name: "no args serves", args: nil, wantCmd: CmdServe},
		{name: "serve alias", args: []string{"start"}, wantCmd: CmdServe},
		{
			name:    "ask joins words",
			args:    []string{"ask", "¿Qué", "servicios", "ofrecen?"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "¿Qué servicios ofrecen?", a.Query)
			},
		},
		{
			name:    "ask keeps dash for stdin",
			args:    []string{"ask", "-"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "-", a.Query)
			},
		},
		{name: "chat", args: []string{"chat"}, wantCmd: CmdChat},
		{name: "tui alias", args: []string{"ui"}, wantCmd: CmdTUI},
		{
			name:    "config set joins value",
			args:    []string{"config", "set", "site.base_url", "https://x.es"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "set", a.Subcommand)
				require.Equal(t, "site.base_url", a.ConfigKey)
				require.Equal(t, "https://x.es", a.ConfigVal)
			},
		},
		{
			name:    "config defaults to show",
			args:    []string{"config"},
			wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				require.Empty(t, a.Subcommand)
			},
		},
		{
			name:    "models remote",
			args:    []string{"models", "REMOTE"},
			wantCmd: CmdModels,
			check: func(t *testing.T, a Args) {
				require.Equal(t, "remote", a.Subcommand)
			},
		},
		{name: "version flag", args: []string{"--version"}, wantCmd: CmdVersion},
		{name: "help flag", args: []string{"-h"}, wantCmd: CmdHelp},
		{
			name:    "unknown",
			args:    []string{"frobnicate", "now"},
			wantCmd: CmdUnknown,
			check: func(t *testing.T, a Args) {
				require.Equal(t, []string{"frobnicate", "now"}, a.Raw)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.args)
			require.Equal(t, tt.wantCmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParseArgs_GlobalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Args
	}{
		{
			name: "flags before command",
			args: []string{"--json", "-q", "--config", "/tmp/c.toml", "models"},
			want: Args{JSON: true, Quiet: true, ConfigPath: "/tmp/c.toml", Raw: []string{}},
		},
		{
			name: "flags after command",
			args: []string{"models", "-v", "--model=llama-3.1-8b-instant"},
			want: Args{Verbose: true, Model: "llama-3.1-8b-instant", Raw: []string{}},
		},
		{
			name: "equals config and force",
			args: []string{"config", "init", "--config=/etc/c.toml", "-f"},
			want: Args{ConfigPath: "/etc/c.toml", Force: true, Subcommand: "init", Raw: []string{"init"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := ParseArgs(tt.args)
			if len(got.Raw) == 0 && len(tt.want.Raw) == 0 {
				got.Raw, tt.want.Raw = nil, nil
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveQuery(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		stdin   string
		piped   bool
		want    string
		wantErr bool
	}{
		{name: "argument", arg: "  hola  ", want: "hola"},
		{name: "argument wins over pipe", arg: "hola", stdin: "otro", piped: true, want: "hola"},
		{name: "dash reads pipe", arg: "-", stdin: "¿precio?\n", piped: true, want: "¿precio?"},
		{name: "empty reads pipe", stdin: "pregunta", piped: true, want: "pregunta"},
		{name: "empty without pipe", wantErr: true},
		{name: "empty pipe", arg: "-", stdin: "  ", piped: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveQuery(tt.arg, strings.NewReader(tt.stdin), tt.piped)
			if tt.wantErr {
				var usageErr *UsageError
				require.ErrorAs(t, err, &usageErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "usage", err: ErrMissingArgument("question", "x"), want: ExitUsageError},
		{name: "validation", err: fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "server.port", Message: "bad"}}), want: ExitConfigError},
		{name: "not configured", err: ErrNotConfigured, want: ExitAuthError},
		{name: "cloud not configured", err: fmt.Errorf("wrap: %w", cloud.ErrNotConfigured), want: ExitAuthError},
		{name: "not found", err: &NotFoundError{Resource: "model", ID: "x"}, want: ExitNotFoundError},
		{name: "timeout", err: fmt.Errorf("ask: %w", context.DeadlineExceeded), want: ExitTimeoutError},
		{name: "all models failed", err: &orchestrator.AllModelsFailedError{Attempts: []orchestrator.Attempt{{Model: "m", Number: 1}}}, want: ExitNetworkError},
		{name: "wrapped command error", err: NewCommandError("serve", "listen", ":3000", errors.New("in use")), want: ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestErrorType(t *testing.T) {
	require.Equal(t, "usage_error", errorType(&UsageError{Message: "x"}))
	require.Equal(t, "not_found_error", errorType(&NotFoundError{Resource: "model", ID: "x"}))
	require.Equal(t, "all_models_failed", errorType(&orchestrator.AllModelsFailedError{}))
	require.Equal(t, "command_error", errorType(NewCommandError("a", "b", "c", errors.New("d"))))
	require.Equal(t, "generic_error", errorType(errors.New("x")))
}

func TestWriteJSON_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, NewJSONResponse("models", map[string]string{"url": "https://a.es/?a=1&b=2"}), false))

	var resp struct {
		Success bool              `json:"success"`
		Command string            `json:"command"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "models", resp.Command)
	require.Equal(t, "https://a.es/?a=1&b=2", resp.Data["url"])
	require.Contains(t, buf.String(), "&b=2")
}

func TestHighlightJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, highlightJSON(&buf, `{"a": 1}`))
	require.Contains(t, buf.String(), "\x1b[")
	require.Contains(t, buf.String(), `"a"`)
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestConfigCommand_InitSetGet(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	base := Args{ConfigPath: path}

	var out bytes.Buffer
	initArgs := base
	initArgs.Subcommand = "init"
	require.NoError(t, runConfig(initArgs, &out))
	require.FileExists(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second init without --force refuses to overwrite.
	err = runConfig(initArgs, &out)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)

	set := base
	set.Subcommand, set.ConfigKey, set.ConfigVal = "set", "retry.max_attempts", "5"
	require.NoError(t, runConfig(set, &out))

	out.Reset()
	get := base
	get.Subcommand, get.ConfigKey = "get", "retry.max_attempts"
	require.NoError(t, runConfig(get, &out))
	require.Equal(t, "5\n", out.String())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestConfigCommand_SetErrors(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	tests := []struct {
		name  string
		key   string
		value string
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown key", key: "server.nope", value: "1",
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.ErrorAs(t, err, &nf)
			},
		},
		{
			name: "bad type", key: "server.port", value: "abc",
			check: func(t *testing.T, err error) {
				var usageErr *UsageError
				require.ErrorAs(t, err, &usageErr)
			},
		},
		{
			name: "fails validation", key: "intent.mode", value: "psychic",
			check: func(t *testing.T, err error) {
				require.Equal(t, ExitConfigError, GetExitCode(err))
			},
		},
		{
			name: "missing value", key: "server.port",
			check: func(t *testing.T, err error) {
				require.Equal(t, ExitUsageError, GetExitCode(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := Args{ConfigPath: path, Subcommand: "set", ConfigKey: tt.key, ConfigVal: tt.value}
			err := runConfig(args, &bytes.Buffer{})
			require.Error(t, err)
			tt.check(t, err)
			require.NoFileExists(t, path)
		})
	}
}

func TestConfigCommand_SetIgnoresEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("GROQ_API_KEY", "gsk_from_env")

	args := Args{ConfigPath: path, Subcommand: "set", ConfigKey: "server.port", ConfigVal: "8080"}
	require.NoError(t, runConfig(args, &bytes.Buffer{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "gsk_from_env")
	require.Contains(t, string(data), "port = 8080")
}

func TestConfigCommand_GetRedactsSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_secret_value")

	var out bytes.Buffer
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), Subcommand: "get", ConfigKey: "provider.api_key"}
	require.NoError(t, runConfig(args, &out))
	require.Equal(t, "[REDACTED]\n", out.String())
}

func TestConfigCommand_ShowJSONRedacts(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_secret_value")

	var out bytes.Buffer
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), JSON: true}
	require.NoError(t, runConfig(args, &out))
	require.NotContains(t, out.String(), "gsk_secret_value")
	require.Contains(t, out.String(), "REDACTED")
}

func TestConfigCommand_Unknown(t *testing.T) {
	err := runConfig(Args{Subcommand: "explode"}, &bytes.Buffer{})
	require.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// MODELS COMMAND
// =============================================================================

func TestModelsCommand_JSON(t *testing.T) {
	clearEnv(t)
	var out bytes.Buffer
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), JSON: true}
	require.NoError(t, runModels(args, &out))

	var resp struct {
		Data []ModelRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	require.Equal(t, "llama-3.3-70b-versatile", resp.Data[0].Name)
	require.Equal(t, 1, resp.Data[0].Order)
}

func TestModelsCommand_RestrictedByFlag(t *testing.T) {
	clearEnv(t)
	var out bytes.Buffer
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), Model: "llama-3.1-8b-instant"}
	require.NoError(t, runModels(args, &out))
	require.Contains(t, out.String(), "llama-3.1-8b-instant")
	require.NotContains(t, out.String(), "llama-3.3-70b-versatile")
}

func TestRestrictModels(t *testing.T) {
	cfg := config.Default()
	cfg.Intent.Model = "llama-3.1-8b-instant"
	require.NoError(t, restrictModels(cfg, "mixtral-8x7b-32768"))
	require.Equal(t, []string{"mixtral-8x7b-32768"}, cfg.ModelList().Names())
	require.Equal(t, "mixtral-8x7b-32768", cfg.Intent.Model)

	var nf *NotFoundError
	require.ErrorAs(t, restrictModels(config.Default(), "gpt-5"), &nf)
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestPipeline_Ask(t *testing.T) {
	client := &fakeClient{configured: true, reply: func(req model.CompletionRequest) (*model.Completion, error) {
		return &model.Completion{Text: "**Ofrecemos** desarrollo web y apps.", TotalTokens: 12}, nil
	}}
	p := newTestPipeline(t, client)

	reply, err := p.Ask(context.Background(), nil, "¿Qué servicios ofrecen?")
	require.NoError(t, err)
	require.Equal(t, "Ofrecemos desarrollo web y apps.", reply.Text)
	require.Equal(t, "llama-3.3-70b-versatile", reply.Model)
	require.Equal(t, router.IntentServices, reply.Intent)
	require.Equal(t, "es", reply.Language)
	require.Equal(t, 12, reply.TokensUsed)
}

func TestPipeline_NotConfigured(t *testing.T) {
	client := &fakeClient{reply: func(req model.CompletionRequest) (*model.Completion, error) {
		t.Fatal("provider must not be called without a key")
		return nil, nil
	}}
	p := newTestPipeline(t, client)

	_, err := p.Ask(context.Background(), nil, "hola")
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestPipeline_AllModelsFailed(t *testing.T) {
	client := &fakeClient{configured: true, reply: func(req model.CompletionRequest) (*model.Completion, error) {
		return nil, &cloud.CompletionError{Kind: cloud.ErrorKindModel, Model: req.Model.Name, Status: 500}
	}}
	p := newTestPipeline(t, client)

	_, err := p.Ask(context.Background(), nil, "hola")
	require.ErrorIs(t, err, orchestrator.ErrAllModelsFailed)
	require.Equal(t, ExitNetworkError, GetExitCode(err))
	require.Len(t, client.calls, 3)
}

// =============================================================================
// CHAT SESSION
// =============================================================================

type scriptedAsker struct {
	replies []*Reply
	errs    []error
	seen    [][]model.ConversationMessage
}

func (s *scriptedAsker) Ask(ctx context.Context, history []model.ConversationMessage, msg string) (*Reply, error) {
	s.seen = append(s.seen, history)
	i := len(s.seen) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.replies[i], nil
}

func TestChatSession_Send(t *testing.T) {
	asker := &scriptedAsker{
		replies: []*Reply{
			{Text: "Hola", Intent: router.IntentGeneral, TokensUsed: 3},
			nil,
			{Text: "Desde 1.500 €", Intent: router.IntentPricing, TokensUsed: 5},
		},
		errs: []error{nil, context.Canceled, nil},
	}
	s := NewChatSession(asker, 20, &bytes.Buffer{})

	_, err := s.Send("hola")
	require.NoError(t, err)

	_, err = s.Send("interrumpida")
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Send("¿precio?")
	require.NoError(t, err)

	require.Empty(t, asker.seen[0])
	require.Len(t, asker.seen[1], 2)
	require.Len(t, asker.seen[2], 2, "failed turn must not enter history")
	require.Len(t, s.history, 4)
	require.Equal(t, router.IntentPricing, s.lastIntent)
	require.Equal(t, 2, s.turns)
	require.Equal(t, 8, s.tokens)
	require.False(t, s.Interrupt())
}

func TestChatSession_HistoryBounded(t *testing.T) {
	asker := &scriptedAsker{replies: []*Reply{{Text: "1"}, {Text: "2"}, {Text: "3"}}}
	s := NewChatSession(asker, 4, &bytes.Buffer{})
	for _, q := range []string{"a", "b", "c"} {
		_, err := s.Send(q)
		require.NoError(t, err)
	}
	require.Len(t, s.history, 4)
	require.Equal(t, "b", s.history[0].Content)
}

func TestHandleSlashCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		setup    func(s *ChatSession)
		wantCont bool
		wantErr  bool
		contains string
	}{
		{name: "quit", input: "/quit", wantCont: false},
		{name: "exit", input: "/EXIT", wantCont: false},
		{name: "reset", input: "/reset", wantCont: true, contains: "reset",
			setup: func(s *ChatSession) { s.history = []model.ConversationMessage{model.UserMessage("x")} }},
		{name: "intent empty", input: "/intent", wantCont: true, contains: "No message yet"},
		{name: "intent set", input: "/intent", wantCont: true, contains: "pricing",
			setup: func(s *ChatSession) { s.lastIntent = router.IntentPricing }},
		{name: "history", input: "/history", wantCont: true, contains: "hola",
			setup: func(s *ChatSession) { s.history = []model.ConversationMessage{model.UserMessage("hola")} }},
		{name: "help", input: "/help", wantCont: true, contains: "/reset"},
		{name: "unknown", input: "/dance", wantCont: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s := NewChatSession(&scriptedAsker{}, 20, &out)
			if tt.setup != nil {
				tt.setup(s)
			}
			cont, err := handleSlashCommand(tt.input, s)
			require.Equal(t, tt.wantCont, cont)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestChatSession_ResetClears(t *testing.T) {
	s := NewChatSession(&scriptedAsker{}, 20, &bytes.Buffer{})
	s.history = []model.ConversationMessage{model.UserMessage("x")}
	s.lastIntent = router.IntentMeeting
	_, err := handleSlashCommand("/reset", s)
	require.NoError(t, err)
	require.Empty(t, s.history)
	require.Empty(t, s.lastIntent)
}

func TestCompleteSlashCommand(t *testing.T) {
	require.Equal(t, []string{"/help", "/history"}, completeSlashCommand("/h"))
	require.Nil(t, completeSlashCommand("hola"))
}

func TestAskFunc_Adapts(t *testing.T) {
	asker := &scriptedAsker{replies: []*Reply{{Text: "ok", Model: "m", Intent: router.IntentContact, TokensUsed: 7}}}
	answer, err := askFunc(asker)(context.Background(), nil, "hola")
	require.NoError(t, err)
	require.Equal(t, "ok", answer.Text)
	require.Equal(t, "contact", answer.Intent)
	require.Equal(t, 7, answer.Tokens)
}
