// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capitalcode/concierge/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "concierge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCustomer(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.UpsertCustomer(ctx, "  Ana   Gómez ", "Ana@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "Ana Gómez", first.Name)
	require.Equal(t, "ana@example.com", first.Email)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertCustomer(ctx, "Ana G.", "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "same email keeps the same customer")
	require.Equal(t, "Ana G.", second.Name)

	got, err := s.GetCustomer(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana G.", got.Name)

	byEmail, err := s.FindCustomerByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, byEmail.ID)
}

func TestUpsertCustomer_Invalid(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name  string
		cname string
		email string
	}{
		{"empty name", "   ", "a@b.co"},
		{"bad email", "Ana", "not-an-email"},
		{"display-name email", "Ana", "Ana <ana@example.com>"},
		{"empty email", "Ana", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.UpsertCustomer(context.Background(), tc.cname, tc.email)
			require.ErrorIs(t, err, ErrInvalidCustomer)
		})
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCustomer(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = s.GetCustomer(context.Background(), "6f1c1e0a-1b7e-4f5c-9a47-1f3c4f9d2b11")
	require.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = s.FindCustomerByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestTranscript(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c, err := s.UpsertCustomer(ctx, "Luis", "luis@example.com")
	require.NoError(t, err)

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.AppendTurns(ctx,
		Turn{CustomerID: c.ID, Role: model.RoleUser, Content: "¿Qué servicios ofrecen?", CreatedAt: base},
		Turn{CustomerID: c.ID, Role: model.RoleAssistant, Content: "Desarrollo web y más.", CreatedAt: base,
			Metadata: TurnMetadata{Model: "llama-3.3-70b-versatile", Intent: "services", TokensUsed: 42, ResponseTimeMs: 812}},
	))
	require.NoError(t, s.AppendTurn(ctx, Turn{CustomerID: c.ID, Role: model.RoleUser, Content: "Gracias", CreatedAt: base.Add(time.Minute)}))

	turns, err := s.ListTurns(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, model.RoleUser, turns[0].Role)
	require.Equal(t, "Desarrollo web y más.", turns[1].Content)
	require.Equal(t, "services", turns[1].Metadata.Intent)
	require.Equal(t, 42, turns[1].Metadata.TokensUsed)
	require.Equal(t, "Gracias", turns[2].Content)
	require.True(t, turns[0].CreatedAt.Equal(base))

	// The limit keeps the most recent turns, still oldest first.
	recent, err := s.ListTurns(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []model.ConversationMessage{
		model.AssistantMessage("Desarrollo web y más."),
		model.UserMessage("Gracias"),
	}, History(recent))

	other, err := s.ListTurns(ctx, "someone-else", 10)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestAppendTurns_Atomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	c, err := s.UpsertCustomer(ctx, "Eva", "eva@example.com")
	require.NoError(t, err)

	err = s.AppendTurns(ctx,
		Turn{CustomerID: c.ID, Role: model.RoleUser, Content: "hola"},
		Turn{CustomerID: c.ID, Role: model.RoleSystem, Content: "no se guarda"},
	)
	require.Error(t, err)

	turns, err := s.ListTurns(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Empty(t, turns, "a failed batch must not leave partial rows")
}

func TestAppendTurn_UnknownCustomer(t *testing.T) {
	s := openTestStore(t)
	err := s.AppendTurn(context.Background(), Turn{CustomerID: "missing", Role: model.RoleUser, Content: "hola"})
	require.ErrorIs(t, err, ErrDatabaseError, "foreign keys are enforced")

	require.NoError(t, s.AppendTurn(context.Background(), Turn{Role: model.RoleUser, Content: "anónimo"}))
}

func TestErrorLogs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, code := range []string{"rate_limited", "unavailable", "internal"} {
		require.NoError(t, s.LogError(ctx, ErrorLog{
			Endpoint:  "/api/chat",
			Code:      code,
			Message:   "fallo " + code,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	logs, err := s.ListErrors(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "internal", logs[0].Code)
	require.Equal(t, "unavailable", logs[1].Code)
	require.Equal(t, "/api/chat", logs[0].Endpoint)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "concierge.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	c, err := s.UpsertCustomer(ctx, "Ana", "ana@example.com")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana", got.Name)
	require.Equal(t, path, s.Path())
	require.NoError(t, s.Ping(ctx))

	_, err = Open(ctx, "")
	require.Error(t, err)
}
