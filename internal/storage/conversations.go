// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/capitalcode/concierge/internal/model"
)

// Listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// =============================================================================
// TURNS
// =============================================================================

// TurnMetadata is stored as JSON next to each message.
type TurnMetadata struct {
	Model          string `json:"model,omitempty"`
	Intent         string `json:"detected_intent,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`
	Language       string `json:"language,omitempty"`
}

// Turn is one persisted chat message.
type Turn struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id,omitempty"`
	Role       model.Role   `json:"role"`
	Content    string       `json:"content"`
	Metadata   TurnMetadata `json:"metadata"`
	CreatedAt  time.Time    `json:"created_at"`
}

// AppendTurn stores one message.
func (s *Store) AppendTurn(ctx context.Context, t Turn) error {
	return s.AppendTurns(ctx, t)
}

// AppendTurns stores messages in one transaction, in order. Missing IDs and
// timestamps are filled in.
func (s *Store) AppendTurns(ctx context.Context, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversations (id, customer_id, role, content, message_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	now := s.now()
	for _, t := range turns {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant {
			return fmt.Errorf("storage: cannot store %q turn", t.Role)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		meta, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, nullString(t.CustomerID), string(t.Role), t.Content, string(meta), millis(t.CreatedAt)); err != nil {
			return fmt.Errorf("%w: insert turn: %v", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListTurns returns the most recent limit messages of a customer, oldest
// first.
func (s *Store) ListTurns(ctx context.Context, customerID string, limit int) ([]Turn, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, role, content, message_metadata, created_at FROM (
			SELECT id, customer_id, role, content, message_metadata, created_at, rowid AS seq
			FROM conversations
			WHERE customer_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t        Turn
			customer sql.NullString
			role     string
			meta     string
			created  int64
		)
		if err := rows.Scan(&t.ID, &customer, &role, &t.Content, &meta, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		t.CustomerID = customer.String
		t.Role = model.Role(role)
		t.CreatedAt = fromMillis(created)
		if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of turn %s: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// History converts stored turns to conversation messages.
func History(turns []Turn) []model.ConversationMessage {
	out := make([]model.ConversationMessage, len(turns))
	for i, t := range turns {
		out[i] = model.ConversationMessage{Role: t.Role, Content: t.Content}
	}
	return out
}

// =============================================================================
// ERROR LOGS
// =============================================================================

// ErrorLog records one failed request.
type ErrorLog struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	Code       string    `json:"error_code"`
	Message    string    `json:"message"`
	CustomerID string    `json:"customer_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogError stores e. Missing ID and timestamp are filled in.
func (s *Store) LogError(ctx context.Context, e ErrorLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_logs (id, endpoint, error_code, message, customer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Endpoint, e.Code, e.Message, nullString(e.CustomerID), millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w: insert error log: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListErrors returns the most recent limit error logs, newest first.
func (s *Store) ListErrors(ctx context.Context, limit int) ([]ErrorLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, error_code, message, customer_id, created_at
		FROM error_logs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var logs []ErrorLog
	for rows.Next() {
		var (
			e        ErrorLog
			customer sql.NullString
			created  int64
		)
		if err := rows.Scan(&e.ID, &e.Endpoint, &e.Code, &e.Message, &customer, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		e.CustomerID = customer.String
		e.CreatedAt = fromMillis(created)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
