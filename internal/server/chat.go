// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/orchestrator"
	"github.com/capitalcode/concierge/internal/router"
	"github.com/capitalcode/concierge/internal/storage"
	"github.com/capitalcode/concierge/internal/util"
)

// ============================================================================
// CHAT TYPES
// ============================================================================

// ChatMessage is one message of the widget's transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat. The last message is the new
// user message.
type ChatRequest struct {
	Messages   []ChatMessage `json:"messages"`
	CustomerID string        `json:"customer_id,omitempty"`
}

// ChatMetadata describes how a reply was produced.
type ChatMetadata struct {
	DetectedIntent string `json:"detected_intent"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Content    string       `json:"content"`
	Language   string       `json:"language"`
	Model      string       `json:"model"`
	TokensUsed int          `json:"tokens_used,omitempty"`
	Metadata   ChatMetadata `json:"metadata"`
}

var (
	errInvalidMessages = errors.New("invalid messages")
	errEmptyMessage    = errors.New("empty message")
	errAPIKeyMissing   = errors.New("provider API key not configured")
)

// validRoles defines the set of acceptable message roles.
// SECURITY: Validates message roles to prevent role injection.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

// validateChatRequest checks the transcript and splits it into the earlier
// turns and the new user message.
func validateChatRequest(req ChatRequest) ([]model.ConversationMessage, string, error) {
	if len(req.Messages) == 0 {
		return nil, "", fmt.Errorf("%w: no messages", errInvalidMessages)
	}
	if len(req.Messages) > MaxMessageCount {
		return nil, "", fmt.Errorf("%w: %d messages exceeds maximum of %d", errInvalidMessages, len(req.Messages), MaxMessageCount)
	}

	history := make([]model.ConversationMessage, 0, len(req.Messages)-1)
	for i, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return nil, "", fmt.Errorf("%w: invalid role '%s' at message %d", errInvalidMessages, msg.Role, i)
		}
		if util.RuneLen(msg.Content) > MaxContentLength {
			return nil, "", fmt.Errorf("%w: message %d exceeds maximum length of %d", errInvalidMessages, i, MaxContentLength)
		}
		if i < len(req.Messages)-1 {
			history = append(history, model.ConversationMessage{Role: model.Role(msg.Role), Content: msg.Content})
		}
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != string(model.RoleUser) {
		return nil, "", fmt.Errorf("%w: last message has role '%s', want user", errInvalidMessages, last.Role)
	}
	if strings.TrimSpace(last.Content) == "" {
		return nil, "", errEmptyMessage
	}
	return history, last.Content, nil
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cat := s.snapshot()

	// SECURITY: Limit request body size to prevent DoS attacks
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, cat.Messages.Invalid,
				fmt.Errorf("request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		log.Printf("CHAT_REJECTED | reason=malformed_json error=%v", err)
		s.writeError(w, http.StatusBadRequest, cat.Messages.Invalid, err)
		return
	}

	history, userMessage, err := validateChatRequest(req)
	if err != nil {
		log.Printf("CHAT_REJECTED | reason=validation error=%v", err)
		message := cat.Messages.Invalid
		if errors.Is(err, errEmptyMessage) {
			message = cat.Messages.Empty
		}
		s.writeError(w, http.StatusBadRequest, message, err)
		return
	}

	s.mu.RLock()
	keyConfigured := s.keyConfigured
	classifier := s.classifier
	s.mu.RUnlock()

	if !keyConfigured {
		log.Printf("CHAT_REJECTED | reason=api_key_not_configured")
		s.writeError(w, http.StatusInternalServerError, cat.WithContact(cat.Messages.Internal), errAPIKeyMissing)
		return
	}

	customerID, ok := s.resolveCustomer(w, r, req.CustomerID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout())
	defer cancel()

	// Intent and completion run side by side. The intent goroutine never
	// fails the group.
	var (
		intent router.Intent
		result *model.CompletionResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = router.Safe(gctx, classifier, userMessage)
		return nil
	})
	g.Go(func() error {
		var err error
		result, err = s.chat.Complete(gctx, history, userMessage)
		return err
	})
	if err := g.Wait(); err != nil {
		s.handleChatFailure(w, r, cat, customerID, err)
		return
	}

	elapsed := time.Since(start)
	s.stats.RecordChat(result.ModelUsed, intent, result.TokensUsed)
	log.Printf("CHAT_COMPLETE | model=%s intent=%s tokens=%d duration=%v query=%q",
		result.ModelUsed, intent, result.TokensUsed, elapsed.Round(time.Millisecond), util.TruncateRunes(userMessage, 50))

	resp := ChatResponse{
		Content:    result.Text,
		Language:   cat.LanguageCode(),
		Model:      result.ModelUsed,
		TokensUsed: result.TokensUsed,
		Metadata: ChatMetadata{
			DetectedIntent: intent.String(),
			ResponseTimeMs: elapsed.Milliseconds(),
		},
	}
	s.persistTurns(r, customerID, userMessage, resp)
	writeJSON(w, http.StatusOK, resp)
}

// resolveCustomer checks an optional customer id against the store. It
// writes the 404 itself and returns false when the id is unknown.
func (s *Server) resolveCustomer(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	id = strings.TrimSpace(id)
	st := s.storeHandle()
	if id == "" || st == nil {
		return "", true
	}

	if _, err := st.GetCustomer(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrCustomerNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "customer_not_found"})
			return "", false
		}
		// Storage trouble must not block the chat; continue anonymously.
		log.Printf("STORAGE_ERROR | op=get_customer error=%v", err)
		return "", true
	}
	return id, true
}

// handleChatFailure maps an orchestration error to a status and message.
func (s *Server) handleChatFailure(w http.ResponseWriter, r *http.Request, cat *catalog.Catalog, customerID string, err error) {
	s.stats.RecordChatFailure()

	var (
		status  int
		message string
		code    string
		failed  *orchestrator.AllModelsFailedError
	)
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		status, message, code = http.StatusBadRequest, cat.Messages.Empty, "invalid_input"
	case errors.As(err, &failed) && failed.RateLimited:
		status, message, code = http.StatusTooManyRequests, cat.WithContact(cat.Messages.RateLimited), "rate_limited"
	case errors.As(err, &failed):
		status, message, code = http.StatusServiceUnavailable, cat.WithContact(cat.Messages.Unavailable), "all_models_failed"
	case errors.Is(err, context.DeadlineExceeded):
		status, message, code = http.StatusServiceUnavailable, cat.WithContact(cat.Messages.Unavailable), "timeout"
	case errors.Is(err, context.Canceled):
		status, message, code = http.StatusServiceUnavailable, cat.WithContact(cat.Messages.Unavailable), "canceled"
	default:
		status, message, code = http.StatusInternalServerError, cat.WithContact(cat.Messages.Internal), "internal"
	}

	log.Printf("CHAT_FAILED | status=%d code=%s error=%v", status, code, err)
	s.logFailure(r, code, err.Error(), customerID)
	s.writeError(w, status, message, err)
}

// persistTurns stores the exchange. Failures are logged, never returned.
func (s *Server) persistTurns(r *http.Request, customerID, userMessage string, resp ChatResponse) {
	st := s.storeHandle()
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), storageTimeout)
	defer cancel()

	meta := storage.TurnMetadata{
		Model:          resp.Model,
		Intent:         resp.Metadata.DetectedIntent,
		TokensUsed:     resp.TokensUsed,
		ResponseTimeMs: resp.Metadata.ResponseTimeMs,
		Language:       resp.Language,
	}
	err := st.AppendTurns(ctx,
		storage.Turn{CustomerID: customerID, Role: model.RoleUser, Content: userMessage, Metadata: storage.TurnMetadata{Intent: meta.Intent, Language: meta.Language}},
		storage.Turn{CustomerID: customerID, Role: model.RoleAssistant, Content: resp.Content, Metadata: meta},
	)
	if err != nil {
		log.Printf("STORAGE_ERROR | op=append_turns error=%v", err)
	}
}
