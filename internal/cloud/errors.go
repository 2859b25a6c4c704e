// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the API key is missing or malformed.
	ErrNotConfigured = errors.New("completion API key not configured")

	// ErrAuthFailed indicates the provider rejected the API key.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse indicates a 2xx reply with no usable text.
	ErrEmptyResponse = errors.New("empty completion")
)

// rateLimitCode is the error code OpenAI-compatible providers use for
// throttling.
const rateLimitCode = "rate_limit_exceeded"

// =============================================================================
// ERROR KIND
// =============================================================================

// ErrorKind classifies an adapter failure for the caller's retry policy.
type ErrorKind int

const (
	// ErrorKindModel is any failure that retrying the same model will not fix.
	ErrorKindModel ErrorKind = iota

	// ErrorKindRateLimited means the same model may succeed after a pause.
	ErrorKindRateLimited

	// ErrorKindCanceled means the caller's context ended.
	ErrorKindCanceled
)

// String returns the log name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindRateLimited:
		return "rate_limited"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "model"
	}
}

// CompletionError is the error every adapter returns.
type CompletionError struct {
	Kind    ErrorKind
	Model   string
	Status  int    // HTTP status, 0 for transport failures
	Code    string // provider error code, if any
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	var sb strings.Builder
	sb.WriteString("completion")
	if e.Model != "" {
		sb.WriteString(" [" + e.Model + "]")
	}
	sb.WriteString(" " + e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.Status)
	}
	if e.Code != "" {
		sb.WriteString(" " + e.Code)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	} else if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err. Context errors are ErrorKindCanceled
// and anything unrecognized is ErrorKindModel.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindModel
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindCanceled
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorKindRateLimited
	}
	return ErrorKindModel
}

// IsRateLimit reports whether a provider reply signals throttling, by status,
// error code or message text.
func IsRateLimit(status int, code, message string) bool {
	return status == http.StatusTooManyRequests ||
		code == rateLimitCode ||
		strings.Contains(strings.ToLower(message), "rate limit")
}

// classify builds the CompletionError for a failed provider reply.
func classify(model string, status int, code, message string) *CompletionError {
	ce := &CompletionError{
		Kind:    ErrorKindModel,
		Model:   model,
		Status:  status,
		Code:    code,
		Message: message,
	}

	switch {
	case IsRateLimit(status, code, message):
		ce.Kind = ErrorKindRateLimited
		ce.Err = ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ce.Err = ErrAuthFailed
	case status == http.StatusNotFound:
		ce.Err = ErrModelNotFound
	}
	return ce
}

// transportError wraps a failure that happened before a reply arrived. Only
// the caller's own context counts as cancellation; an HTTP client timeout is
// a model failure.
func transportError(ctx context.Context, model string, err error) *CompletionError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CompletionError{Kind: ErrorKindCanceled, Model: model, Err: ctxErr}
	}
	return &CompletionError{Kind: ErrorKindModel, Model: model, Err: err}
}
