// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/capitalcode/concierge/internal/cloud"
)

var (
	// ErrInvalidInput is returned for a blank user message.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAllModelsFailed matches every *AllModelsFailedError.
	ErrAllModelsFailed = errors.New("all models failed")
)

// Attempt records one failed model call.
type Attempt struct {
	Model  string
	Number int
	Kind   cloud.ErrorKind
	Err    error
}

// AllModelsFailedError is returned when no model produced a reply.
type AllModelsFailedError struct {
	Attempts []Attempt

	// RateLimited is true when every model's last outcome was a rate limit.
	RateLimited bool
}

// Error implements the error interface.
func (e *AllModelsFailedError) Error() string {
	models := make([]string, 0, len(e.Attempts))
	seen := make(map[string]bool)
	for _, a := range e.Attempts {
		if !seen[a.Model] {
			seen[a.Model] = true
			models = append(models, a.Model)
		}
	}
	reason := "errors"
	if e.RateLimited {
		reason = "rate limits"
	}
	return fmt.Sprintf("all models failed (%s) after %d attempts: %s", reason, len(e.Attempts), strings.Join(models, ", "))
}

// Is makes errors.Is(err, ErrAllModelsFailed) true.
func (e *AllModelsFailedError) Is(target error) bool {
	return target == ErrAllModelsFailed
}

// Last returns the final failed attempt.
func (e *AllModelsFailedError) Last() (Attempt, bool) {
	if len(e.Attempts) == 0 {
		return Attempt{}, false
	}
	return e.Attempts[len(e.Attempts)-1], true
}
