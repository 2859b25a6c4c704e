// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands.
//
// Handlers return errors and never print-and-continue. Run displays them
// once and maps them to an exit code.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/config"
	"github.com/capitalcode/concierge/internal/orchestrator"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates every model failed or the provider was unreachable
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "config", "serve")
	Action  string // Action being performed (e.g., "init", "listen")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is returned for bad command lines.
type UsageError struct {
	Message string
	Hint    string // Example of valid usage (optional)
}

func (e *UsageError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Message, e.Hint)
	}
	return e.Message
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "config key", "model")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a new CommandError.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// ErrMissingArgument creates an error for a missing required argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing required argument: " + argName, Hint: usage}
}

// ErrNotConfigured is returned when a command needs the provider key.
var ErrNotConfigured = errors.New("API key not configured: set GROQ_API_KEY or provider.api_key")

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError displays an error in a consistent format. In JSON mode it
// writes a JSONResponse to stdout; otherwise a styled line to stderr.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		_ = resp.Print()
		return
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	var verr config.ValidateErrors
	if errors.As(err, &verr) {
		for _, e := range verr {
			fmt.Fprintf(os.Stderr, "  %s %s\n", DimStyle.Render("-"), e.Error())
		}
	}
}

func errorType(err error) string {
	var (
		cmdErr   *CommandError
		usageErr *UsageError
		nfErr    *NotFoundError
		verr     config.ValidateErrors
		failed   *orchestrator.AllModelsFailedError
	)
	switch {
	case errors.As(err, &usageErr):
		return "usage_error"
	case errors.As(err, &verr):
		return "config_error"
	case errors.As(err, &nfErr):
		return "not_found_error"
	case errors.As(err, &failed):
		return "all_models_failed"
	case errors.As(err, &cmdErr):
		return "command_error"
	default:
		return "generic_error"
	}
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr *UsageError
		nfErr    *NotFoundError
		verr     config.ValidateErrors
		vErr     config.ValidationError
	)
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &verr), errors.As(err, &vErr):
		return ExitConfigError
	case errors.Is(err, ErrNotConfigured), errors.Is(err, cloud.ErrNotConfigured):
		return ExitAuthError
	case errors.As(err, &nfErr):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, orchestrator.ErrAllModelsFailed):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
