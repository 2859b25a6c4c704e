// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/prompt"
)

// Completer sends one completion request to a hosted model. Implementations
// must not retry and must report failures as *cloud.CompletionError.
type Completer interface {
	Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxAttempts sets how many calls a throttled model gets. Values below 1
// are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry delay base and cap.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(o *Orchestrator) {
		if base > 0 {
			o.backoff.Base = base
		}
		if maxDelay > 0 {
			o.backoff.Max = maxDelay
		}
	}
}

// WithSleeper replaces the backoff wait, e.g. to record delays in tests.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithJitter replaces the random jitter source.
func WithJitter(j Jitter) Option {
	return func(o *Orchestrator) {
		if j != nil {
			o.backoff.Jitter = j
		}
	}
}

// WithNavigationMode sets how navigation suggestions are merged.
func WithNavigationMode(m NavigationMode) Option {
	return func(o *Orchestrator) {
		if m != "" {
			o.navMode = m
		}
	}
}

// WithCatalog sets the catalog used for shaping and post-processing. It
// defaults to the prompt builder's catalog.
func WithCatalog(src catalog.Source) Option {
	return func(o *Orchestrator) {
		if src != nil {
			o.catalog = src
		}
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs the model fallback sequence. It is safe for concurrent
// use; all of its fields are read-only after New.
type Orchestrator struct {
	client      Completer
	builder     *prompt.Builder
	models      model.Models
	catalog     catalog.Source
	maxAttempts int
	backoff     Backoff
	sleep       Sleeper
	navMode     NavigationMode
}

// New creates an Orchestrator. models is validated and sorted by priority.
func New(client Completer, builder *prompt.Builder, models model.Models, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("orchestrator: nil completer")
	}
	if builder == nil {
		builder = prompt.New(nil, 0)
	}
	if err := models.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	o := &Orchestrator{
		client:      client,
		builder:     builder,
		models:      models.Sorted(),
		maxAttempts: DefaultMaxAttempts,
		backoff: Backoff{
			Base:   DefaultBackoffBase,
			Max:    DefaultBackoffMax,
			Jitter: uniformJitter,
		},
		sleep:   sleepContext,
		navMode: NavigationOverride,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Models returns the attempt order.
func (o *Orchestrator) Models() model.Models {
	return o.models.Sorted()
}

// snapshot returns the catalog for one turn.
func (o *Orchestrator) snapshot() *catalog.Catalog {
	if o.catalog != nil {
		return o.catalog.Get()
	}
	return o.builder.Catalog()
}

// Complete produces the reply to userMessage given the earlier turns in
// history. history must not include userMessage itself.
func (o *Orchestrator) Complete(ctx context.Context, history []model.ConversationMessage, userMessage string) (*model.CompletionResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrInvalidInput
	}

	cat := o.snapshot()
	conversation := model.WithoutSystem(history)
	full := model.Append(conversation, model.UserMessage(userMessage))
	system := o.builder.BuildWith(cat, userMessage, full)

	failed := &AllModelsFailedError{RateLimited: true}

	for _, m := range o.models {
		temperature, maxTokens := Shape(userMessage, m, cat.Sentiment)
		req := model.CompletionRequest{
			SystemInstruction: system,
			Messages:          full,
			Model:             m,
			Temperature:       temperature,
			MaxTokens:         maxTokens,
		}

		out, kind, err := o.tryModel(ctx, req, failed)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return &model.CompletionResult{
				Text:       PostProcess(out.Text, userMessage, cat, o.navMode),
				ModelUsed:  m.Name,
				TokensUsed: out.TotalTokens,
			}, nil
		}
		if kind != cloud.ErrorKindRateLimited {
			failed.RateLimited = false
		}
	}

	if len(failed.Attempts) == 0 {
		failed.RateLimited = false
	}
	log.Printf("ALL_MODELS_FAILED | attempts=%d rate_limited=%v", len(failed.Attempts), failed.RateLimited)
	return nil, failed
}

// tryModel calls one model until it succeeds, fails hard or runs out of
// rate-limit attempts. Failed attempts are recorded in failed. A non-nil
// error means the caller's context ended and the sequence must stop.
func (o *Orchestrator) tryModel(ctx context.Context, req model.CompletionRequest, failed *AllModelsFailedError) (*model.Completion, cloud.ErrorKind, error) {
	name := req.Model.Name

	for attempt := 1; ; attempt++ {
		start := time.Now()
		out, err := o.client.Complete(ctx, req)
		if err == nil && (out == nil || strings.TrimSpace(out.Text) == "") {
			err = &cloud.CompletionError{Kind: cloud.ErrorKindModel, Model: name, Err: cloud.ErrEmptyResponse}
		}
		elapsed := time.Since(start).Round(time.Millisecond)

		if err == nil {
			log.Printf("MODEL_SUCCESS | model=%s attempt=%d tokens=%d duration=%v", name, attempt, out.TotalTokens, elapsed)
			return out, 0, nil
		}

		kind := cloud.KindOf(err)
		if ctx.Err() != nil {
			kind = cloud.ErrorKindCanceled
		}
		log.Printf("MODEL_ATTEMPT | model=%s attempt=%d kind=%s duration=%v error=%v", name, attempt, kind, elapsed, err)

		if kind == cloud.ErrorKindCanceled {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, kind, ctxErr
			}
			return nil, kind, err
		}

		failed.Attempts = append(failed.Attempts, Attempt{Model: name, Number: attempt, Kind: kind, Err: err})

		if kind != cloud.ErrorKindRateLimited || attempt >= o.maxAttempts {
			log.Printf("MODEL_FAILED | model=%s attempts=%d kind=%s", name, attempt, kind)
			return nil, kind, nil
		}

		delay := o.backoff.Delay(attempt)
		log.Printf("MODEL_BACKOFF | model=%s attempt=%d delay=%v", name, attempt, delay)
		if err := o.sleep(ctx, delay); err != nil {
			return nil, cloud.ErrorKindCanceled, err
		}
	}
}
