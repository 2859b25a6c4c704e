// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pipeline.go - Builds the completion pipeline from configuration.
package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/config"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/orchestrator"
	"github.com/capitalcode/concierge/internal/prompt"
	"github.com/capitalcode/concierge/internal/router"
)

// completionClient is what the pipeline needs from a provider adapter.
type completionClient interface {
	Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error)
	IsConfigured() bool
}

// Pipeline holds everything needed to answer one message.
type Pipeline struct {
	Config       *config.Config
	Catalog      *catalog.Store
	Client       completionClient
	Orchestrator *orchestrator.Orchestrator
	Classifier   router.Classifier
	Models       model.Models
}

// Reply is one answered message.
type Reply struct {
	Text       string        `json:"content"`
	Language   string        `json:"language"`
	Model      string        `json:"model"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Intent     router.Intent `json:"detected_intent"`
	Duration   time.Duration `json:"-"`
}

// loadConfig loads the config named by args and applies --model.
func loadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if args.Model != "" {
		if err := restrictModels(cfg, args.Model); err != nil {
			return nil, err
		}
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// restrictModels keeps only the named model in cfg.
func restrictModels(cfg *config.Config, name string) error {
	m, ok := cfg.ModelList().Lookup(name)
	if !ok {
		return &NotFoundError{Resource: "model", ID: name}
	}
	cfg.Models = []model.ModelDescriptor{m}
	if cfg.Intent.Model != "" && cfg.Intent.Model != name {
		cfg.Intent.Model = name
	}
	return nil
}

// loadCatalog returns the configured catalog, or the built-in one.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return c, nil
}

// newClient builds the provider adapter selected by provider.kind.
func newClient(p config.ProviderConfig) completionClient {
	if p.Kind == "sdk" {
		return cloud.NewSDKClient(p.APIKey,
			cloud.WithSDKBaseURL(p.BaseURL),
			cloud.WithSDKTimeout(p.Timeout()),
		)
	}
	return cloud.NewClient(p.APIKey).
		WithBaseURL(p.BaseURL).
		WithTimeout(p.Timeout())
}

// newClassifier builds the classifier selected by intent.mode.
func newClassifier(cfg *config.Config, client completionClient, src catalog.Source) (router.Classifier, error) {
	switch cfg.Intent.Mode {
	case "off":
		return router.Off{}, nil
	case "model":
		models := cfg.ModelList().Sorted()
		m, ok := models.Last()
		if cfg.Intent.Model != "" {
			m, ok = models.Lookup(cfg.Intent.Model)
		}
		if !ok {
			return nil, &NotFoundError{Resource: "intent model", ID: cfg.Intent.Model}
		}
		return router.NewModelClassifier(client, m, src, cfg.Intent.Timeout()), nil
	default:
		return router.NewKeywordClassifier(src), nil
	}
}

// NewPipeline wires catalog, client, orchestrator and classifier for cfg.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	store := catalog.NewStore(cat)
	return newPipelineWith(cfg, store, newClient(cfg.Provider))
}

func newPipelineWith(cfg *config.Config, store *catalog.Store, client completionClient) (*Pipeline, error) {
	navMode, err := orchestrator.ParseNavigationMode(cfg.Orchestrator.NavigationMode)
	if err != nil {
		return nil, err
	}

	models := cfg.ModelList().Sorted()
	orch, err := orchestrator.New(client, prompt.New(store, cfg.Prompt.MaxHistory), models,
		orchestrator.WithMaxAttempts(cfg.Retry.MaxAttempts),
		orchestrator.WithBackoff(cfg.Retry.BaseDelay(), cfg.Retry.MaxDelay()),
		orchestrator.WithNavigationMode(navMode),
		orchestrator.WithCatalog(store),
	)
	if err != nil {
		return nil, err
	}

	classifier, err := newClassifier(cfg, client, store)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Config:       cfg,
		Catalog:      store,
		Client:       client,
		Orchestrator: orch,
		Classifier:   classifier,
		Models:       models,
	}, nil
}

// Ask answers userMessage given the earlier turns. Intent classification
// runs alongside the completion and never fails the call.
func (p *Pipeline) Ask(ctx context.Context, history []model.ConversationMessage, userMessage string) (*Reply, error) {
	if !p.Client.IsConfigured() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.Config.Server.RequestTimeout())
	defer cancel()

	var (
		intent router.Intent
		result *model.CompletionResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = router.Safe(gctx, p.Classifier, userMessage)
		return nil
	})
	g.Go(func() error {
		var err error
		result, err = p.Orchestrator.Complete(gctx, history, userMessage)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reply := &Reply{
		Text:       result.Text,
		Language:   p.Catalog.Get().LanguageCode(),
		Model:      result.ModelUsed,
		TokensUsed: result.TokensUsed,
		Intent:     intent,
		Duration:   time.Since(start),
	}
	log.Printf("CLI_REPLY | model=%s intent=%s tokens=%d duration=%v",
		reply.Model, reply.Intent, reply.TokensUsed, reply.Duration.Round(time.Millisecond))
	return reply, nil
}
