// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - The "serve" command: runs the HTTP API until signaled.
package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/cloud"
	"github.com/capitalcode/concierge/internal/server"
	"github.com/capitalcode/concierge/internal/storage"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

// HandleServe handles the "serve" command.
func HandleServe(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return NewCommandError("serve", "setup", "failed to build pipeline", err)
	}

	keyConfigured := pipeline.Client.IsConfigured()
	if keyConfigured {
		log.Printf("PROVIDER | kind=%s base_url=%s key=%s", cfg.Provider.Kind, cfg.Provider.BaseURL, cloud.KeyFingerprint(cfg.Provider.APIKey))
	} else {
		log.Printf("PROVIDER_NOT_CONFIGURED | chat requests will fail until an API key is set")
	}

	if cfg.Catalog.Path != "" && cfg.Catalog.Watch {
		go func() {
			if err := catalog.Watch(ctx, cfg.Catalog.Path, pipeline.Catalog); err != nil {
				log.Printf("CATALOG_WATCH_FAILED | error=%v", err)
			}
		}()
	}

	srv := server.NewServer(cfg, pipeline.Orchestrator).
		WithClassifier(pipeline.Classifier).
		WithCatalog(pipeline.Catalog).
		WithModels(pipeline.Models).
		WithAPIKeyConfigured(keyConfigured)

	if cfg.Storage.Path != "" {
		st, err := storage.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return NewCommandError("serve", "open storage", cfg.Storage.Path, err)
		}
		defer st.Close()
		srv.WithStore(st)
		log.Printf("STORAGE | path=%s", st.Path())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		srv.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return NewCommandError("serve", "listen", cfg.Server.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("SIGNAL_RECEIVED | shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return NewCommandError("serve", "shutdown", "graceful shutdown failed", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return NewCommandError("serve", "listen", cfg.Server.Addr(), err)
	}
	log.Printf("SERVER_STOPPED")
	return nil
}
