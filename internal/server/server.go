// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/capitalcode/concierge/internal/catalog"
	"github.com/capitalcode/concierge/internal/config"
	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/router"
	"github.com/capitalcode/concierge/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize is the maximum size for request body to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// MaxContentLength is the maximum length of one message, in runes.
	MaxContentLength = 4000

	// storageTimeout bounds persistence done after the request context ends.
	storageTimeout = 5 * time.Second

	// Version is the server version.
	Version = "1.0.0"
)

// ChatCompleter produces a reply for the latest user message. It is
// satisfied by *orchestrator.Orchestrator.
type ChatCompleter interface {
	Complete(ctx context.Context, history []model.ConversationMessage, userMessage string) (*model.CompletionResult, error)
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage statistics.
type ServerStats struct {
	TotalRequests  int64
	StatusClasses  map[string]int64
	ModelSuccesses map[string]int64
	Intents        map[string]int64
	TotalTokens    int64
	ChatFailures   int64
	StartTime      time.Time

	mu sync.Mutex
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{
		StatusClasses:  make(map[string]int64),
		ModelSuccesses: make(map[string]int64),
		Intents:        make(map[string]int64),
		StartTime:      time.Now(),
	}
}

// RecordStatus counts one finished HTTP request.
func (s *ServerStats) RecordStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRequests++
	s.StatusClasses[statusClass(status)]++
}

// RecordChat counts one successful chat reply.
func (s *ServerStats) RecordChat(modelName string, intent router.Intent, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ModelSuccesses[modelName]++
	s.Intents[intent.String()]++
	s.TotalTokens += int64(tokens)
}

// RecordChatFailure counts one chat request that produced no reply.
func (s *ServerStats) RecordChatFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChatFailures++
}

// Snapshot returns a copy of the stats safe to read without locking.
func (s *ServerStats) Snapshot() StatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsResponse{
		TotalRequests:  s.TotalRequests,
		StatusClasses:  copyCounts(s.StatusClasses),
		ModelSuccesses: copyCounts(s.ModelSuccesses),
		Intents:        copyCounts(s.Intents),
		TotalTokens:    s.TotalTokens,
		ChatFailures:   s.ChatFailures,
		UptimeSeconds:  int64(time.Since(s.StartTime).Seconds()),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP API behind the site's chat widget.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	server *http.Server
	acme   *http.Server

	chat          ChatCompleter
	classifier    router.Classifier
	catalog       catalog.Source
	store         *storage.Store
	models        model.Models
	keyConfigured bool

	stats   *ServerStats
	auth    *AuthConfig
	ips     *IPResolver
	limiter *RateLimiter

	mu sync.RWMutex
}

// NewServer creates a Server for cfg that answers chats with chat. Intent
// classification defaults to keywords over the default catalog.
func NewServer(cfg *config.Config, chat ChatCompleter) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	src := catalog.Static{}
	s := &Server{
		cfg:           cfg,
		mux:           http.NewServeMux(),
		chat:          chat,
		classifier:    router.NewKeywordClassifier(src),
		catalog:       src,
		models:        cfg.ModelList().Sorted(),
		keyConfigured: true,
		stats:         NewServerStats(),
		auth: &AuthConfig{
			BearerToken: cfg.Admin.Token,
			TOTPSecret:  cfg.Admin.TOTPSecret,
		},
		ips: NewIPResolver(cfg.Server.TrustedProxies),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	s.setupRoutes()
	s.buildHTTPServers()
	return s
}

// WithClassifier sets the intent classifier.
func (s *Server) WithClassifier(c router.Classifier) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier = c
	return s
}

// WithCatalog sets the catalog source for user-facing copy.
func (s *Server) WithCatalog(src catalog.Source) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = src
	return s
}

// WithStore enables persistence of customers, transcripts and errors.
func (s *Server) WithStore(st *storage.Store) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
	return s
}

// WithModels sets the model list reported by /health.
func (s *Server) WithModels(models model.Models) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models.Sorted()
	return s
}

// WithAPIKeyConfigured records whether the provider key is usable. Without
// one every chat request fails with 500.
func (s *Server) WithAPIKeyConfigured(ok bool) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyConfigured = ok
	return s
}

// Stats returns the live statistics.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

func (s *Server) snapshot() *catalog.Catalog {
	s.mu.RLock()
	src := s.catalog
	s.mu.RUnlock()
	if src != nil {
		if c := src.Get(); c != nil {
			return c
		}
	}
	return catalog.Default()
}

func (s *Server) storeHandle() *storage.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Chat widget API
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/customers", s.handleCreateCustomer)
	s.mux.HandleFunc("GET /api/quick-questions", s.handleQuickQuestions)

	// Health and stats endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)

	// Crawlers
	s.mux.HandleFunc("GET /robots.txt", s.handleRobots)
	s.mux.HandleFunc("GET /sitemap.xml", s.handleSitemap)

	// Admin
	admin := AuthMiddleware(s.auth, s.ips)
	s.mux.Handle("GET /api/admin/conversations", admin(http.HandlerFunc(s.handleAdminConversations)))
	s.mux.Handle("GET /api/admin/errors", admin(http.HandlerFunc(s.handleAdminErrors)))
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.rejectPanic),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default(), s.stats),
		CORSMiddleware(NewCORSConfig(s.cfg.Server.CORSOrigins)),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.ips, s.rejectRateLimited))
	}
	return Chain(middlewares...)(s.mux)
}

func (s *Server) rejectPanic(w http.ResponseWriter, r *http.Request) {
	cat := s.snapshot()
	s.writeError(w, http.StatusInternalServerError, cat.WithContact(cat.Messages.Internal), nil)
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	cat := s.snapshot()
	s.writeError(w, http.StatusTooManyRequests, cat.WithContact(cat.Messages.RateLimited), nil)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// buildHTTPServers creates the listeners up front so Shutdown always has
// something to close, even when it runs before Start.
func (s *Server) buildHTTPServers() {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.Server.RequestTimeout() + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	domains := s.cfg.Server.AutocertDomains
	if len(domains) == 0 {
		return
	}
	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(s.cfg.Server.AutocertCacheDir),
	}
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	s.server.Addr = ":443"
	s.server.TLSConfig = tlsConfig

	s.acme = &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start starts the HTTP server and blocks until it stops. When autocert
// domains are configured it serves TLS on :443 and ACME challenges on :80.
// After Shutdown, Start returns http.ErrServerClosed immediately.
func (s *Server) Start() error {
	if s.acme != nil {
		go func() {
			if err := s.acme.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("ACME_LISTENER_FAILED | error=%v", err)
			}
		}()

		log.Printf("SERVER_START | addr=%s tls=autocert domains=%v version=%s", s.server.Addr, s.cfg.Server.AutocertDomains, Version)
		return s.server.ListenAndServeTLS("", "")
	}

	log.Printf("SERVER_START | addr=%s version=%s env=%s", s.server.Addr, Version, s.cfg.Server.Environment)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	stats := s.stats.Snapshot()
	log.Printf("SERVER_STATS | requests=%d tokens=%d failures=%d", stats.TotalRequests, stats.TotalTokens, stats.ChatFailures)

	if s.acme != nil {
		if err := s.acme.Shutdown(ctx); err != nil {
			log.Printf("ACME_SHUTDOWN_FAILED | error=%v", err)
		}
	}
	return s.server.Shutdown(ctx)
}

// Close releases background resources without a running listener.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_WRITE_FAILED | status=%d error=%v", status, err)
	}
}

// writeError writes a JSON error response. The cause is only exposed
// outside production.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, cause error) {
	body := errorBody{Error: message}
	if cause != nil && !s.cfg.Server.IsProduction() {
		body.Details = cause.Error()
	}
	writeJSON(w, status, body)
}

// logFailure records a failed request in the store, detached from the
// request context so a disconnect does not lose the record.
func (s *Server) logFailure(r *http.Request, code, message, customerID string) {
	st := s.storeHandle()
	if st == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), storageTimeout)
	defer cancel()

	err := st.LogError(ctx, storage.ErrorLog{
		Endpoint:   r.URL.Path,
		Code:       code,
		Message:    message,
		CustomerID: customerID,
	})
	if err != nil {
		log.Printf("STORAGE_ERROR | op=log_error error=%v", err)
	}
}
