// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/capitalcode/concierge/internal/storage"
)

// sitemapPaths are the public pages listed in sitemap.xml.
var sitemapPaths = []string{"/", "/showcase", "/meeting"}

// ============================================================================
// CUSTOMERS
// ============================================================================

// CustomerRequest is the body of POST /api/customers.
type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CustomerResponse is returned for a created or updated customer.
type CustomerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleCreateCustomer handles POST /api/customers.
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	st := s.storeHandle()
	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage_disabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_customer", err)
		return
	}

	customer, err := st.UpsertCustomer(r.Context(), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCustomer) {
			s.writeError(w, http.StatusBadRequest, "invalid_customer", err)
			return
		}
		log.Printf("STORAGE_ERROR | op=upsert_customer error=%v", err)
		s.logFailure(r, "storage", err.Error(), "")
		s.writeError(w, http.StatusInternalServerError, s.snapshot().Messages.Internal, err)
		return
	}

	log.Printf("CUSTOMER_UPSERTED | id=%s", customer.ID)
	writeJSON(w, http.StatusCreated, CustomerResponse{
		ID:    customer.ID,
		Name:  customer.Name,
		Email: customer.Email,
	})
}

// ============================================================================
// QUICK QUESTIONS
// ============================================================================

// handleQuickQuestions handles GET /api/quick-questions.
func (s *Server) handleQuickQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.snapshot().QuickQuestions
	if questions == nil {
		questions = []string{}
	}
	w.Header().Set("Cache-Control", "public, max-age=3600, stale-while-revalidate=59")
	writeJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Models         []string `json:"models"`
	StorageEnabled bool     `json:"storage_enabled"`
	StorageStatus  string   `json:"storage_status"`
	KeyConfigured  bool     `json:"key_configured"`
	Language       string   `json:"language"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	models := s.models
	keyConfigured := s.keyConfigured
	st := s.store
	s.mu.RUnlock()

	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		Models:        models.Names(),
		KeyConfigured: keyConfigured,
		StorageStatus: "disabled",
		Language:      s.snapshot().LanguageCode(),
	}

	if st != nil {
		health.StorageEnabled = true
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			health.StorageStatus = "unavailable"
			health.Status = "degraded"
		} else {
			health.StorageStatus = "ok"
		}
	}
	if !keyConfigured {
		health.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// STATS HANDLER
// ============================================================================

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	TotalRequests  int64            `json:"total_requests"`
	StatusClasses  map[string]int64 `json:"status_classes"`
	ModelSuccesses map[string]int64 `json:"model_successes"`
	Intents        map[string]int64 `json:"intents"`
	TotalTokens    int64            `json:"total_tokens"`
	ChatFailures   int64            `json:"chat_failures"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// ============================================================================
// CRAWLERS
// ============================================================================

// handleRobots handles GET /robots.txt.
func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(s.cfg.Site.BaseURL, "/")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /private/\n\nSitemap: %s/sitemap.xml\n", base)
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// buildSitemap renders the sitemap for base with every page modified at now.
func buildSitemap(base string, now time.Time) ([]byte, error) {
	base = strings.TrimSuffix(base, "/")
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range sitemapPaths {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     base + p,
			LastMod: now.UTC().Format("2006-01-02"),
		})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// handleSitemap handles GET /sitemap.xml.
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body, err := buildSitemap(s.cfg.Site.BaseURL, time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, s.snapshot().Messages.Internal, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(body)
}

// ============================================================================
// ADMIN HANDLERS
// ============================================================================

// queryLimit reads the limit parameter; invalid values fall back to the
// store's default.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// handleAdminConversations handles GET /api/admin/conversations.
func (s *Server) handleAdminConversations(w http.ResponseWriter, r *http.Request) {
	st := s.storeHandle()
	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage_disabled"})
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "customer_id_required"})
		return
	}
	if _, err := st.GetCustomer(r.Context(), customerID); err != nil {
		if errors.Is(err, storage.ErrCustomerNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "customer_not_found"})
			return
		}
		s.writeError(w, http.StatusInternalServerError, "storage_error", err)
		return
	}

	turns, err := st.ListTurns(r.Context(), customerID, queryLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage_error", err)
		return
	}
	if turns == nil {
		turns = []storage.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customer_id":   customerID,
		"conversations": turns,
	})
}

// handleAdminErrors handles GET /api/admin/errors.
func (s *Server) handleAdminErrors(w http.ResponseWriter, r *http.Request) {
	st := s.storeHandle()
	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage_disabled"})
		return
	}

	logs, err := st.ListErrors(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage_error", err)
		return
	}
	if logs == nil {
		logs = []storage.ErrorLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"errors": logs})
}
