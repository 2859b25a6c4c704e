// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/capitalcode/concierge/internal/model"
	"github.com/capitalcode/concierge/internal/util"
)

// Configuration constants for the completion API.
const (
	// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 60 * time.Second

	// KeyPrefix is the prefix every Groq API key carries.
	KeyPrefix = "gsk_"

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	userAgent = "concierge/1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// apiErrorResponse is the error body OpenAI-compatible APIs return.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ModelInfo describes a model the provider serves.
type ModelInfo struct {
	ID            string `json:"id"`
	OwnedBy       string `json:"owned_by"`
	ContextWindow int    `json:"context_window"`
	Active        bool   `json:"active"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a JSON-over-HTTP adapter for an OpenAI-compatible completion API.
// It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the Groq endpoint. An empty or malformed
// key still yields a client; Complete then fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: sharedTransport,
		},
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
	return c
}

// WithTimeout sets the per-round-trip timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured reports whether the client holds a well-formed API key.
func (c *Client) IsConfigured() bool {
	return ValidKey(c.apiKey)
}

// APIKeyMasked returns a display form of the key that never exposes any part
// of it.
func (c *Client) APIKeyMasked() string {
	if c.apiKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.apiKey), KeyFingerprint(c.apiKey))
}

// ValidKey reports whether key has the provider's key shape.
func ValidKey(key string) bool {
	key = strings.TrimSpace(key)
	return strings.HasPrefix(key, KeyPrefix) && len(key) > len(KeyPrefix)
}

// KeyFingerprint returns the first 8 hex chars of the key's SHA-256, for logs.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// COMPLETION
// =============================================================================

// Complete sends one chat completion request. It never retries.
func (c *Client) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	name := req.Model.Name
	if !c.IsConfigured() {
		return nil, &CompletionError{Kind: ErrorKindModel, Model: name, Err: ErrNotConfigured}
	}

	wire := req.Wire()
	body := chatRequest{
		Model:       name,
		Messages:    make([]chatMessage, len(wire)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for i, m := range wire {
		body.Messages[i] = chatMessage{Role: m.Role.String(), Content: m.Content}
	}

	resp, err := c.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(text) == "" {
		return nil, &CompletionError{Kind: ErrorKindModel, Model: name, Status: http.StatusOK, Err: ErrEmptyResponse}
	}

	out := &model.Completion{Text: text, Model: resp.Model}
	if out.Model == "" {
		out.Model = name
	}
	if resp.Usage != nil {
		out.TotalTokens = resp.Usage.TotalTokens
	}
	return out, nil
}

// doRequest performs a single POST to the chat completions endpoint.
func (c *Client) doRequest(ctx context.Context, reqBody chatRequest) (*chatResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &CompletionError{Model: reqBody.Model, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &CompletionError{Model: reqBody.Model, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		return nil, transportError(ctx, reqBody.Model, err)
	}
	defer resp.Body.Close()

	log.Printf("API_RESPONSE | model=%s status=%d duration=%v key=%s",
		reqBody.Model, resp.StatusCode, time.Since(start).Round(time.Millisecond), KeyFingerprint(c.apiKey))

	body, err := readResponse(resp)
	if err != nil {
		return nil, transportError(ctx, reqBody.Model, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(reqBody.Model, resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &CompletionError{
			Kind:   ErrorKindModel,
			Model:  reqBody.Model,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("failed to parse response: %w", err),
		}
	}
	return &chatResp, nil
}

// setHeaders sets the headers required by the API.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	// Read one byte past the limit so an exact-size body is not rejected.
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-200 reply into a CompletionError.
func handleErrorResponse(modelName string, statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		code := apiErr.Error.Code
		if code == "" {
			code = apiErr.Error.Type
		}
		return classify(modelName, statusCode, code, apiErr.Error.Message)
	}

	// Fallback for unparseable error responses
	msg := util.TruncateRunes(strings.TrimSpace(string(body)), 200)
	return classify(modelName, statusCode, "", msg)
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels retrieves the models the provider currently serves.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse("", resp.StatusCode, body)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return models.Data, nil
}
