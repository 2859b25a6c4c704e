// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/capitalcode/concierge/internal/model"
)

// SDKClient implements the completion contract on the official openai-go
// SDK. SDK retries are disabled; failures are classified like Client's.
type SDKClient struct {
	client openai.Client
	apiKey string
}

// SDKOption configures an SDKClient.
type SDKOption func(*sdkConfig)

type sdkConfig struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// WithSDKBaseURL points the SDK at an OpenAI-compatible endpoint.
func WithSDKBaseURL(url string) SDKOption {
	return func(c *sdkConfig) { c.baseURL = url }
}

// WithSDKTimeout sets the per-request timeout.
func WithSDKTimeout(d time.Duration) SDKOption {
	return func(c *sdkConfig) { c.timeout = d }
}

// WithSDKHTTPClient replaces the SDK's HTTP client.
func WithSDKHTTPClient(hc *http.Client) SDKOption {
	return func(c *sdkConfig) { c.httpClient = hc }
}

// NewSDKClient creates an SDK-backed adapter. The base URL defaults to Groq.
func NewSDKClient(apiKey string, opts ...SDKOption) *SDKClient {
	cfg := sdkConfig{baseURL: DefaultBaseURL, timeout: DefaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}

	apiKey = strings.TrimSpace(apiKey)
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimSuffix(cfg.baseURL, "/") + "/"),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", userAgent),
	}
	if cfg.timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.timeout))
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &SDKClient{
		client: openai.NewClient(clientOpts...),
		apiKey: apiKey,
	}
}

// IsConfigured reports whether the client holds a well-formed API key.
func (c *SDKClient) IsConfigured() bool {
	return ValidKey(c.apiKey)
}

// Complete sends one chat completion request through the SDK.
func (c *SDKClient) Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error) {
	name := req.Model.Name
	if !c.IsConfigured() {
		return nil, &CompletionError{Kind: ErrorKindModel, Model: name, Err: ErrNotConfigured}
	}

	params := openai.ChatCompletionNewParams{
		Model:       name,
		Messages:    toSDKMessages(req.Wire()),
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, sdkError(ctx, name, err)
	}

	text := ""
	if len(completion.Choices) > 0 {
		text = completion.Choices[0].Message.Content
	}
	if strings.TrimSpace(text) == "" {
		return nil, &CompletionError{Kind: ErrorKindModel, Model: name, Status: http.StatusOK, Err: ErrEmptyResponse}
	}

	out := &model.Completion{
		Text:        text,
		Model:       completion.Model,
		TotalTokens: int(completion.Usage.TotalTokens),
	}
	if out.Model == "" {
		out.Model = name
	}
	return out, nil
}

// sdkError maps SDK failures onto CompletionError.
func sdkError(ctx context.Context, modelName string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code, msg := apiErr.Code, apiErr.Message
		if msg == "" {
			// Some providers nest the error object; read it from the raw body.
			var body apiErrorResponse
			if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
				code, msg = body.Error.Code, body.Error.Message
			}
		}
		if msg == "" {
			msg = err.Error()
		}
		ce := classify(modelName, apiErr.StatusCode, code, msg)
		if ce.Err == nil {
			ce.Err = err
		}
		return ce
	}
	return transportError(ctx, modelName, err)
}

// toSDKMessages converts conversation messages to the SDK union type.
func toSDKMessages(msgs []model.ConversationMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case model.RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			out[i] = openai.UserMessage(m.Content)
		}
	}
	return out
}
