// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/capitalcode/concierge/internal/model"
)

const testKey = "gsk_test_abcdefghijklmnopqrstuvwxyz0123456789"

type completer interface {
	Complete(ctx context.Context, req model.CompletionRequest) (*model.Completion, error)
}

// adapters returns both adapters pointed at url, so each behavior is
// checked against the hand-rolled client and the SDK client alike.
func adapters(url string) map[string]completer {
	return map[string]completer{
		"http": NewClient(testKey).WithBaseURL(url),
		"sdk":  NewSDKClient(testKey, WithSDKBaseURL(url)),
	}
}

func testRequest() model.CompletionRequest {
	return model.CompletionRequest{
		SystemInstruction: "Eres un asistente.",
		Messages:          []model.ConversationMessage{model.UserMessage("Hola")},
		Model:             model.ModelDescriptor{Name: "llama-3.3-70b-versatile", MaxTokens: 32768, Priority: 1},
		Temperature:       0.7,
		MaxTokens:         200,
	}
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		jsonHandler(http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "¡Hola!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)(w, r)
	}))
	defer server.Close()

	for name, c := range adapters(server.URL) {
		t.Run(name, func(t *testing.T) {
			out, err := c.Complete(context.Background(), testRequest())
			require.NoError(t, err)
			require.Equal(t, "¡Hola!", out.Text)
			require.Equal(t, "llama-3.3-70b-versatile", out.Model)
			require.Equal(t, 15, out.TotalTokens)

			require.Equal(t, "llama-3.3-70b-versatile", got["model"])
			require.EqualValues(t, 200, got["max_tokens"])
			require.InDelta(t, 0.7, got["temperature"], 1e-9)
			msgs := got["messages"].([]any)
			require.Len(t, msgs, 2)
			require.Equal(t, "system", msgs[0].(map[string]any)["role"])
			require.Equal(t, "user", msgs[1].(map[string]any)["role"])
		})
	}
}

func TestComplete_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantErr  error
	}{
		{
			name:     "http 429",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down","type":"requests"}}`,
			wantKind: ErrorKindRateLimited,
			wantErr:  ErrRateLimited,
		},
		{
			name:     "rate_limit_exceeded code",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"quota","code":"rate_limit_exceeded"}}`,
			wantKind: ErrorKindRateLimited,
			wantErr:  ErrRateLimited,
		},
		{
			name:     "rate limit text",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"message":"Rate limit reached for model"}}`,
			wantKind: ErrorKindRateLimited,
			wantErr:  ErrRateLimited,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"internal failure"}}`,
			wantKind: ErrorKindModel,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Invalid API Key","code":"invalid_api_key"}}`,
			wantKind: ErrorKindModel,
			wantErr:  ErrAuthFailed,
		},
		{
			name:     "unknown model",
			status:   http.StatusNotFound,
			body:     `{"error":{"message":"model does not exist","code":"model_not_found"}}`,
			wantKind: ErrorKindModel,
			wantErr:  ErrModelNotFound,
		},
		{
			name:     "empty choices",
			status:   http.StatusOK,
			body:     `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`,
			wantKind: ErrorKindModel,
			wantErr:  ErrEmptyResponse,
		},
		{
			name:     "blank content",
			status:   http.StatusOK,
			body:     `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"  "},"finish_reason":"stop"}]}`,
			wantKind: ErrorKindModel,
			wantErr:  ErrEmptyResponse,
		},
	}

	for _, tc := range tests {
		server := httptest.NewServer(jsonHandler(tc.status, tc.body))
		for name, c := range adapters(server.URL) {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				_, err := c.Complete(context.Background(), testRequest())
				require.Error(t, err)
				require.Equal(t, tc.wantKind, KindOf(err), "err: %v", err)
				if tc.wantErr != nil {
					require.ErrorIs(t, err, tc.wantErr)
				}
				var ce *CompletionError
				require.ErrorAs(t, err, &ce)
				require.Equal(t, "llama-3.3-70b-versatile", ce.Model)
			})
		}
		server.Close()
	}
}

func TestComplete_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(jsonHandler(http.StatusOK, `{"choices": [`))
	defer server.Close()

	for name, c := range adapters(server.URL) {
		t.Run(name, func(t *testing.T) {
			_, err := c.Complete(context.Background(), testRequest())
			require.Error(t, err)
			require.Equal(t, ErrorKindModel, KindOf(err))
		})
	}
}

func TestComplete_Canceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	for name, c := range adapters(server.URL) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := c.Complete(ctx, testRequest())
			require.Error(t, err)
			require.Equal(t, ErrorKindCanceled, KindOf(err))
		})
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	for _, key := range []string{"", "sk-wrong-prefix", "gsk_"} {
		clients := map[string]completer{
			"http": NewClient(key).WithBaseURL(server.URL),
			"sdk":  NewSDKClient(key, WithSDKBaseURL(server.URL)),
		}
		for name, c := range clients {
			t.Run(key+"/"+name, func(t *testing.T) {
				_, err := c.Complete(context.Background(), testRequest())
				require.ErrorIs(t, err, ErrNotConfigured)
			})
		}
	}
	require.Zero(t, calls.Load())
}

func TestComplete_NoInternalRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		jsonHandler(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)(w, r)
	}))
	defer server.Close()

	for name, c := range adapters(server.URL) {
		t.Run(name, func(t *testing.T) {
			calls.Store(0)
			_, err := c.Complete(context.Background(), testRequest())
			require.Error(t, err)
			require.EqualValues(t, 1, calls.Load())
		})
	}
}

func TestHandleErrorResponse_LongPlainBody(t *testing.T) {
	body := []byte(strings.Repeat("ñ", 300))

	var ce *CompletionError
	require.ErrorAs(t, handleErrorResponse("m", http.StatusBadGateway, body), &ce)
	require.True(t, utf8.ValidString(ce.Message))
	require.Equal(t, 200, utf8.RuneCountInString(ce.Message))
	require.True(t, strings.HasSuffix(ce.Message, "..."))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrorKindModel, KindOf(nil))
	require.Equal(t, ErrorKindModel, KindOf(errors.New("boom")))
	require.Equal(t, ErrorKindCanceled, KindOf(context.Canceled))
	require.Equal(t, ErrorKindCanceled, KindOf(context.DeadlineExceeded))
	require.Equal(t, ErrorKindRateLimited, KindOf(ErrRateLimited))

	wrapped := errors.Join(errors.New("ctx"), &CompletionError{Kind: ErrorKindRateLimited})
	require.Equal(t, ErrorKindRateLimited, KindOf(wrapped))
}

func TestCompletionError_Message(t *testing.T) {
	err := &CompletionError{Kind: ErrorKindRateLimited, Model: "m", Status: 429, Code: "rate_limit_exceeded", Message: "slow"}
	require.Equal(t, "completion [m] rate_limited (HTTP 429) rate_limit_exceeded: slow", err.Error())
}

func TestKeyHelpers(t *testing.T) {
	require.True(t, ValidKey(testKey))
	require.True(t, ValidKey("  "+testKey+"\n"))
	require.False(t, ValidKey("sk-or-abc"))
	require.False(t, ValidKey(""))

	c := NewClient(testKey)
	masked := c.APIKeyMasked()
	require.NotContains(t, masked, "gsk_")
	require.Contains(t, masked, KeyFingerprint(testKey))
	require.Len(t, KeyFingerprint(testKey), 8)
	require.Equal(t, "[not set]", NewClient("").APIKeyMasked())
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		jsonHandler(http.StatusOK, `{"object":"list","data":[
			{"id":"llama-3.3-70b-versatile","owned_by":"Meta","context_window":131072,"active":true},
			{"id":"llama-3.1-8b-instant","owned_by":"Meta","context_window":131072,"active":true}
		]}`)(w, r)
	}))
	defer server.Close()

	models, err := NewClient(testKey).WithBaseURL(server.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "llama-3.3-70b-versatile", models[0].ID)
	require.True(t, strings.HasPrefix(models[1].ID, "llama-3.1"))
}

func TestReadResponse_TooLarge(t *testing.T) {
	big := strings.Repeat("a", MaxResponseSize+10)
	server := httptest.NewServer(jsonHandler(http.StatusOK, big))
	defer server.Close()

	_, err := NewClient(testKey).WithBaseURL(server.URL).Complete(context.Background(), testRequest())
	require.Error(t, err)
	require.Equal(t, ErrorKindModel, KindOf(err))
}
