package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ai-orchestrator/services/providers"
)

func newTestServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key"})

	assert.Equal(t, "openai", adapter.Identifier())
	assert.Equal(t, "OpenAI", adapter.DisplayName())
	assert.Equal(t, 5, adapter.Priority())
	assert.Equal(t, "gpt-4o-mini", adapter.DefaultModel())
	assert.True(t, adapter.IsConfigured())
	assert.Equal(t, defaultBaseURL, adapter.Config().BaseURL)
	assert.Contains(t, adapter.AvailableModels(), "gpt-4o")

	t.Run("overrides", func(t *testing.T) {
		adapter := NewAdapter(providers.ProviderConfig{
			APIKey:   "test-key",
			Model:    "gpt-4o",
			Priority: 2,
			BaseURL:  "https://proxy.example.com/v1/",
		})
		assert.Equal(t, "gpt-4o", adapter.DefaultModel())
		assert.Equal(t, 2, adapter.Priority())
		assert.Equal(t, "https://proxy.example.com/v1", adapter.Config().BaseURL)
	})

	t.Run("blank key is not configured", func(t *testing.T) {
		adapter := NewAdapter(providers.ProviderConfig{APIKey: "   "})
		assert.False(t, adapter.IsConfigured())
	})
}

func TestAdapter_EstimateCost(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.StatusOK, `{}`, &calls)
	adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL})

	first := adapter.EstimateCost(1200, 300, "gpt-4o")
	second := adapter.EstimateCost(1200, 300, "gpt-4o")

	assert.Equal(t, first, second)
	assert.InDelta(t, 1.5*0.0025, first, 1e-12)
	assert.InDelta(t, 1.5*0.00015, adapter.EstimateCost(1200, 300, "unknown-model"), 1e-12)
	assert.Zero(t, adapter.EstimateCost(0, 0, "gpt-4o"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAdapter_Complete_NotConfigured(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.StatusOK, `{}`, &calls)
	adapter := NewAdapter(providers.ProviderConfig{BaseURL: server.URL})

	result := adapter.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindNoAPIKey, result.ErrorKind)
	assert.Zero(t, result.Latency)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAdapter_Complete_Success(t *testing.T) {
	var captured map[string]interface{}
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		MaxTokens:   256,
		Temperature: 0.3,
	})

	result := adapter.Complete(context.Background(), providers.CompletionRequest{
		Prompt:       "Say hi",
		SystemPrompt: "Be brief",
		Model:        "gpt-4o",
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Hi there", result.Content)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-4o", result.Model)
	assert.Equal(t, 10, result.InputTokens)
	assert.Equal(t, 5, result.OutputTokens)
	assert.InDelta(t, 15.0/1000*0.0025, result.Cost, 1e-12)
	assert.Equal(t, "chatcmpl-1", result.Metadata["response_id"])
	assert.Equal(t, "stop", result.Metadata["finish_reason"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Equal(t, "gpt-4o", captured["model"])
	assert.EqualValues(t, 256, captured["max_tokens"])
	assert.InDelta(t, 0.3, captured["temperature"], 1e-9)
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestAdapter_Complete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind providers.ErrorKind
	}{
		{
			name:     "invalid key",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantKind: providers.ErrorKindInvalidAPIKey,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			wantKind: providers.ErrorKindRateLimitExceeded,
		},
		{
			name:     "quota exhausted",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantKind: providers.ErrorKindQuotaExceeded,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"The server had an error","type":"server_error"}}`,
			wantKind: providers.ErrorKindServerError,
		},
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"max_tokens is too large","type":"invalid_request_error"}}`,
			wantKind: providers.ErrorKindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := newTestServer(t, tt.status, tt.body, &calls)
			adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL})

			result := adapter.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantKind, result.ErrorKind)
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "adapter must not retry")
		})
	}
}

func TestAdapter_Complete_EmptyResponse(t *testing.T) {
	var calls int32
	server := newTestServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":""}}],"usage":{"prompt_tokens":4,"completion_tokens":0}}`, &calls)
	adapter := NewAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL})

	result := adapter.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindEmptyResponse, result.ErrorKind)
	assert.Equal(t, 4, result.InputTokens)
	assert.Greater(t, result.Cost, 0.0)
}

func TestAdapter_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	adapter := NewAdapter(providers.ProviderConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
	})

	result := adapter.Complete(context.Background(), providers.CompletionRequest{Prompt: "hi"})

	assert.False(t, result.Success)
	assert.Equal(t, providers.ErrorKindUnknown, result.ErrorKind)
	assert.Less(t, result.Latency, 200*time.Millisecond)
}
