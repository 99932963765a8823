package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gostly/gostly-backend/pkg/config"
)

func completionServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			body := map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			*seen = body
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     baseURL + "/v1/",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   300,
		Timeout:     2 * time.Second,
	}
}

func TestCompleteReturnsTrimmedText(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, "  Check-in is at 15:00.  ", &body)

	client := NewClient(testConfig(srv.URL))
	text, err := client.Complete(context.Background(), "system prompt", "When is check-in?")
	require.NoError(t, err)
	require.Equal(t, "Check-in is at 15:00.", text)

	require.Equal(t, "gpt-4o-mini", body["model"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	require.Equal(t, "system", first["role"])
}

func TestCompleteEmptyText(t *testing.T) {
	srv := completionServer(t, "   ", nil)
	client := NewClient(testConfig(srv.URL))
	_, err := client.Complete(context.Background(), "s", "u")
	require.True(t, errors.Is(err, ErrEmptyCompletion))
}

func TestCompleteWithoutKey(t *testing.T) {
	client := NewClient(config.OpenAIConfig{Model: "gpt-4o-mini"})
	require.False(t, client.Configured())
	_, err := client.Complete(context.Background(), "s", "u")
	require.True(t, errors.Is(err, ErrNotConfigured))
}

func TestCompleteTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	client := NewClient(cfg)

	started := time.Now()
	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	require.Less(t, time.Since(started), 900*time.Millisecond)
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(testConfig(srv.URL))
	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}
