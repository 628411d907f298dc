// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
)

func testAIConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		BaseURL:                 baseURL,
		APIKey:                  "test-key",
		Model:                   "gpt-4o-mini",
		Timeout:                 5 * time.Second,
		SystemPrompt:            "You are a helpful shopping assistant.",
		HistoryLimit:            20,
		BreakerFailureThreshold: 3,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

func TestClientRespond(t *testing.T) {
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "It ships in 2 days."}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testAIConfig(srv.URL))
	reply, err := c.Respond(context.Background(), []*models.ChatMessage{
		{Role: models.RoleUser, Content: "When does my order ship?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "It ships in 2 days.", reply)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, models.RoleUser, gotReq.Messages[1].Role)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
}

func TestClientTruncatesHistory(t *testing.T) {
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	cfg := testAIConfig(srv.URL)
	cfg.HistoryLimit = 2
	c := NewClient(cfg)

	history := []*models.ChatMessage{
		{Role: models.RoleUser, Content: "one"},
		{Role: models.RoleAssistant, Content: "two"},
		{Role: models.RoleUser, Content: "three"},
	}
	_, err := c.Respond(context.Background(), history)
	require.NoError(t, err)

	// system prompt + last two messages only
	require.Len(t, gotReq.Messages, 3)
	assert.Equal(t, "two", gotReq.Messages[1].Content)
	assert.Equal(t, "three", gotReq.Messages[2].Content)
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testAIConfig(srv.URL))
	_, err := c.Respond(context.Background(), []*models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewClient(testAIConfig(srv.URL))
	_, err := c.Respond(context.Background(), []*models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

// failingResponder always errors, to drive the breaker open.
type failingResponder struct {
	calls int
}

func (f *failingResponder) Respond(ctx context.Context, history []*models.ChatMessage) (string, error) {
	f.calls++
	return "", errors.New("upstream down")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingResponder{}
	cfg := testAIConfig("http://unused")
	cfg.BreakerFailureThreshold = 3

	b := NewBreakerResponder(inner, cfg)
	history := []*models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}

	for i := 0; i < 3; i++ {
		_, err := b.Respond(context.Background(), history)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	// Circuit is now open: the inner responder must not be called again
	callsBefore := inner.calls
	_, err := b.Respond(context.Background(), history)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, callsBefore, inner.calls)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	b := NewBreakerResponder(NewClient(testAIConfig(srv.URL)), testAIConfig(srv.URL))
	reply, err := b.Respond(context.Background(), []*models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}
