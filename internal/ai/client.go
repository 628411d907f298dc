// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package ai talks to an OpenAI-compatible chat completions endpoint to
// produce assistant replies for conversations. Calls run through a circuit
// breaker so a degraded upstream fails fast instead of tying up connections.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
)

// Responder produces an assistant reply to a conversation's message history.
// The last element of history is the message being replied to.
type Responder interface {
	Respond(ctx context.Context, history []*models.ChatMessage) (string, error)
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal response shape returned by the endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("ai: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	historyLimit int
	httpClient   *http.Client
}

// NewClient builds a Client from configuration. The base URL may point at any
// server speaking the chat completions protocol, not just OpenAI.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Respond sends the conversation history to the upstream model and returns
// the assistant's reply. Only the most recent historyLimit messages are sent.
func (c *Client) Respond(ctx context.Context, history []*models.ChatMessage) (string, error) {
	if c.historyLimit > 0 && len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}

	msgs := make([]chatMessage, 0, len(history)+1)
	if c.systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	reqBody, err := json.Marshal(chatRequest{Model: c.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	// Cap error bodies; upstream failures can return HTML pages
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
