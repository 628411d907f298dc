// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/relay"
	ws "github.com/parleyhq/parley/internal/websocket"
)

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	config     *config.Config
	hub        *ws.Hub
	dispatcher relay.EventHandler
	notifier   *relay.Notifier
	jwt        *auth.JWTManager
	creds      *auth.CredentialStore
}

// NewHandler creates a Handler with its dependencies injected.
func NewHandler(cfg *config.Config, hub *ws.Hub, dispatcher relay.EventHandler, notifier *relay.Notifier, jwt *auth.JWTManager, creds *auth.CredentialStore) *Handler {
	return &Handler{
		config:     cfg,
		hub:        hub,
		dispatcher: dispatcher,
		notifier:   notifier,
		jwt:        jwt,
		creds:      creds,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Legitimate browser WebSockets always include Origin; allowing an empty
	// Origin would bypass CORS entirely.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// Nil config fails open for tests and development
	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
