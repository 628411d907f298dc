// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/logging"
	ws "github.com/parleyhq/parley/internal/websocket"
)

// WebSocket admits and upgrades a realtime connection.
//
// Admission runs before the protocol upgrade: a missing or invalid token
// rejects the handshake with a plain HTTP 401, so an unauthenticated caller
// never reaches the hub and no presence state is touched.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	identity, err := h.jwt.Admit(r)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required", nil)
		default:
			respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", err)
		}
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, identity, h.dispatcher, h.config.Relay)
	if !h.hub.RegisterClient(client) {
		logging.Warn().Str("user_id", identity.UserID).Msg("WebSocket connection rejected: hub stopped")
		_ = conn.Close()
		return
	}
	client.Start()
}
