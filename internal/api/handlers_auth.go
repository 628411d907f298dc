// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"net/http"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/models"
)

// Login exchanges admin credentials for a signed token. The token carries the
// admin role and authorizes both the WebSocket handshake and the
// authenticated HTTP endpoints.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.creds == nil {
		respondError(w, http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "authentication is not configured", nil)
		return
	}

	if !h.creds.Verify(req.Username, req.Password) {
		// Same response for unknown user and wrong password
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(req.Username, "admin", "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "could not generate token", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
