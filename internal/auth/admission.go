// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package auth

import (
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/models"
)

// ExtractToken pulls the bearer credential from a connection-establishment
// request. WebSocket handshakes carry the token either as a `token` query
// parameter (browser clients cannot set headers on WebSocket upgrades) or as
// a standard Authorization header with the "Bearer " prefix.
//
// Returns ErrTokenMissing when neither is present.
func ExtractToken(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrTokenMissing
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return "", ErrTokenMissing
	}
	return token, nil
}

// Admit gates one inbound connection attempt: extract the credential, verify
// it, and return the identity to attach to the connection. Rejection here
// happens before the connection ever reaches the registry.
func (m *JWTManager) Admit(r *http.Request) (models.Identity, error) {
	token, err := ExtractToken(r)
	if err != nil {
		return models.Identity{}, err
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		return models.Identity{}, err
	}

	return claims.Identity(), nil
}
