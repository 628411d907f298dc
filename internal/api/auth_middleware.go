// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext returns the authenticated identity attached by
// Authenticate, if any.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(models.Identity)
	return ident, ok
}

// Authenticate requires a valid bearer token and attaches the verified
// identity to the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.jwt.Admit(r)
		if err != nil {
			if errors.Is(err, auth.ErrTokenMissing) {
				respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required", nil)
			} else {
				respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only identities carrying the given role. Must run after
// Authenticate.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "authentication required", nil)
				return
			}
			if ident.Role != role {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
