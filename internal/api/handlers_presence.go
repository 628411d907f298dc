// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/models"
)

// Presence lists all currently online user ids.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	online := h.notifier.OnlineUsers()
	respondSuccess(w, http.StatusOK, models.PresenceResponse{
		Online: online,
		Count:  len(online),
	})
}

// PresenceUser reports whether one user is currently online.
func (h *Handler) PresenceUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "MISSING_USER_ID", "user id is required", nil)
		return
	}

	respondSuccess(w, http.StatusOK, models.PresenceStatus{
		UserID: userID,
		Online: h.notifier.IsUserOnline(userID),
	})
}
