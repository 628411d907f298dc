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

// NotifyUser pushes a notification to one user. The notification is stored
// for unread tracking and delivered immediately to any live connections;
// an offline target still accepts the notification.
func (h *Handler) NotifyUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "MISSING_USER_ID", "user id is required", nil)
		return
	}

	var req models.NotifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.notifier.NotifyUser(userID, req.Title, req.Body, req.Data); err != nil {
		respondError(w, http.StatusInternalServerError, "NOTIFY_FAILED", "could not deliver notification", err)
		return
	}

	respondSuccess(w, http.StatusAccepted, map[string]any{
		"user_id":   userID,
		"delivered": h.notifier.IsUserOnline(userID),
	})
}

// NotifyBroadcast pushes a transient notification to every connected client.
// Restricted to the admin role by the router.
func (h *Handler) NotifyBroadcast(w http.ResponseWriter, r *http.Request) {
	var req models.NotifyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.notifier.BroadcastAll(req.Title, req.Body, req.Data)

	respondSuccess(w, http.StatusAccepted, map[string]any{
		"recipients": h.hub.ClientCount(),
	})
}
