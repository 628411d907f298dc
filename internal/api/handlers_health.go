// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// Health reports process health and basic relay statistics.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"connections":    h.hub.ClientCount(),
		"online_users":   len(h.notifier.OnlineUsers()),
	})
}

// HealthLive is the liveness probe: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: the hub is accepting connections.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "hub not initialized", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}
