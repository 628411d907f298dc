// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package models

import (
	"time"
)

// APIResponse is the standardized envelope for all HTTP endpoints.
//
// Status is "success" or "error". Data carries the payload for successful
// responses; Error is populated only when Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMs int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=512"`
}

// LoginResponse is the payload returned on successful authentication.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotifyRequest is the request body for the notification push endpoints.
type NotifyRequest struct {
	Title string            `json:"title" validate:"required,max=256"`
	Body  string            `json:"body" validate:"max=4096"`
	Data  map[string]string `json:"data,omitempty"`
}

// PresenceResponse lists currently online user ids.
type PresenceResponse struct {
	Online []string `json:"online"`
	Count  int      `json:"count"`
}

// PresenceStatus reports a single user's presence.
type PresenceStatus struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}
