// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package models defines the shared data types exchanged between the relay,
// the store, and the HTTP API.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Every persisted conversation message carries exactly one.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Identity is the authenticated principal attached to a connection at
// admission time. Immutable for the connection's lifetime.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

// Conversation is a chat session owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one persisted message within a conversation.
type ChatMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Notification is a payload delivered to a user's identity group and
// persisted for unread tracking.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
