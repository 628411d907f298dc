// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package relay translates inbound connection events into persistence calls
// and outbound group broadcasts. It is transport-agnostic: all delivery goes
// through the Transport interface, implemented by the websocket hub in
// production and by fakes in tests.
package relay

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/models"
)

// Transport is the group-messaging primitive the relay builds on. Group and
// connection ids are opaque strings; payloads are marshaled by the transport
// into the wire envelope.
//
// All methods are best-effort and non-blocking: emitting to an empty group or
// an unknown connection is a no-op, never an error.
type Transport interface {
	// Join adds a connection to a group. Idempotent.
	Join(connID, group string)
	// Leave removes a connection from a group. No-op if not a member.
	Leave(connID, group string)
	// EmitToGroup delivers an event to every connection in a group.
	EmitToGroup(group, event string, payload any)
	// EmitToOthers delivers an event to every group member except one.
	EmitToOthers(group, exceptConnID, event string, payload any)
	// EmitToConn delivers an event to a single connection.
	EmitToConn(connID, event string, payload any)
	// EmitToAll delivers an event to every connected client.
	EmitToAll(event string, payload any)
}

// Conn is the relay's view of one live connection.
type Conn interface {
	ID() string
	Identity() models.Identity
}

// EventHandler consumes inbound events from a connection. The transport calls
// HandleEvent sequentially for a given connection, in arrival order, so side
// effects of one event (including assistant replies) complete before the next
// event from the same connection is processed.
type EventHandler interface {
	HandleEvent(ctx context.Context, conn Conn, event string, data json.RawMessage)
}

// UserGroup names the identity-scoped group holding every live connection
// for one user.
func UserGroup(userID string) string {
	return "user:" + userID
}

// ConversationGroup names the group of connections joined to a conversation.
func ConversationGroup(convID uuid.UUID) string {
	return "conv:" + convID.String()
}

// ChatStore is the persistence surface the chat dispatcher needs.
type ChatStore interface {
	CreateConversation(ownerID, title string) (*models.Conversation, error)
	GetConversation(ownerID string, convID uuid.UUID) (*models.Conversation, error)
	DeleteConversation(ownerID string, convID uuid.UUID) error
	AppendMessage(convID uuid.UUID, role, content string, attachments []string) (*models.ChatMessage, error)
	ListMessages(ownerID string, convID uuid.UUID) ([]*models.ChatMessage, error)
}

// NotificationStore is the persistence surface for notification state.
type NotificationStore interface {
	SaveNotification(userID, title, body string, data map[string]string) (*models.Notification, error)
	MarkNotificationRead(userID string, notifID uuid.UUID) error
	MarkAllRead(userID string) (int, error)
	UnreadCount(userID string) (int, error)
}
