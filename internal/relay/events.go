// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package relay

import (
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/models"
)

// Inbound event names. EventTyping travels both directions under the same
// name: inbound from the typing member, outbound to the rest of the group.
const (
	EventJoinConversation   = "join-conversation"
	EventLeaveConversation  = "leave-conversation"
	EventSendMessage        = "send-message"
	EventTyping             = "typing"
	EventFetchHistory       = "fetch-history"
	EventCreateConversation = "create-conversation"
	EventDeleteConversation = "delete-conversation"
	EventMarkRead           = "mark-notification-read"
	EventMarkAllRead        = "mark-all-read"
	EventFetchUnreadCount   = "fetch-unread-count"
	EventPing               = "ping"
)

// Outbound event names.
const (
	EventJoined                = "joined"
	EventError                 = "error"
	EventMessage               = "message"
	EventHistory               = "history"
	EventCreated               = "created"
	EventDeleted               = "deleted"
	EventNewNotification       = "new-notification"
	EventBroadcastNotification = "broadcast-notification"
	EventNotificationRead      = "notification-read"
	EventAllRead               = "all-read"
	EventUnreadCount           = "unread-count"
	EventPong                  = "pong"
)

// Error codes carried in error events.
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodeAssistantUnavailable = "ASSISTANT_UNAVAILABLE"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeUnknownEvent         = "UNKNOWN_EVENT"
	CodeRateLimited          = "RATE_LIMITED"
)

// Inbound payloads. Tags drive struct validation before any handler logic.

type joinConversationPayload struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

type leaveConversationPayload struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

type sendMessagePayload struct {
	ConversationID string   `json:"conversation_id" validate:"required,uuid"`
	Content        string   `json:"content" validate:"required,max=8192"`
	Attachments    []string `json:"attachments" validate:"omitempty,max=10,dive,max=2048"`
}

type typingPayload struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Typing         bool   `json:"typing"`
}

type fetchHistoryPayload struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

type createConversationPayload struct {
	Title string `json:"title" validate:"omitempty,max=256"`
}

type deleteConversationPayload struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

type markReadPayload struct {
	NotificationID string `json:"notification_id" validate:"required,uuid"`
}

// Outbound payloads.

// ErrorPayload is the body of every error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinedPayload confirms a successful conversation join.
type JoinedPayload struct {
	Conversation *models.Conversation `json:"conversation"`
}

// TypingEvent is both the assistant typing indicator sent to the requester
// and the relayed member typing indicator.
type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         string    `json:"user_id,omitempty"`
	Typing         bool      `json:"typing"`
}

// HistoryPayload carries a conversation's messages, oldest first.
type HistoryPayload struct {
	ConversationID uuid.UUID             `json:"conversation_id"`
	Messages       []*models.ChatMessage `json:"messages"`
}

// DeletedPayload confirms a conversation deletion.
type DeletedPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

// NotificationReadPayload reports one notification marked read, with the
// user's remaining unread count.
type NotificationReadPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UnreadCount    int       `json:"unread_count"`
}

// AllReadPayload reports a bulk mark-all-read.
type AllReadPayload struct {
	Marked int `json:"marked"`
}

// UnreadCountPayload carries the current unread notification count.
type UnreadCountPayload struct {
	Count int `json:"count"`
}

// BroadcastPayload is the body of broadcast and targeted notifications.
type BroadcastPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}
