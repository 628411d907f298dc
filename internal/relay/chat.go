// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package relay

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/ai"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/validation"
)

// Dispatcher routes inbound connection events to their handlers. One
// Dispatcher serves all connections; per-connection state (group membership)
// lives in the transport.
//
// Failure policy: nothing a handler does may crash the connection. Store and
// assistant failures are logged and reported to the requesting connection
// only, as an error event. Group peers never see another member's error.
type Dispatcher struct {
	transport Transport
	chats     ChatStore
	notifs    NotificationStore
	responder ai.Responder
}

// NewDispatcher wires a Dispatcher. responder may be nil, in which case
// send-message persists and relays the user message without producing an
// assistant reply.
func NewDispatcher(transport Transport, chats ChatStore, notifs NotificationStore, responder ai.Responder) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		chats:     chats,
		notifs:    notifs,
		responder: responder,
	}
}

// HandleEvent dispatches one inbound event. The transport guarantees
// sequential invocation per connection, which is what makes the send-message
// flow (persist, relay, await assistant) ordered within a connection.
func (d *Dispatcher) HandleEvent(ctx context.Context, conn Conn, event string, data json.RawMessage) {
	metrics.WSEventsTotal.WithLabelValues(event).Inc()

	switch event {
	case EventJoinConversation:
		d.handleJoin(conn, data)
	case EventLeaveConversation:
		d.handleLeave(conn, data)
	case EventSendMessage:
		d.handleSendMessage(ctx, conn, data)
	case EventTyping:
		d.handleTyping(conn, data)
	case EventFetchHistory:
		d.handleFetchHistory(conn, data)
	case EventCreateConversation:
		d.handleCreate(conn, data)
	case EventDeleteConversation:
		d.handleDelete(conn, data)
	case EventMarkRead:
		d.handleMarkRead(conn, data)
	case EventMarkAllRead:
		d.handleMarkAllRead(conn)
	case EventFetchUnreadCount:
		d.handleUnreadCount(conn)
	case EventPing:
		d.transport.EmitToConn(conn.ID(), EventPong, nil)
	default:
		d.emitError(conn, CodeUnknownEvent, "unknown event: "+event)
	}
}

// decode unmarshals and validates an inbound payload. On failure it reports
// BAD_REQUEST to the sender and returns false.
func (d *Dispatcher) decode(conn Conn, data json.RawMessage, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		d.emitError(conn, CodeBadRequest, "malformed payload")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		d.emitError(conn, CodeBadRequest, err.Error())
		return false
	}
	return true
}

func (d *Dispatcher) emitError(conn Conn, code, message string) {
	metrics.WSEventErrors.WithLabelValues(code).Inc()
	d.transport.EmitToConn(conn.ID(), EventError, ErrorPayload{Code: code, Message: message})
}

// emitStoreError maps store failures onto wire error codes. Anything other
// than a not-found is logged and reported as a generic internal error.
func (d *Dispatcher) emitStoreError(conn Conn, event string, err error) {
	switch {
	case errors.Is(err, store.ErrConversationNotFound):
		d.emitError(conn, CodeConversationNotFound, "conversation not found")
	case errors.Is(err, store.ErrNotificationNotFound):
		d.emitError(conn, CodeNotificationNotFound, "notification not found")
	default:
		logging.Error().Err(err).Str("event", event).Str("user_id", conn.Identity().UserID).Msg("Store operation failed")
		d.emitError(conn, CodeInternalError, "internal error")
	}
}

func (d *Dispatcher) handleJoin(conn Conn, data json.RawMessage) {
	var p joinConversationPayload
	if !d.decode(conn, data, &p) {
		return
	}
	convID := uuid.MustParse(p.ConversationID)
	ident := conn.Identity()

	conv, err := d.chats.GetConversation(ident.UserID, convID)
	if err != nil {
		d.emitStoreError(conn, EventJoinConversation, err)
		return
	}

	d.transport.Join(conn.ID(), ConversationGroup(convID))
	d.transport.EmitToConn(conn.ID(), EventJoined, JoinedPayload{Conversation: conv})
}

func (d *Dispatcher) handleLeave(conn Conn, data json.RawMessage) {
	var p leaveConversationPayload
	if !d.decode(conn, data, &p) {
		return
	}
	d.transport.Leave(conn.ID(), ConversationGroup(uuid.MustParse(p.ConversationID)))
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, conn Conn, data json.RawMessage) {
	var p sendMessagePayload
	if !d.decode(conn, data, &p) {
		return
	}
	convID := uuid.MustParse(p.ConversationID)
	ident := conn.Identity()

	// Ownership is re-checked per message, never cached from join time.
	if _, err := d.chats.GetConversation(ident.UserID, convID); err != nil {
		d.emitStoreError(conn, EventSendMessage, err)
		return
	}

	userMsg, err := d.chats.AppendMessage(convID, models.RoleUser, p.Content, p.Attachments)
	if err != nil {
		d.emitStoreError(conn, EventSendMessage, err)
		return
	}

	group := ConversationGroup(convID)
	d.transport.EmitToGroup(group, EventMessage, userMsg)

	if d.responder == nil {
		return
	}

	// Assistant typing indicator goes to the sender only; group members see
	// the reply when it lands.
	d.transport.EmitToConn(conn.ID(), EventTyping, TypingEvent{ConversationID: convID, Typing: true})
	defer d.transport.EmitToConn(conn.ID(), EventTyping, TypingEvent{ConversationID: convID, Typing: false})

	history, err := d.chats.ListMessages(ident.UserID, convID)
	if err != nil {
		d.emitStoreError(conn, EventSendMessage, err)
		return
	}

	reply, err := d.responder.Respond(ctx, history)
	if err != nil {
		logging.Warn().Err(err).Str("conversation_id", convID.String()).Msg("Assistant reply failed")
		if errors.Is(err, ai.ErrUnavailable) {
			d.emitError(conn, CodeAssistantUnavailable, "assistant temporarily unavailable")
		} else {
			d.emitError(conn, CodeInternalError, "assistant reply failed")
		}
		return
	}

	asstMsg, err := d.chats.AppendMessage(convID, models.RoleAssistant, reply, nil)
	if err != nil {
		d.emitStoreError(conn, EventSendMessage, err)
		return
	}
	d.transport.EmitToGroup(group, EventMessage, asstMsg)
}

func (d *Dispatcher) handleTyping(conn Conn, data json.RawMessage) {
	var p typingPayload
	if !d.decode(conn, data, &p) {
		return
	}
	convID := uuid.MustParse(p.ConversationID)

	// Member typing indicators go to every other group member, not back to
	// the sender.
	d.transport.EmitToOthers(ConversationGroup(convID), conn.ID(), EventTyping, TypingEvent{
		ConversationID: convID,
		UserID:         conn.Identity().UserID,
		Typing:         p.Typing,
	})
}

func (d *Dispatcher) handleFetchHistory(conn Conn, data json.RawMessage) {
	var p fetchHistoryPayload
	if !d.decode(conn, data, &p) {
		return
	}
	convID := uuid.MustParse(p.ConversationID)

	// Unauthorized history requests get the same explicit error as join,
	// never a silent empty list.
	msgs, err := d.chats.ListMessages(conn.Identity().UserID, convID)
	if err != nil {
		d.emitStoreError(conn, EventFetchHistory, err)
		return
	}
	d.transport.EmitToConn(conn.ID(), EventHistory, HistoryPayload{ConversationID: convID, Messages: msgs})
}

func (d *Dispatcher) handleCreate(conn Conn, data json.RawMessage) {
	var p createConversationPayload
	if len(data) > 0 && !d.decode(conn, data, &p) {
		return
	}

	conv, err := d.chats.CreateConversation(conn.Identity().UserID, p.Title)
	if err != nil {
		d.emitStoreError(conn, EventCreateConversation, err)
		return
	}

	// Auto-join the creating connection
	d.transport.Join(conn.ID(), ConversationGroup(conv.ID))
	d.transport.EmitToConn(conn.ID(), EventCreated, JoinedPayload{Conversation: conv})
}

func (d *Dispatcher) handleDelete(conn Conn, data json.RawMessage) {
	var p deleteConversationPayload
	if !d.decode(conn, data, &p) {
		return
	}
	convID := uuid.MustParse(p.ConversationID)

	// Deletion is confirmed whether or not a record existed; only real store
	// failures surface.
	err := d.chats.DeleteConversation(conn.Identity().UserID, convID)
	if err != nil && !errors.Is(err, store.ErrConversationNotFound) {
		d.emitStoreError(conn, EventDeleteConversation, err)
		return
	}

	d.transport.Leave(conn.ID(), ConversationGroup(convID))
	d.transport.EmitToConn(conn.ID(), EventDeleted, DeletedPayload{ConversationID: convID})
}

func (d *Dispatcher) handleMarkRead(conn Conn, data json.RawMessage) {
	var p markReadPayload
	if !d.decode(conn, data, &p) {
		return
	}
	notifID := uuid.MustParse(p.NotificationID)
	ident := conn.Identity()

	if err := d.notifs.MarkNotificationRead(ident.UserID, notifID); err != nil {
		d.emitStoreError(conn, EventMarkRead, err)
		return
	}

	count, err := d.notifs.UnreadCount(ident.UserID)
	if err != nil {
		d.emitStoreError(conn, EventMarkRead, err)
		return
	}

	// All of the user's connections learn about the read, so badge counts
	// stay in sync across tabs.
	d.transport.EmitToGroup(UserGroup(ident.UserID), EventNotificationRead, NotificationReadPayload{
		NotificationID: notifID,
		UnreadCount:    count,
	})
}

func (d *Dispatcher) handleMarkAllRead(conn Conn) {
	ident := conn.Identity()

	marked, err := d.notifs.MarkAllRead(ident.UserID)
	if err != nil {
		d.emitStoreError(conn, EventMarkAllRead, err)
		return
	}
	d.transport.EmitToGroup(UserGroup(ident.UserID), EventAllRead, AllReadPayload{Marked: marked})
}

func (d *Dispatcher) handleUnreadCount(conn Conn) {
	count, err := d.notifs.UnreadCount(conn.Identity().UserID)
	if err != nil {
		d.emitStoreError(conn, EventFetchUnreadCount, err)
		return
	}
	d.transport.EmitToConn(conn.ID(), EventUnreadCount, UnreadCountPayload{Count: count})
}
