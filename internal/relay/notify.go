// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package relay

import (
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/presence"
)

// Notifier delivers notifications to users and exposes the process-wide
// presence and send operations consumed by the rest of the application
// (order workflows, admin tooling, the HTTP notify endpoints).
//
// Targeted notifications are persisted before emission so unread counts
// survive the user being offline; the emission itself is fire-and-forget.
type Notifier struct {
	transport Transport
	store     NotificationStore
	registry  *presence.Registry
}

// NewNotifier wires a Notifier.
func NewNotifier(transport Transport, store NotificationStore, registry *presence.Registry) *Notifier {
	return &Notifier{
		transport: transport,
		store:     store,
		registry:  registry,
	}
}

// NotifyUser persists a notification for userID and emits it to every live
// connection for that user. Delivery to an offline user is a silent no-op;
// the stored notification is picked up through the unread count on next
// connect.
func (n *Notifier) NotifyUser(userID, title, body string, data map[string]string) error {
	notif, err := n.store.SaveNotification(userID, title, body, data)
	if err != nil {
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("user").Inc()

	n.transport.EmitToGroup(UserGroup(userID), EventNewNotification, notif)
	return nil
}

// NotifyUsers applies NotifyUser to each id independently. Partial delivery
// is expected; per-user persistence failures are logged and skipped rather
// than aborting the batch.
func (n *Notifier) NotifyUsers(userIDs []string, title, body string, data map[string]string) {
	for _, id := range userIDs {
		if err := n.NotifyUser(id, title, body, data); err != nil {
			logging.Error().Err(err).Str("user_id", id).Msg("Notification delivery failed")
		}
	}
}

// BroadcastAll emits a notification to every connected client, independent of
// identity grouping. Broadcasts are transient and not persisted per user.
func (n *Notifier) BroadcastAll(title, body string, data map[string]string) {
	metrics.NotificationsTotal.WithLabelValues("broadcast").Inc()
	n.transport.EmitToAll(EventBroadcastNotification, BroadcastPayload{Title: title, Body: body, Data: data})
}

// SendToUser emits an arbitrary event to every live connection for userID.
func (n *Notifier) SendToUser(userID, event string, payload any) {
	n.transport.EmitToGroup(UserGroup(userID), event, payload)
}

// SendToAll emits an arbitrary event to every connected client.
func (n *Notifier) SendToAll(event string, payload any) {
	n.transport.EmitToAll(event, payload)
}

// IsUserOnline reports whether userID has at least one live connection.
func (n *Notifier) IsUserOnline(userID string) bool {
	return n.registry.IsOnline(userID)
}

// OnlineUsers lists the ids of all currently connected users.
func (n *Notifier) OnlineUsers() []string {
	return n.registry.OnlineUsers()
}
