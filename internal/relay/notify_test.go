// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package relay

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/presence"
	"github.com/parleyhq/parley/internal/store"
)

func setupNotifier(t *testing.T) (*Notifier, *fakeTransport, *store.Store, *presence.Registry) {
	t.Helper()
	s, err := store.Open(config.StoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tr := newFakeTransport()
	reg := presence.NewRegistry()
	return NewNotifier(tr, s, reg), tr, s, reg
}

func TestNotifyUserPersistsAndEmits(t *testing.T) {
	n, tr, s, _ := setupNotifier(t)

	err := n.NotifyUser("alice", "Order shipped", "On its way", map[string]string{"order": "42"})
	require.NoError(t, err)

	events := tr.byEvent(EventNewNotification)
	require.Len(t, events, 1)
	assert.Equal(t, "group", events[0].kind)
	assert.Equal(t, UserGroup("alice"), events[0].target)

	notif := events[0].data.(*models.Notification)
	assert.Equal(t, "Order shipped", notif.Title)
	assert.False(t, notif.Read)

	// Stored even though nobody may be listening
	count, err := s.UnreadCount("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotifyUserOfflineIsSilent(t *testing.T) {
	n, _, s, reg := setupNotifier(t)

	// No connections registered for bob
	assert.False(t, reg.IsOnline("bob"))
	require.NoError(t, n.NotifyUser("bob", "Welcome", "Hello", nil))

	// The unread count accrues for the next session
	count, err := s.UnreadCount("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotifyUsersPartialDelivery(t *testing.T) {
	n, tr, _, _ := setupNotifier(t)

	n.NotifyUsers([]string{"alice", "bob", "carol"}, "Sale", "20% off", nil)

	events := tr.byEvent(EventNewNotification)
	require.Len(t, events, 3)
	targets := []string{events[0].target, events[1].target, events[2].target}
	assert.ElementsMatch(t, []string{UserGroup("alice"), UserGroup("bob"), UserGroup("carol")}, targets)
}

func TestBroadcastAll(t *testing.T) {
	n, tr, s, _ := setupNotifier(t)

	n.BroadcastAll("Maintenance", "Back at midnight", nil)

	events := tr.byEvent(EventBroadcastNotification)
	require.Len(t, events, 1)
	assert.Equal(t, "all", events[0].kind)
	assert.Equal(t, "Maintenance", events[0].data.(BroadcastPayload).Title)

	// Broadcasts are transient, never stored per user
	count, err := s.UnreadCount("alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSendToUserAndSendToAll(t *testing.T) {
	n, tr, _, _ := setupNotifier(t)

	n.SendToUser("alice", "order-updated", map[string]string{"status": "shipped"})
	n.SendToAll("system", "restarting")

	userEvents := tr.byEvent("order-updated")
	require.Len(t, userEvents, 1)
	assert.Equal(t, UserGroup("alice"), userEvents[0].target)

	allEvents := tr.byEvent("system")
	require.Len(t, allEvents, 1)
	assert.Equal(t, "all", allEvents[0].kind)
}

func TestPresenceQueries(t *testing.T) {
	n, _, _, reg := setupNotifier(t)

	assert.False(t, n.IsUserOnline("alice"))
	assert.Empty(t, n.OnlineUsers())

	reg.AddConnection("alice", "c1")
	reg.AddConnection("bob", "c2")

	assert.True(t, n.IsUserOnline("alice"))
	assert.Equal(t, []string{"alice", "bob"}, n.OnlineUsers())
}

func TestMarkNotificationReadFlow(t *testing.T) {
	d, tr, s := setupDispatcher(t, nil)
	conn := &fakeConn{id: "c1", ident: models.Identity{UserID: "alice"}}

	n1, err := s.SaveNotification("alice", "a", "b", nil)
	require.NoError(t, err)
	_, err = s.SaveNotification("alice", "c", "d", nil)
	require.NoError(t, err)

	d.HandleEvent(context.Background(), conn, EventMarkRead,
		raw(t, map[string]string{"notification_id": n1.ID.String()}))

	events := tr.byEvent(EventNotificationRead)
	require.Len(t, events, 1)
	// Read state syncs to every tab of the user
	assert.Equal(t, UserGroup("alice"), events[0].target)

	payload := events[0].data.(NotificationReadPayload)
	assert.Equal(t, n1.ID, payload.NotificationID)
	assert.Equal(t, 1, payload.UnreadCount)
}

func TestMarkUnknownNotification(t *testing.T) {
	d, tr, _ := setupDispatcher(t, nil)
	conn := &fakeConn{id: "c1", ident: models.Identity{UserID: "alice"}}

	d.HandleEvent(context.Background(), conn, EventMarkRead,
		raw(t, map[string]string{"notification_id": uuid.NewString()}))

	errs := tr.byEvent(EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotificationNotFound, errs[0].data.(ErrorPayload).Code)
}

func TestMarkAllReadFlow(t *testing.T) {
	d, tr, s := setupDispatcher(t, nil)
	conn := &fakeConn{id: "c1", ident: models.Identity{UserID: "alice"}}

	for i := 0; i < 2; i++ {
		_, err := s.SaveNotification("alice", "t", "b", nil)
		require.NoError(t, err)
	}

	d.HandleEvent(context.Background(), conn, EventMarkAllRead, nil)

	events := tr.byEvent(EventAllRead)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].data.(AllReadPayload).Marked)
}

func TestFetchUnreadCount(t *testing.T) {
	d, tr, s := setupDispatcher(t, nil)
	conn := &fakeConn{id: "c1", ident: models.Identity{UserID: "alice"}}

	_, err := s.SaveNotification("alice", "t", "b", nil)
	require.NoError(t, err)
	_, err = s.SaveNotification("bob", "t", "b", nil)
	require.NoError(t, err)

	d.HandleEvent(context.Background(), conn, EventFetchUnreadCount, nil)

	events := tr.byEvent(EventUnreadCount)
	require.Len(t, events, 1)
	assert.Equal(t, "c1", events[0].target)
	assert.Equal(t, 1, events[0].data.(UnreadCountPayload).Count)
}
