// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/relay"
)

// wireEvent mirrors the outbound envelope for test decoding.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + token

	header := http.Header{}
	header.Set("Origin", "http://example.com")

	conn, resp, err := gws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads the next event, skipping nothing, with a deadline.
func readEvent(t *testing.T, conn *gws.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketLifecycle(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token := env.token(t, "alice", "user")
	conn := dialWS(t, srv, token)

	// Presence reflects the live connection once the hub registers it
	require.Eventually(t, func() bool {
		return env.registry.IsOnline("alice")
	}, time.Second, 10*time.Millisecond)

	// Application-level ping round-trips through the dispatcher
	require.NoError(t, conn.WriteJSON(map[string]any{"event": relay.EventPing}))
	ev := readEvent(t, conn)
	assert.Equal(t, relay.EventPong, ev.Event)

	_ = conn.Close()
	require.Eventually(t, func() bool {
		return !env.registry.IsOnline("alice")
	}, time.Second, 10*time.Millisecond)
}

func TestNotificationReachesAllConnectionsOfUser(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token := env.token(t, "alice", "user")
	c1 := dialWS(t, srv, token)
	c2 := dialWS(t, srv, token)

	otherToken := env.token(t, "bob", "user")
	other := dialWS(t, srv, otherToken)

	require.Eventually(t, func() bool {
		return env.registry.ConnectionCount("alice") == 2 && env.registry.IsOnline("bob")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, env.notifier.NotifyUser("alice", "Order shipped", "On its way", nil))

	for _, conn := range []*gws.Conn{c1, c2} {
		ev := readEvent(t, conn)
		assert.Equal(t, relay.EventNewNotification, ev.Event)
	}

	// bob must not receive alice's notification; expect a read timeout
	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var ev wireEvent
	err := other.ReadJSON(&ev)
	assert.Error(t, err)
}

func TestEventLimiterEmitsErrorWithoutDispatch(t *testing.T) {
	env := setupEnvWithRelay(t, config.RelayConfig{EventsPerSecond: 0.1, EventBurst: 1})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token := env.token(t, "alice", "user")
	conn := dialWS(t, srv, token)

	require.Eventually(t, func() bool {
		return env.registry.IsOnline("alice")
	}, time.Second, 10*time.Millisecond)

	// Burst of one: the first ping dispatches, the second is throttled
	require.NoError(t, conn.WriteJSON(map[string]any{"event": relay.EventPing}))
	require.NoError(t, conn.WriteJSON(map[string]any{"event": relay.EventPing}))

	first := readEvent(t, conn)
	require.Equal(t, relay.EventPong, first.Event)

	second := readEvent(t, conn)
	require.Equal(t, relay.EventError, second.Event)

	var errPayload relay.ErrorPayload
	require.NoError(t, json.Unmarshal(second.Data, &errPayload))
	assert.Equal(t, relay.CodeRateLimited, errPayload.Code)
}

func TestChatFlowOverWebSocket(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token := env.token(t, "alice", "user")
	conn := dialWS(t, srv, token)

	require.Eventually(t, func() bool {
		return env.registry.IsOnline("alice")
	}, time.Second, 10*time.Millisecond)

	// Create a conversation; the connection auto-joins its group
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": relay.EventCreateConversation,
		"data":  map[string]string{"title": "order help"},
	}))
	created := readEvent(t, conn)
	require.Equal(t, relay.EventCreated, created.Event)

	var payload relay.JoinedPayload
	require.NoError(t, json.Unmarshal(created.Data, &payload))
	convID := payload.Conversation.ID

	// No assistant is wired in this environment, so send-message relays just
	// the user message back through the conversation group.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": relay.EventSendMessage,
		"data":  map[string]string{"conversation_id": convID.String(), "content": "where is my order?"},
	}))
	msg := readEvent(t, conn)
	require.Equal(t, relay.EventMessage, msg.Event)

	// History returns the persisted message
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": relay.EventFetchHistory,
		"data":  map[string]string{"conversation_id": convID.String()},
	}))
	hist := readEvent(t, conn)
	require.Equal(t, relay.EventHistory, hist.Event)

	var history relay.HistoryPayload
	require.NoError(t, json.Unmarshal(hist.Data, &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "where is my order?", history.Messages[0].Content)
}
