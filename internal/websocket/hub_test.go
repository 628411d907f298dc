// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/presence"
	"github.com/parleyhq/parley/internal/relay"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub for testing; it stops with the test.
func setupHub(t *testing.T) (*Hub, *presence.Registry) {
	t.Helper()
	registry := presence.NewRegistry()
	hub := NewHub(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(10 * time.Millisecond)
	return hub, registry
}

// createTestClient creates a client without a real network connection.
func createTestClient(hub *Hub, userID string) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: models.Identity{UserID: userID, Role: "user"},
		hub:      hub,
		send:     make(chan Message, 256),
	}
}

// registerClient registers a client and waits for the hub loop to process it.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

// drain collects all currently queued messages for a client.
func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(presence.NewRegistry())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"groups map", hub.groups != nil, "groups map not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"done channel", hub.done != nil, "done channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestRegisterUpdatesPresence(t *testing.T) {
	hub, registry := setupHub(t)

	client := createTestClient(hub, "alice")
	registerClient(hub, client)

	if !registry.IsOnline("alice") {
		t.Error("alice should be online after register")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.GroupSize(relay.UserGroup("alice")) != 1 {
		t.Error("client should auto-join its identity group")
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)

	if registry.IsOnline("alice") {
		t.Error("alice should be offline after unregister")
	}
	if hub.GroupSize(relay.UserGroup("alice")) != 0 {
		t.Error("identity group should be empty after unregister")
	}
}

func TestIdentityGroupDeliversToAllConnections(t *testing.T) {
	hub, _ := setupHub(t)

	// Same user, two tabs
	c1 := createTestClient(hub, "alice")
	c2 := createTestClient(hub, "alice")
	other := createTestClient(hub, "bob")
	registerClient(hub, c1)
	registerClient(hub, c2)
	registerClient(hub, other)

	hub.EmitToGroup(relay.UserGroup("alice"), "new-notification", map[string]string{"title": "hi"})

	if got := len(drain(c1)); got != 1 {
		t.Errorf("c1 expected 1 message, got %d", got)
	}
	if got := len(drain(c2)); got != 1 {
		t.Errorf("c2 expected 1 message, got %d", got)
	}
	if got := len(drain(other)); got != 0 {
		t.Errorf("bob expected no messages, got %d", got)
	}
}

func TestEmitToOthersExcludesSender(t *testing.T) {
	hub, _ := setupHub(t)

	c1 := createTestClient(hub, "alice")
	c2 := createTestClient(hub, "alice")
	registerClient(hub, c1)
	registerClient(hub, c2)

	group := "conv:" + uuid.NewString()
	hub.Join(c1.id, group)
	hub.Join(c2.id, group)

	hub.EmitToOthers(group, c1.id, "typing", nil)

	if len(drain(c1)) != 0 {
		t.Error("sender should not receive its own typing relay")
	}
	if len(drain(c2)) != 1 {
		t.Error("other member should receive the typing relay")
	}
}

func TestEmitToConnTargetsOneConnection(t *testing.T) {
	hub, _ := setupHub(t)

	c1 := createTestClient(hub, "alice")
	c2 := createTestClient(hub, "alice")
	registerClient(hub, c1)
	registerClient(hub, c2)

	hub.EmitToConn(c1.id, "joined", nil)

	if len(drain(c1)) != 1 {
		t.Error("targeted connection should receive the event")
	}
	if len(drain(c2)) != 0 {
		t.Error("sibling connection should not receive the event")
	}

	// Unknown connection is a silent no-op
	hub.EmitToConn("missing", "joined", nil)
}

func TestEmitToAll(t *testing.T) {
	hub, _ := setupHub(t)

	clients := []*Client{
		createTestClient(hub, "alice"),
		createTestClient(hub, "bob"),
		createTestClient(hub, "carol"),
	}
	for _, c := range clients {
		registerClient(hub, c)
	}

	hub.EmitToAll("broadcast-notification", map[string]string{"title": "maintenance"})

	for i, c := range clients {
		if len(drain(c)) != 1 {
			t.Errorf("client %d missed the broadcast", i)
		}
	}
}

func TestLeaveDropsEmptyGroup(t *testing.T) {
	hub, _ := setupHub(t)

	c1 := createTestClient(hub, "alice")
	registerClient(hub, c1)

	group := "conv:" + uuid.NewString()
	hub.Join(c1.id, group)
	if hub.GroupSize(group) != 1 {
		t.Fatal("expected group membership after join")
	}

	hub.Leave(c1.id, group)
	if hub.GroupSize(group) != 0 {
		t.Error("group should be empty after leave")
	}

	// Leaving again is harmless
	hub.Leave(c1.id, group)
}

func TestJoinUnknownConnectionIgnored(t *testing.T) {
	hub, _ := setupHub(t)

	hub.Join("missing", "conv:whatever")
	if hub.GroupSize("conv:whatever") != 0 {
		t.Error("unknown connection must not create group membership")
	}
}

func TestSlowClientRemoved(t *testing.T) {
	hub, registry := setupHub(t)

	slow := createTestClient(hub, "alice")
	slow.send = make(chan Message) // unbuffered, nobody reading
	registerClient(hub, slow)

	hub.EmitToGroup(relay.UserGroup("alice"), "message", "too fast")

	if hub.ClientCount() != 0 {
		t.Error("slow client should be removed from the hub")
	}
	if registry.IsOnline("alice") {
		t.Error("slow client removal should update presence")
	}
}

func TestEmitAfterSlowDropDoesNotPanic(t *testing.T) {
	hub, registry := setupHub(t)

	slow := createTestClient(hub, "alice")
	slow.send = make(chan Message) // unbuffered, nobody reading
	registerClient(hub, slow)

	// First emit drops the slow client and closes its send channel
	hub.EmitToConn(slow.id, "message", "first")
	if hub.ClientCount() != 0 {
		t.Fatal("slow client should be dropped")
	}

	// The rate-limit error path emits to the same connection id while its
	// read pump is still running. With the channel closed this must be a
	// silent no-op, never a send on a closed channel.
	hub.EmitToConn(slow.id, relay.EventError, relay.ErrorPayload{
		Code:    relay.CodeRateLimited,
		Message: "too many events",
	})
	hub.EmitToGroup(relay.UserGroup("alice"), "message", "second")

	if registry.IsOnline("alice") {
		t.Error("dropped client should be offline")
	}
}

func TestRegisterAfterShutdownReturnsFalse(t *testing.T) {
	registry := presence.NewRegistry()
	hub := NewHub(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancel")
	}

	late := createTestClient(hub, "alice")
	registered := make(chan bool, 1)
	go func() { registered <- hub.RegisterClient(late) }()

	select {
	case ok := <-registered:
		if ok {
			t.Error("register must fail once the hub has stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("RegisterClient blocked on a stopped hub")
	}

	// The read pump's unregister path must not block either
	finished := make(chan struct{})
	go func() {
		hub.unregisterClient(late)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("unregisterClient blocked on a stopped hub")
	}
}

func TestShutdownClosesAllClients(t *testing.T) {
	registry := presence.NewRegistry()
	hub := NewHub(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	c1 := createTestClient(hub, "alice")
	registerClient(hub, c1)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancel")
	}

	// Send channel must be closed
	select {
	case _, ok := <-c1.send:
		if ok {
			t.Error("expected closed send channel")
		}
	default:
		t.Error("send channel should be closed, not empty-open")
	}

	if registry.IsOnline("alice") {
		t.Error("shutdown should clear presence")
	}
	if hub.ClientCount() != 0 {
		t.Error("shutdown should clear clients")
	}
}
