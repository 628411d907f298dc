// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

// Package websocket carries the realtime transport: a hub owning all live
// client connections and their group memberships, and a per-connection
// read/write pump pair over gorilla/websocket.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/presence"
	"github.com/parleyhq/parley/internal/relay"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message is the outbound wire envelope.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and their group memberships, and
// implements the relay's transport surface.
//
// Lifecycle events (register/unregister) flow through channels into the run
// loop; emits are called directly from handler goroutines and synchronize on
// the mutex. On register a client joins its identity-scoped group and enters
// the presence registry; on unregister both are undone.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	registry *presence.Registry

	// done is closed when the run loop exits; lifecycle channel senders
	// select against it so they never block on a stopped hub.
	done chan struct{}

	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
}

// NewHub creates a hub backed by the given presence registry.
func NewHub(registry *presence.Registry) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		registry:   registry,
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
	}
}

// RunWithContext runs the hub's lifecycle loop until ctx is canceled, then
// closes all clients and returns ctx.Err(). Designed for suture supervision.
//
// Selection is priority ordered so behavior stays predictable when multiple
// channels are ready: shutdown first, then lifecycle events.
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer close(h.done)

	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (blocking wait)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)
		}
	}
}

// RegisterClient hands an admitted client to the run loop. It returns false
// if the hub has already stopped, in which case the caller still owns the
// connection and must close it.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregisterClient hands a departing client to the run loop. A stopped hub
// has already closed everything, so the send is simply abandoned.
func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.joinLocked(client.id, relay.UserGroup(client.identity.UserID))
	h.mu.Unlock()

	h.registry.AddConnection(client.identity.UserID, client.id)
	metrics.WSConnections.Inc()
	metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))

	logging.Info().
		Str("conn_id", client.id).
		Str("user_id", client.identity.UserID).
		Int("total_clients", len(h.clients)).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.id]
	if ok {
		h.dropClientLocked(client)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.registry.RemoveConnection(client.identity.UserID, client.id)
	metrics.WSConnections.Dec()
	metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))

	logging.Info().
		Str("conn_id", client.id).
		Str("user_id", client.identity.UserID).
		Int("total_clients", len(h.clients)).
		Msg("websocket client disconnected")
}

// dropClientLocked removes a client from the client map and every group, and
// closes its send channel. Caller holds h.mu and is responsible for registry
// and metrics updates.
func (h *Hub) dropClientLocked(client *Client) {
	delete(h.clients, client.id)
	for group, members := range h.groups {
		delete(members, client.id)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	close(client.send)
}

// Join adds a connection to a group. Unknown connection ids are ignored.
func (h *Hub) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(connID, group)
}

func (h *Hub) joinLocked(connID, group string) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[connID] = client
}

// Leave removes a connection from a group, dropping the group when empty.
func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// EmitToGroup delivers an event to every member of a group.
func (h *Hub) EmitToGroup(group, event string, payload any) {
	h.emit(event, payload, func() []*Client { return h.groupMembersLocked(group, "") })
}

// EmitToOthers delivers an event to every group member except one connection.
func (h *Hub) EmitToOthers(group, exceptConnID, event string, payload any) {
	h.emit(event, payload, func() []*Client { return h.groupMembersLocked(group, exceptConnID) })
}

// EmitToConn delivers an event to a single connection, if it is still live.
func (h *Hub) EmitToConn(connID, event string, payload any) {
	h.emit(event, payload, func() []*Client {
		if client, ok := h.clients[connID]; ok {
			return []*Client{client}
		}
		return nil
	})
}

// EmitToAll delivers an event to every connected client.
func (h *Hub) EmitToAll(event string, payload any) {
	h.emit(event, payload, func() []*Client { return h.allClientsLocked() })
}

// emit sends a message to the clients selected by pick, in deterministic
// id order. Clients whose send buffer is full are dropped; their read pump
// notices the closed channel and unregisters, so a slow consumer cannot
// stall the rest of a group.
func (h *Hub) emit(event string, payload any, pick func() []*Client) {
	msg := Message{Event: event, Data: payload}

	h.mu.Lock()
	targets := pick()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	var dropped []*Client
	for _, client := range targets {
		select {
		case client.send <- msg:
		default:
			dropped = append(dropped, client)
		}
	}
	for _, client := range dropped {
		if _, ok := h.clients[client.id]; ok {
			h.dropClientLocked(client)
		}
	}
	h.mu.Unlock()

	for _, client := range dropped {
		metrics.WSDroppedMessages.Inc()
		h.registry.RemoveConnection(client.identity.UserID, client.id)
		metrics.WSConnections.Dec()
		metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))
		logging.Warn().
			Str("conn_id", client.id).
			Str("user_id", client.identity.UserID).
			Msg("dropped slow websocket client")
	}
}

func (h *Hub) groupMembersLocked(group, exceptConnID string) []*Client {
	members := h.groups[group]
	out := make([]*Client, 0, len(members))
	for id, client := range members {
		if id == exceptConnID {
			continue
		}
		out = append(out, client)
	}
	return out
}

func (h *Hub) allClientsLocked() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		out = append(out, client)
	}
	return out
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize returns the number of connections in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// closeAllClients closes every client in id order and clears all state.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		close(client.send)
		h.registry.RemoveConnection(client.identity.UserID, client.id)
	}
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[string]*Client)

	metrics.WSConnections.Sub(float64(len(clients)))
	metrics.OnlineUsers.Set(float64(h.registry.OnlineCount()))
	return len(clients)
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}
