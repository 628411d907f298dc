// Parley - Realtime chat and notification relay
// Copyright 2026 Parley Contributors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/parleyhq/parley

package websocket

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// inboundEnvelope is the wire shape of client-to-server events. Data stays
// raw until the relay validates it against the event's payload type.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one live websocket connection with its identity attached at
// admission time. Identity is immutable for the connection's lifetime.
type Client struct {
	id       string
	identity models.Identity
	hub      *Hub
	conn     *websocket.Conn
	handler  relay.EventHandler
	limiter  *rate.Limiter
	send     chan Message
}

// NewClient creates a client for an admitted connection. The handler receives
// the connection's inbound events; the limiter bounds their rate.
func NewClient(hub *Hub, conn *websocket.Conn, identity models.Identity, handler relay.EventHandler, cfg config.RelayConfig) *Client {
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		hub:      hub,
		conn:     conn,
		handler:  handler,
		limiter:  rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.EventBurst),
		send:     make(chan Message, 256),
	}
}

// ID returns the connection's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the identity attached at admission time.
func (c *Client) Identity() models.Identity {
	return c.identity
}

// readPump reads inbound events and dispatches them to the handler one at a
// time, in arrival order. Handler calls are synchronous, so a connection's
// own events never interleave with each other; events from other connections
// run freely on their own pumps.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env inboundEnvelope
		err := c.conn.ReadJSON(&env)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("conn_id", c.id).Msg("unexpected websocket close error")
			}
			break
		}

		if !c.limiter.Allow() {
			metrics.WSEventErrors.WithLabelValues(relay.CodeRateLimited).Inc()
			// Routed through the hub: its lock keeps the send channel open
			// for exactly as long as the client is registered, and a client
			// already dropped for slow consumption is a no-op target.
			c.hub.EmitToConn(c.id, relay.EventError, relay.ErrorPayload{
				Code:    relay.CodeRateLimited,
				Message: "too many events",
			})
			continue
		}

		if c.handler == nil {
			continue
		}

		// Background context: a disconnect mid-handler does not abort an
		// in-flight assistant call; a late broadcast to a departed group is
		// a harmless no-op.
		c.handler.HandleEvent(context.Background(), c, env.Event, env.Data)
	}
}

// writePump writes queued messages and pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
