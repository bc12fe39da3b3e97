// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
)

// Fallbacks for zero-valued configuration.
const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultReadLimit    = 8 * 1024
	defaultSendBuffer   = 64
)

// Inbound message types clients may send. The typing pair reuses the event
// wire names so a client speaks one vocabulary in both directions.
const (
	MessageTypeJoin          = "join:entity"
	MessageTypeLeave         = "leave:entity"
	MessageTypeTyping        = "user:typing"
	MessageTypeStoppedTyping = "user:stoppedTyping"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// ClientMessage is the typed envelope for inbound client frames.
type ClientMessage struct {
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
}

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is a middleman between one websocket connection and the hub. It
// carries the identity established during the authenticated upgrade.
type Client struct {
	// id is a unique identifier for this client, used for deterministic ordering.
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID   string
	username string

	// rooms is this connection's membership set. Owned by the hub loop;
	// never touched from the pumps.
	rooms map[string]bool

	// closeReason, when set by the hub before closing send, becomes the
	// close frame's text.
	closeReason string
}

// NewClient creates a client for an upgraded connection. The caller still
// has to register it and start its pumps; most callers want Attach instead.
func NewClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	buffer := hub.cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}

	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, buffer),
		userID:   userID,
		username: username,
		rooms:    make(map[string]bool),
	}
}

// Attach registers a new client for the connection and starts its pumps.
// Returns nil if the hub is not running; the caller should close the
// connection in that case.
func (h *Hub) Attach(conn *websocket.Conn, userID, username string) *Client {
	client := NewClient(h, conn, userID, username)

	select {
	case h.Register <- client:
	case <-h.doneCh():
		return nil
	}

	client.Start()
	return client
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the authenticated user id bound at upgrade time.
func (c *Client) UserID() string {
	return c.userID
}

// readPump decodes inbound frames and forwards them to the hub and the
// typing signaler. A malformed frame is logged and dropped; it never
// terminates the connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.doneCh():
		}
		_ = c.conn.Close()
	}()

	readLimit := c.hub.cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	pongTimeout := c.hub.cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = defaultPongTimeout
	}

	c.conn.SetReadLimit(readLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.RecordWSError("read")
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		metrics.RecordWSMessageReceived()

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.RecordWSError("decode")
			logging.Warn().Err(err).Str("user_id", c.userID).Msg("dropping malformed client frame")
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage applies one decoded client frame.
func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeJoin:
		if msg.EntityID == "" {
			metrics.RecordWSError("decode")
			logging.Warn().Str("user_id", c.userID).Msg("join frame without entity id")
			return
		}
		select {
		case c.hub.join <- membership{client: c, room: msg.EntityID}:
		case <-c.hub.doneCh():
		}

	case MessageTypeLeave:
		if msg.EntityID == "" {
			return
		}
		select {
		case c.hub.leave <- membership{client: c, room: msg.EntityID}:
		case <-c.hub.doneCh():
		}

	case MessageTypeTyping:
		if c.hub.typing == nil || msg.EntityID == "" {
			return
		}
		if err := c.hub.typing.Typing(context.Background(), msg.EntityID, c.userID, c.username); err != nil {
			logging.Warn().Err(err).Str("user_id", c.userID).Msg("typing signal failed")
		}

	case MessageTypeStoppedTyping:
		if c.hub.typing == nil || msg.EntityID == "" {
			return
		}
		if err := c.hub.typing.StoppedTyping(context.Background(), msg.EntityID, c.userID); err != nil {
			logging.Warn().Err(err).Str("user_id", c.userID).Msg("stop typing signal failed")
		}

	case MessageTypePing:
		pong, err := json.Marshal(ClientMessage{Type: MessageTypePong})
		if err != nil {
			return
		}
		select {
		case c.send <- pong:
		default:
		}

	default:
		metrics.RecordWSError("unknown_type")
		logging.Warn().
			Str("user_id", c.userID).
			Str("message_type", msg.Type).
			Msg("dropping unknown client frame")
	}
}

// writePump pumps frames from the hub to the websocket connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	writeTimeout := c.hub.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	pingInterval := c.hub.cfg.PingInterval
	if pingInterval <= 0 {
		pongTimeout := c.hub.cfg.PongTimeout
		if pongTimeout <= 0 {
			pongTimeout = defaultPongTimeout
		}
		pingInterval = pongTimeout * 9 / 10
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel; tell the client why.
				frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, c.closeReason)
				if err := c.conn.WriteMessage(websocket.CloseMessage, frame); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.RecordWSError("write")
				logging.Error().Err(err).Msg("failed to write frame")
				return
			}
			metrics.RecordWSMessageSent()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
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
