// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// TypingSignaler receives typing lifecycle signals decoded from client
// frames. The presence tracker implements it; the hub only forwards.
type TypingSignaler interface {
	Typing(ctx context.Context, entityID, userID, username string) error
	StoppedTyping(ctx context.Context, entityID, userID string) error
}

// membership is a join or leave request for one client and one room.
type membership struct {
	client *Client
	room   string
}

// broadcastRequest asks the hub loop to fan a frame out to a room.
// delivered receives the recipient count; it must be buffered so the loop
// never blocks on a caller that gave up.
type broadcastRequest struct {
	room      string
	payload   []byte
	delivered chan int
}

// Hub tracks connections and their room memberships, and fans events out to
// rooms. A room exists while at least one connection is joined to it; a
// connection may belong to many rooms at once.
//
// All membership state is owned by the single Run loop: register, unregister,
// join, leave, and broadcast all travel through channels and are applied in
// one goroutine. The mutex only makes the maps readable for count queries.
type Hub struct {
	cfg config.WebSocketConfig

	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	join       chan membership
	leave      chan membership
	broadcast  chan broadcastRequest

	// done is created per Run and closed when the loop exits, so callers
	// blocked on the loop fail fast instead of hanging on a stopped hub.
	done chan struct{}

	typing TypingSignaler
	mu     sync.RWMutex
}

// NewHub creates a hub. The typing signaler may be nil, in which case
// inbound typing frames are dropped.
func NewHub(cfg config.WebSocketConfig, typing TypingSignaler) *Hub {
	return &Hub{
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan broadcastRequest, 256),
		typing:     typing,
	}
}

// Run starts the hub loop and blocks until the context is canceled. It is
// designed for suture supervision: a restart recreates the loop's liveness
// channel, and shutdown closes every client with a reason.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister/join/leave)
// - Priority 3: Broadcast dispatch
// This ensures membership state is always consistent before fan-out.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()
	defer close(done)

	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		case m := <-h.join:
			h.joinRoom(m)
			continue
		case m := <-h.leave:
			h.leaveRoom(m)
			continue
		default:
		}

		// Priority 3: Handle broadcasts or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case m := <-h.join:
			h.joinRoom(m)

		case m := <-h.leave:
			h.leaveRoom(m)

		case req := <-h.broadcast:
			n := h.dispatch(req.room, req.payload)
			if req.delivered != nil {
				req.delivered <- n
			}
		}
	}
}

// BroadcastToRoom delivers a frame to every connection joined to the room at
// dispatch time and returns how many received it. Connections that join
// mid-dispatch get no causal guarantee. Returns 0 when the hub is stopped.
func (h *Hub) BroadcastToRoom(roomID string, payload []byte) int {
	req := broadcastRequest{
		room:      roomID,
		payload:   payload,
		delivered: make(chan int, 1),
	}

	select {
	case h.broadcast <- req:
	case <-h.doneCh():
		return 0
	}

	select {
	case n := <-req.delivered:
		return n
	case <-h.doneCh():
		return 0
	}
}

// registerClient adds a connection without any room memberships.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.TrackWSConnection(true)
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// unregisterClient removes a connection and every membership it holds. This
// is the close path: clients never leave rooms one by one on disconnect.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	for room := range client.rooms {
		h.removeMembership(client, room)
	}
	delete(h.clients, client)
	close(client.send)
	total := len(h.clients)
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.TrackWSConnection(false)
	metrics.SetActiveRooms(activeRooms)
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

func (h *Hub) joinRoom(m membership) {
	h.mu.Lock()
	if _, ok := h.clients[m.client]; !ok {
		// Join raced a disconnect; the membership would leak.
		h.mu.Unlock()
		return
	}

	if h.rooms[m.room] == nil {
		h.rooms[m.room] = make(map[*Client]bool)
	}
	if h.rooms[m.room][m.client] {
		h.mu.Unlock()
		return
	}
	h.rooms[m.room][m.client] = true
	m.client.rooms[m.room] = true
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.RecordRoomJoin()
	metrics.SetActiveRooms(activeRooms)
	logging.Debug().
		Str("user_id", m.client.userID).
		Str("room", m.room).
		Msg("client joined room")
}

func (h *Hub) leaveRoom(m membership) {
	h.mu.Lock()
	if !m.client.rooms[m.room] {
		h.mu.Unlock()
		return
	}
	h.removeMembership(m.client, m.room)
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	metrics.RecordRoomLeave()
	metrics.SetActiveRooms(activeRooms)
	logging.Debug().
		Str("user_id", m.client.userID).
		Str("room", m.room).
		Msg("client left room")
}

// removeMembership drops one client/room pair and deletes the room when it
// empties. Caller must hold h.mu.
func (h *Hub) removeMembership(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

// dispatch fans a frame out to a room's members in a deterministic order.
// DETERMINISM: Sorts members by client ID so delivery order is reproducible.
// A member whose send buffer is full is disconnected rather than allowed to
// stall the loop; the write pump sends its close frame.
func (h *Hub) dispatch(room string, payload []byte) int {
	h.mu.Lock()

	members := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		members = append(members, client)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].id < members[j].id
	})

	var slow []*Client
	delivered := 0
	for _, client := range members {
		select {
		case client.send <- payload:
			delivered++
		default:
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		client.closeReason = "slow consumer"
		for r := range client.rooms {
			h.removeMembership(client, r)
		}
		delete(h.clients, client)
		close(client.send)
	}
	activeRooms := len(h.rooms)
	h.mu.Unlock()

	for _, client := range slow {
		metrics.RecordSlowClientDrop()
		metrics.TrackWSConnection(false)
		logging.Warn().
			Str("user_id", client.userID).
			Str("room", room).
			Msg("dropping slow websocket client")
	}
	if len(slow) > 0 {
		metrics.SetActiveRooms(activeRooms)
	}

	return delivered
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is not logged as an error because cancellation is
// the expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients("server shutting down")

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every connection with the given reason.
// DETERMINISM: Closes clients in ID order for consistent shutdown behavior.
func (h *Hub) closeAllClients(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.closeReason = reason
		close(client.send)
		delete(h.clients, client)
		metrics.TrackWSConnection(false)
	}
	h.rooms = make(map[string]map[*Client]bool)
	metrics.SetActiveRooms(0)
}

// doneCh returns a channel that is closed when the hub loop is not running.
func (h *Hub) doneCh() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.done
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomSize returns the number of members in one room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
