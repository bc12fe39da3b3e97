// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package websocket is the room registry and hub: it tracks live connections,
their per-idea room memberships, and fans realtime events out to rooms.

This package uses the gorilla/websocket library with a hub-client
architecture. Unlike a global broadcast hub, delivery here is room-scoped: a
client only receives events for ideas it has joined, and one connection may
watch many ideas at once.

Key Components:

  - Hub: Single-loop broker owning all membership state
  - Client: One WebSocket connection with read/write goroutines and the
    identity (userID, username) bound during the authenticated upgrade
  - ClientMessage: Typed envelope for inbound frames

Architecture:

	┌──────────────────────────────┐
	│             Hub              │
	│  rooms: idea-1, idea-2, ...  │
	└──────┬───────────┬───────────┘
	       │           │
	   room idea-1  room idea-2
	       │           │
	  ┌────┴────┐    ┌─┴───────┐
	  │ Client1 │    │ Client1 │   ← same connection, two rooms
	  │ Client2 │    │ Client3 │
	  └─────────┘    └─────────┘

All state mutations flow through the Run loop's channels (register,
unregister, join, leave, broadcast), so membership needs no lock ordering
discipline; the mutex only serves count queries.

Inbound Frames:

	{"type": "join:entity", "entityId": "idea-42"}
	{"type": "leave:entity", "entityId": "idea-42"}
	{"type": "user:typing", "entityId": "idea-42"}
	{"type": "user:stoppedTyping", "entityId": "idea-42"}
	{"type": "ping"}

Typing frames are forwarded to the presence tracker through the
TypingSignaler interface; join and leave mutate the room registry. Malformed
frames are logged and dropped, never closing the connection.

Outbound frames are pre-marshaled event envelopes handed to BroadcastToRoom
by the events bridge; the hub never re-encodes them.

Backpressure:

Each client has a buffered send channel. A client that cannot drain its
buffer by the time the next broadcast arrives is disconnected with a "slow
consumer" close reason; one stalled reader never blocks a room.

Usage:

	hub := websocket.NewHub(cfg.WebSocket, tracker)
	go hub.Run(ctx)

	// In the upgrade handler, after authentication:
	client := hub.Attach(conn, claims.UserID, claims.Username)

	// From the events bridge:
	n := hub.BroadcastToRoom("idea-42", envelope)
*/
package websocket
