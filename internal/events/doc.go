// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package events is the internal bus every live update travels on, built on
// Watermill with pluggable transports.
//
// Producers never talk to the WebSocket hub directly. The vote engine,
// comment store, and presence tracker publish typed events; a router
// consumes the sync topic and the bridge fans each event out to the room it
// belongs to:
//
//	┌────────────┐  ┌─────────────┐  ┌──────────────┐
//	│ Vote Engine│  │Comment Store│  │Presence Track│
//	└─────┬──────┘  └──────┬──────┘  └──────┬───────┘
//	      │                │                │
//	      └───────────┬────┴────────────────┘
//	                  ▼
//	         ┌────────────────┐
//	         │   Publisher    │  ← circuit breaker
//	         └───────┬────────┘
//	                 │ topic "sync.events"
//	                 ▼
//	         ┌────────────────┐
//	         │     Router     │  ← Recoverer + Retry
//	         └───────┬────────┘
//	                 ▼
//	         ┌────────────────┐      ┌─────────────┐
//	         │     Bridge     │─────▶│ Hub (rooms) │
//	         └────────────────┘      └─────────────┘
//
// # Event catalog
//
// Wire names are fixed protocol; clients switch on them:
//
//	vote:updated        {entityId, newScore, effectiveDirection}
//	comment:added       {entityId, comment}
//	comment:voteUpdated {entityId, commentId, newScore}
//	comment:deleted     {entityId, commentId}
//	user:typing         {entityId, userId, username}
//	user:stoppedTyping  {entityId, userId}
//
// Every event is wrapped in an Envelope carrying an id, type, room, and
// timestamp. Comment events route through their parent idea's room because
// viewers subscribe per idea.
//
// # Transports
//
// The default transport is Watermill's in-process gochannel Pub/Sub: zero
// external dependencies, suitable for a single instance. Building with
// -tags nats swaps in NATS JetStream (optionally with an embedded NATS
// server) so multiple Concord instances share one bus and every instance's
// bridge fans events out to its local connections.
//
// # Delivery semantics
//
// Live events are best-effort: the publisher's circuit breaker fails fast
// during a transport outage, and the router's retry middleware gives up
// after bounded attempts and drops the message. Clients recover missed
// state through the snapshot refetch on reconnect, never through replay.
package events
