// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package main is the entry point for the Concord sync server.

Concord keeps every open browser tab of a community idea board in
agreement: votes resolve to a single authoritative score, comments and
deletions appear everywhere at once, and typing indicators show who is
active in a thread. The server is the authority; clients mirror it.

# Application Architecture

The server implements a layered architecture with Suture v4 process supervision:

	RootSupervisor ("concord")
	├── DataSupervisor ("data-layer")
	│   └── Store GC (BadgerDB value-log compaction)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (room fan-out)
	│   ├── Event Router (sync topic consumer)
	│   └── Presence Sweeper (typing TTL eviction)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (REST API + WebSocket upgrade)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Store: BadgerDB for entity scores, vote records, and comment threads
 4. Event Transport: Watermill GoChannel or NATS JetStream (-tags nats)
 5. Vote Engine and Comment Store: transactional resolution over the store
 6. Presence Tracker and WebSocket Hub: typing state and room membership
 7. Event Router: bridges the sync topic into the hub
 8. Authentication: JWT validation with Casbin role enforcement
 9. Supervisor Tree: Suture v4 process supervision
 10. HTTP Server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=2673               # HTTP server port (spells CORD on a keypad)
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Authentication
	JWT_SECRET=<32+ chars>       # Required; HMAC secret for token validation
	CASBIN_DEFAULT_ROLE=member   # Role assumed when a token carries none

	# Store
	STORE_PATH=./data/concord    # BadgerDB data directory
	STORE_IN_MEMORY=false        # Ephemeral in-memory store (tests, demos)
	STORE_GC_INTERVAL=10m        # Value-log garbage collection cadence

	# Events
	EVENTS_TRANSPORT=gochannel   # gochannel or nats (requires -tags nats)
	NATS_URL=nats://nats:4222    # Only used with the nats transport
	NATS_EMBEDDED=false          # Run an in-process NATS server

	# Presence
	PRESENCE_TTL=6s              # Typing entry lifetime without refresh
	PRESENCE_SWEEP_INTERVAL=2s   # Expired-entry eviction cadence

See .env.example for the complete configuration reference.

# Build Tags

Optional build tags enable additional functionality:

	go build ./cmd/server               # Standard build (GoChannel transport)
	go build -tags nats ./cmd/server    # Enable NATS JetStream transport

Without the tag, setting EVENTS_TRANSPORT=nats fails at startup with a
hint to rebuild. Transport selection never changes the rest of the wiring:
the publisher, router, and bridge are transport-agnostic.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Closes every WebSocket with a going-away frame
 3. Waits for in-flight requests (10s timeout)
 4. Stops the event router, presence sweeper, and store GC
 5. Flushes pending writes and closes the store
 6. Reports any services that failed to stop

# Usage Examples

Development (in-memory store, console logs):

	export STORE_IN_MEMORY=true LOG_FORMAT=console
	export JWT_SECRET=dev-secret-of-at-least-32-characters
	go run ./cmd/server

Production:

	export STORE_PATH=/data/concord
	export JWT_SECRET=$(openssl rand -base64 32)
	export CORS_ORIGINS=https://ideas.example.com
	./concord

Docker:

	docker run -d \
	  -e STORE_PATH=/data/concord \
	  -e JWT_SECRET=your-32-plus-character-secret \
	  -v concord-data:/data/concord \
	  -p 2673:2673 \
	  ghcr.io/jmercer/concord

# Port 2673

The default port 2673 spells CORD on a telephone keypad.

# API Surface

All routes are served under /api/v1 except health and metrics:

  - GET  /health, /health/live, /health/ready: Liveness and readiness probes
  - GET  /metrics: Prometheus metrics
  - GET  /api/v1/ideas/{id}: Entity snapshot (score + viewer's vote)
  - GET  /api/v1/ideas/{id}/comments: Comment thread
  - POST /api/v1/ideas/{id}/vote: Cast, switch, or undo a vote
  - POST /api/v1/comments/{id}/vote: Vote on a comment
  - POST /api/v1/ideas/{id}/comments: Add a comment
  - DEL  /api/v1/ideas/{id}/comments/{commentId}: Delete a comment
  - GET  /api/v1/ws: WebSocket upgrade (token via query parameter)

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/votes: Vote resolution engine
  - internal/events: Event catalog, transport, and dispatch
  - internal/client: Embeddable sync client
*/
package main
