// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the realtime sync pipeline end to end: HTTP request
latency, vote resolution outcomes, the event publish/broadcast path, WebSocket
connection and room churn, typing presence, and BadgerDB maintenance.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:2673/metrics

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

Vote Metrics:
  - votes_resolved_total: Vote resolutions by branch (counter)
    Labels: branch (create, toggle, flip)
  - vote_resolution_duration_seconds: Transaction duration (histogram)
  - vote_conflict_retries_total: Commit conflicts retried (counter)
  - vote_failures_total: Failed resolutions (counter)
    Labels: reason (not_found, conflict, storage)

Event Metrics:
  - events_published_total: Events handed to the router (counter)
    Labels: event_type
  - event_publish_errors_total: Failed publishes (counter)
    Labels: event_type
  - broadcasts_total: Events fanned out to rooms (counter)
    Labels: event_type
  - broadcast_recipients: Connections reached per broadcast (histogram)
  - circuit_breaker_state: Publisher breaker state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open

WebSocket and Room Metrics:
  - websocket_connections: Active connections (gauge)
  - websocket_messages_sent_total / websocket_messages_received_total (counters)
  - websocket_slow_client_drops_total: Connections dropped on full send buffer (counter)
  - room_joins_total / room_leaves_total (counters)
  - rooms_active: Rooms with at least one member (gauge)

Presence Metrics:
  - typing_active: Active typing entries (gauge)
  - typing_signals_total: Typing signals received (counter)
  - typing_expirations_total: Entries removed (counter)
    Labels: reason (stop, timeout, disconnect)

Store Metrics:
  - store_gc_runs_total: BadgerDB value log GC runs (counter)
  - store_gc_duration_seconds: GC run duration (histogram)

# Usage

Record metrics through the helper functions rather than the collectors:

	metrics.RecordVoteResolved("flip", time.Since(start))
	metrics.RecordBroadcast("vote:updated", len(recipients))
	metrics.TrackWSConnection(true)

All collectors are registered with the default Prometheus registry via
promauto at package initialization; no explicit registration is needed.

# Thread Safety

All exported functions and collectors are safe for concurrent use.
*/
package metrics
