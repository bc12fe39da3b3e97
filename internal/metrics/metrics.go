// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - API endpoint latency and throughput
// - Vote resolution outcomes and transaction conflicts
// - Event publishing and broadcast fan-out
// - WebSocket connections and room membership
// - Typing presence
// - BadgerDB store maintenance

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Vote Resolution Metrics
	VotesResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_resolved_total",
			Help: "Total number of vote resolutions by branch",
		},
		[]string{"branch"}, // "create", "toggle", "flip"
	)

	VoteResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vote_resolution_duration_seconds",
			Help:    "Duration of vote resolution transactions in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	VoteConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vote_conflict_retries_total",
			Help: "Total number of vote transactions retried after a commit conflict",
		},
	)

	VoteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vote_failures_total",
			Help: "Total number of failed vote resolutions",
		},
		[]string{"reason"}, // "not_found", "conflict", "storage"
	)

	// Comment Metrics
	CommentsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_added_total",
			Help: "Total number of comments added",
		},
	)

	CommentsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_deleted_total",
			Help: "Total number of comments deleted",
		},
	)

	// Event Pipeline Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the message router",
		},
		[]string{"event_type"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"event_type"},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total number of events fanned out to rooms",
		},
		[]string{"event_type"},
	)

	BroadcastRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_recipients",
			Help:    "Number of connections reached per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSSlowClientDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_client_drops_total",
			Help: "Total number of connections dropped because their send buffer filled",
		},
	)

	// Room Metrics
	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_joins_total",
			Help: "Total number of room join operations",
		},
	)

	RoomLeaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "room_leaves_total",
			Help: "Total number of room leave operations",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active",
			Help: "Current number of rooms with at least one member",
		},
	)

	// Presence Metrics
	TypingActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "typing_active",
			Help: "Current number of active typing entries",
		},
	)

	TypingSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "typing_signals_total",
			Help: "Total number of typing signals received",
		},
	)

	TypingExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typing_expirations_total",
			Help: "Total number of typing entries removed",
		},
		[]string{"reason"}, // "stop", "timeout", "disconnect"
	)

	// Store Metrics
	StoreGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total number of BadgerDB value log GC runs",
		},
	)

	StoreGCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_gc_duration_seconds",
			Help:    "Duration of BadgerDB value log GC runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rate limit rejection for an endpoint
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordVoteResolved records a completed vote resolution and its branch
func RecordVoteResolved(branch string, duration time.Duration) {
	VotesResolvedTotal.WithLabelValues(branch).Inc()
	VoteResolutionDuration.Observe(duration.Seconds())
}

// RecordVoteConflictRetry records a transaction retry after a commit conflict
func RecordVoteConflictRetry() {
	VoteConflictRetries.Inc()
}

// RecordVoteFailure records a failed vote resolution by reason
func RecordVoteFailure(reason string) {
	VoteFailures.WithLabelValues(reason).Inc()
}

// RecordCommentAdded records a comment creation
func RecordCommentAdded() {
	CommentsAdded.Inc()
}

// RecordCommentDeleted records a comment deletion
func RecordCommentDeleted() {
	CommentsDeleted.Inc()
}

// RecordEventPublished records an event handed to the message router
func RecordEventPublished(eventType string) {
	EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventPublishError records a failed event publish
func RecordEventPublishError(eventType string) {
	EventPublishErrors.WithLabelValues(eventType).Inc()
}

// RecordBroadcast records one event fanned out to a room
func RecordBroadcast(eventType string, recipients int) {
	BroadcastsTotal.WithLabelValues(eventType).Inc()
	BroadcastRecipients.Observe(float64(recipients))
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	}
	return 0
}

// TrackWSConnection tracks the active WebSocket connection gauge
func TrackWSConnection(inc bool) {
	if inc {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSMessageSent records an outbound WebSocket message
func RecordWSMessageSent() {
	WSMessagesSent.Inc()
}

// RecordWSMessageReceived records an inbound WebSocket message
func RecordWSMessageReceived() {
	WSMessagesReceived.Inc()
}

// RecordWSError records a WebSocket error by type
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordSlowClientDrop records a connection dropped for a full send buffer
func RecordSlowClientDrop() {
	WSSlowClientDrops.Inc()
}

// RecordRoomJoin records a room join
func RecordRoomJoin() {
	RoomJoins.Inc()
}

// RecordRoomLeave records a room leave
func RecordRoomLeave() {
	RoomLeaves.Inc()
}

// SetActiveRooms sets the active room gauge
func SetActiveRooms(count int) {
	RoomsActive.Set(float64(count))
}

// RecordTypingSignal records an inbound typing signal
func RecordTypingSignal() {
	TypingSignals.Inc()
}

// RecordTypingExpiry records a typing entry removal by reason
func RecordTypingExpiry(reason string) {
	TypingExpirations.WithLabelValues(reason).Inc()
}

// SetTypingActive sets the active typing entry gauge
func SetTypingActive(count int) {
	TypingActive.Set(float64(count))
}

// RecordStoreGC records a BadgerDB value log GC run
func RecordStoreGC(duration time.Duration) {
	StoreGCRuns.Inc()
	StoreGCDuration.Observe(duration.Seconds())
}

// SetAppInfo records version and build information
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetUptime sets the application uptime gauge
func SetUptime(start time.Time) {
	AppUptime.Set(time.Since(start).Seconds())
}
