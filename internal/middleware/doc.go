// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, performance
monitoring, request ID tracking, and Prometheus metrics integration. These
components work alongside the authentication middleware to create a complete
middleware stack for HTTP request processing.

Key Components:

  - Compression: Gzip compression for REST responses
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking across log lines
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The chi router in internal/api assembles the stack. RequestID sits on the
global chain so every route, including health probes, gets a correlation ID;
the rest apply to the /api/v1 group:

	r.Use(chiMiddleware(middleware.RequestID))          // global
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(router.perf.Middleware)                   // latency window
	    r.Use(chiMiddleware(middleware.PrometheusMetrics))
	    r.Use(chiMiddleware(middleware.Compression))
	    r.Use(router.authMW.Authenticate)
	    ...
	})

The WebSocket route lives inside the same group. Compression detects and
bypasses Upgrade requests (compressing the handshake would break the
protocol), and the status-capturing writers in PrometheusMetrics and the
performance monitor forward Hijack so the upgrade can take over the
connection.

Usage Example - Request ID:

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("processing vote")
	}

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)

	mux.Handle("/api/v1/", perfMon.Middleware(apiHandler))

	// Get performance statistics
	stats := perfMon.GetStats()

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/auth: Authentication middleware
  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
