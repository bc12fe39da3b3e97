// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmercer/concord/internal/auth"
	"github.com/jmercer/concord/internal/authz"
	"github.com/jmercer/concord/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler so r.Use accepts it.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router holds the handler and the middleware stacks it routes through.
type Router struct {
	handler       *Handler
	authMW        *auth.Middleware
	authzMW       *authz.Middleware
	chiMiddleware *ChiMiddleware
	perf          *middleware.PerformanceMonitor
}

// NewRouter creates a router. chiMW may be nil, in which case the secure
// defaults apply (empty CORS allowlist, 100 req/min).
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		authMW:        authMW,
		authzMW:       authzMW,
		chiMiddleware: chiMW,
		perf:          middleware.NewPerformanceMonitor(1000),
	}
}

// Performance exposes the router's latency monitor for diagnostics.
func (router *Router) Performance() *middleware.PerformanceMonitor {
	return router.perf
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order. CORS must be
	// global to handle OPTIONS preflight before routing.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// Operational endpoints, unversioned and unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealthz())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Sync API. Every route requires an authenticated identity; the
	// fixed-permission mutations additionally pass the casbin middleware.
	// Comment deletion carries no Require because the handler decides
	// between ownership and the moderator grant per request.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.perf.Middleware)
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		// Compression passes Upgrade requests through untouched, so the
		// /ws route below is safe inside this group.
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(router.authMW.Authenticate)

		// Snapshot reads, default rate limit
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/ideas/{id}", router.handler.IdeaSnapshot)
			r.Get("/ideas/{id}/comments", router.handler.CommentList)
		})

		// Mutations, write rate limit
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrites())

			r.With(router.authzMW.Require(authz.ObjectIdea, authz.ActionVote)).
				Post("/ideas/{id}/vote", router.handler.IdeaVote)
			r.With(router.authzMW.Require(authz.ObjectComment, authz.ActionVote)).
				Post("/comments/{id}/vote", router.handler.CommentVote)
			r.With(router.authzMW.Require(authz.ObjectIdea, authz.ActionComment)).
				Post("/ideas/{id}/comments", router.handler.CommentCreate)

			r.Delete("/ideas/{id}/comments/{commentId}", router.handler.CommentDelete)
		})

		// WebSocket upgrade, bounded per IP
		r.With(router.chiMiddleware.RateLimitUpgrades()).
			Get("/ws", router.handler.WebSocket)
	})

	return r
}
