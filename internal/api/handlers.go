// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmercer/concord/internal/authz"
	"github.com/jmercer/concord/internal/comments"
	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/events"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/store"
	"github.com/jmercer/concord/internal/votes"
	ws "github.com/jmercer/concord/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files by concern:
//   - handlers.go: Handler struct, constructor, WebSocket upgrader (this file)
//   - handlers_helpers.go: shared response and validation helpers
//   - handlers_votes.go: vote RPCs and the entity snapshot
//   - handlers_comments.go: comment thread mutations and reads
//   - handlers_health.go: health and probe endpoints
//   - handlers_websocket.go: the WebSocket upgrade endpoint
type Handler struct {
	store     *store.Store
	engine    *votes.Engine
	comments  *comments.Store
	enforcer  *authz.Enforcer
	hub       *ws.Hub
	publisher *events.Publisher
	config    *config.Config
	startTime time.Time
}

// NewHandler creates the API handler with its backing services.
//
// publisher may be nil; it is only consulted for breaker state in the
// health report. hub may be nil in minimal deployments, in which case
// the WebSocket endpoint answers 503.
func NewHandler(st *store.Store, engine *votes.Engine, commentStore *comments.Store, enforcer *authz.Enforcer, hub *ws.Hub, publisher *events.Publisher, cfg *config.Config) *Handler {
	return &Handler{
		store:     st,
		engine:    engine,
		comments:  commentStore,
		enforcer:  enforcer,
		hub:       hub,
		publisher: publisher,
		config:    cfg,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout so a stalled client cannot pin the accept path.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates upgrade origins against the configured
// allowlist. Browser WebSockets always send Origin; an empty header means
// a non-browser client, and allowing it would bypass CORS entirely.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// Nil config means a test harness; fail open
	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.WebSocket.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
