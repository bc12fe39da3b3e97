// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"

	"github.com/jmercer/concord/internal/logging"
)

// WebSocket handles GET /api/v1/ws.
//
// The auth middleware has already validated the token (browsers pass it
// as the token query parameter since they cannot set headers on upgrade
// requests), so the connection binds to the claims' identity. Room
// membership starts empty; the client sends join frames once attached.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "realtime service unavailable", nil)
		return
	}

	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	if client := h.hub.Attach(conn, claims.UserID(), claims.Username); client == nil {
		logging.Warn().Str("user_id", claims.UserID()).Msg("WebSocket connection rejected: hub not running")
		_ = conn.Close()
	}
}
