// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package authz

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/jmercer/concord/internal/auth"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
)

// Middleware enforces a fixed (object, action) permission per route. Routes
// whose decision needs request data, like ownership-aware comment deletion,
// call the enforcer from their handler instead.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates an authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Require rejects requests whose role claim may not perform the action on
// the object. It assumes the authentication middleware already ran.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetClaims(r.Context())
			if claims == nil {
				writeAuthzError(w, http.StatusUnauthorized, models.CodeUnauthorized, "authentication required")
				return
			}

			allowed, err := m.enforcer.EnforceRole(claims.Role, object, action)
			if err != nil {
				logging.Error().Err(err).Msg("Authorization check failed")
				writeAuthzError(w, http.StatusInternalServerError, models.CodeInternal, "authorization unavailable")
				return
			}
			if !allowed {
				logging.Debug().
					Str("user_id", claims.UserID()).
					Str("role", claims.Role).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				writeAuthzError(w, http.StatusForbidden, models.CodeForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthzError sends an error in the standard envelope.
func writeAuthzError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Failed to write authorization response")
	}
}
