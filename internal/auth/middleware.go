// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
)

type contextKey string

// ClaimsContextKey is where Authenticate stores the validated claims.
const ClaimsContextKey contextKey = "claims"

// Middleware enforces a valid token on every request it wraps.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates an authentication middleware.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate validates the request's token and stores the claims in the
// request context. Tokens arrive as "Authorization: Bearer <token>" or, for
// WebSocket upgrades where browsers cannot set headers, as the "token"
// query parameter.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			writeUnauthorized(w, "authentication required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			logging.Debug().Err(err).Msg("Token validation failed")
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken pulls the token from the Authorization header, falling back
// to the token query parameter.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// GetClaims returns the validated claims stored by Authenticate, or nil
// when the request never passed through it.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}

// ContextWithClaims stores claims directly, for handlers under test.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

// writeUnauthorized sends a 401 in the standard error envelope.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	response := &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    models.CodeUnauthorized,
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error().Err(err).Msg("Failed to write unauthorized response")
	}
}
