// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package auth validates the JWT identity every connection carries.
//
// Token issuance belongs to the platform's auth subsystem; Concord only
// verifies. Tokens are HS256-signed with a shared secret and carry the
// username and role claims the sync layer needs: the user id keys vote
// records, the role feeds the Casbin enforcer.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmercer/concord/internal/config"
)

// Claims represents JWT claims. The registered Subject claim carries the
// platform user id.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the stable user identifier for vote records and room
// attribution: the Subject claim, or the username for tokens minted
// before the platform set sub.
func (c *Claims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Username
}

// JWTManager validates tokens against the platform's shared secret.
type JWTManager struct {
	secret []byte
}

// NewJWTManager creates a JWT validator with the configured secret.
// The secret must match the one the platform signs tokens with.
func NewJWTManager(cfg config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
	}, nil
}

// GenerateToken signs a token the way the platform does. Concord itself
// never issues tokens to users; this exists for tests and tooling that
// need a token accepted by ValidateToken.
func (m *JWTManager) GenerateToken(userID, username, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken verifies signature, algorithm, and time claims, and
// returns the embedded identity.
//
// The signing method check rejects tokens that claim any algorithm other
// than HMAC; without it a token signed with "none" or an RSA public key
// could impersonate users.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.UserID() == "" {
		return nil, fmt.Errorf("token carries no user identity")
	}

	return claims, nil
}
