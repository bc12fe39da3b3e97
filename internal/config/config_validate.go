// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package config

import (
	"fmt"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validatePresence(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateClient(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s")
	}
	if c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be at least 1s")
	}

	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging, or production, got: %s", c.Server.Environment)
	}

	return nil
}

// validateStore validates BadgerDB configuration
func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_IN_MEMORY=false")
	}
	if c.Store.GCInterval < 10*time.Second {
		return fmt.Errorf("STORE_GC_INTERVAL must be at least 10s")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be between 0 and 1 exclusive, got: %g", c.Store.GCDiscardRatio)
	}
	if c.Store.ConflictRetries < 1 || c.Store.ConflictRetries > 10 {
		return fmt.Errorf("STORE_CONFLICT_RETRIES must be between 1 and 10")
	}
	return nil
}

// WebSocket limit constants
const (
	wsMinSendBuffer = 1
	wsMaxSendBuffer = 4096
	wsMinReadLimit  = 512
	wsMaxReadLimit  = 1 << 20 // 1MB
)

// validateWebSocket validates realtime connection configuration
func (c *Config) validateWebSocket() error {
	if c.WebSocket.SendBuffer < wsMinSendBuffer || c.WebSocket.SendBuffer > wsMaxSendBuffer {
		return fmt.Errorf("WS_SEND_BUFFER must be between 1 and 4096")
	}
	if c.WebSocket.ReadLimit < wsMinReadLimit || c.WebSocket.ReadLimit > wsMaxReadLimit {
		return fmt.Errorf("WS_READ_LIMIT must be between 512 and 1048576 bytes")
	}
	if c.WebSocket.WriteTimeout < time.Second {
		return fmt.Errorf("WS_WRITE_TIMEOUT must be at least 1s")
	}
	if c.WebSocket.PongTimeout < 5*time.Second {
		return fmt.Errorf("WS_PONG_TIMEOUT must be at least 5s")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		return fmt.Errorf("WS_PING_INTERVAL must be shorter than WS_PONG_TIMEOUT")
	}
	if len(c.WebSocket.AllowedOrigins) == 0 {
		return fmt.Errorf("WS_ALLOWED_ORIGINS must not be empty; use * to allow any origin")
	}
	return nil
}

// Events limit constants
const (
	natsMinMemory    = 64 * 1024 * 1024  // 64MB
	natsMinStore     = 100 * 1024 * 1024 // 100MB
	natsMaxRetention = 365
	natsMinRetention = 1
)

// validateEvents validates event transport configuration
func (c *Config) validateEvents() error {
	switch c.Events.Transport {
	case "gochannel":
		return nil
	case "nats":
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be gochannel or nats, got: %s", c.Events.Transport)
	}

	if err := validateNATSURL(c.Events.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	if c.Events.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	if c.Events.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	if c.Events.StreamRetentionDays < natsMinRetention || c.Events.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}

	return c.validateEventsRouter()
}

// validateEventsRouter validates Watermill router and breaker settings
func (c *Config) validateEventsRouter() error {
	if c.Events.RouterRetryCount < 0 || c.Events.RouterRetryCount > 100 {
		return fmt.Errorf("EVENTS_ROUTER_RETRY_COUNT must be between 0 and 100")
	}
	if c.Events.RouterRetryInitialInterval < time.Millisecond {
		return fmt.Errorf("EVENTS_ROUTER_RETRY_INTERVAL must be at least 1ms")
	}
	if c.Events.RouterCloseTimeout < time.Second {
		return fmt.Errorf("EVENTS_ROUTER_CLOSE_TIMEOUT must be at least 1s")
	}
	if c.Events.BreakerMaxFailures < 1 {
		return fmt.Errorf("EVENTS_BREAKER_FAILURES must be at least 1")
	}
	if c.Events.BreakerOpenTimeout < time.Second {
		return fmt.Errorf("EVENTS_BREAKER_OPEN_TIMEOUT must be at least 1s")
	}
	return nil
}

// validatePresence validates typing indicator configuration
func (c *Config) validatePresence() error {
	if c.Presence.TTL < time.Second || c.Presence.TTL > time.Minute {
		return fmt.Errorf("PRESENCE_TTL must be between 1s and 1m")
	}
	if c.Presence.SweepInterval < 100*time.Millisecond {
		return fmt.Errorf("PRESENCE_SWEEP_INTERVAL must be at least 100ms")
	}
	if c.Presence.SweepInterval > c.Presence.TTL {
		return fmt.Errorf("PRESENCE_SWEEP_INTERVAL must not exceed PRESENCE_TTL")
	}
	return nil
}

// minJWTSecretLen is the minimum secret length accepted in production.
// 32 bytes matches the HS256 key size recommendation from RFC 7518.
const minJWTSecretLen = 32

// validateSecurity validates authentication and authorization configuration
func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Server.Environment == "production" && len(c.Security.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minJWTSecretLen)
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}

	if c.Security.Casbin.DefaultRole == "" {
		return fmt.Errorf("CASBIN_DEFAULT_ROLE must not be empty")
	}
	if c.Security.Casbin.CacheEnabled && c.Security.Casbin.CacheTTL < time.Second {
		return fmt.Errorf("CASBIN_CACHE_TTL must be at least 1s when caching is enabled")
	}

	return nil
}

// validateClient validates sync client configuration
func (c *Config) validateClient() error {
	if err := validateHTTPURL(c.Client.ServerURL, "CLIENT_SERVER_URL"); err != nil {
		return err
	}
	if c.Client.ReconnectBase < 100*time.Millisecond {
		return fmt.Errorf("CLIENT_RECONNECT_BASE must be at least 100ms")
	}
	if c.Client.ReconnectCap < c.Client.ReconnectBase {
		return fmt.Errorf("CLIENT_RECONNECT_CAP must be at least CLIENT_RECONNECT_BASE")
	}
	if c.Client.ReconnectMaxAttempts < 1 {
		return fmt.Errorf("CLIENT_RECONNECT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Client.TypingInterval < 100*time.Millisecond {
		return fmt.Errorf("CLIENT_TYPING_INTERVAL must be at least 100ms")
	}
	if c.Client.RPCRetryAttempts < 0 || c.Client.RPCRetryAttempts > 10 {
		return fmt.Errorf("CLIENT_RPC_RETRY_ATTEMPTS must be between 0 and 10")
	}
	if c.Client.RequestTimeout < time.Second {
		return fmt.Errorf("CLIENT_REQUEST_TIMEOUT must be at least 1s")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be trace, debug, info, warn, or error, got: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}
