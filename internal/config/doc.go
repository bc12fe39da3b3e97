// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package config provides centralized configuration management for Concord.

This package handles loading, validation, and layering of configuration for
all application components. It ensures consistent configuration across the
server and the embedded sync client and provides sensible defaults for every
setting.

# Configuration Sources

Configuration is layered with Koanf v2, later layers overriding earlier ones:

  - Built-in defaults (always present)
  - Optional YAML config file (config.yaml, or CONFIG_PATH)
  - Environment variables (highest priority)

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeouts)
  - StoreConfig: BadgerDB storage and transaction retry settings
  - WebSocketConfig: Realtime connection buffers and deadlines
  - EventsConfig: Watermill transport (GoChannel or NATS JetStream)
  - PresenceConfig: Typing indicator TTL and sweep interval
  - SecurityConfig: JWT validation, rate limiting, CORS, Casbin RBAC
  - ClientConfig: Reconnect backoff and RPC retry policy
  - LoggingConfig: Log level and output format

# Environment Variables

Selected variables by component:

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 2673)
  - HTTP_TIMEOUT: Request read/write timeout (default: 30s)

Storage (StoreConfig):
  - STORE_PATH: BadgerDB directory (default: /data/concord)
  - STORE_IN_MEMORY: Disable persistence (default: false)
  - STORE_CONFLICT_RETRIES: Transaction retries on conflict (default: 3)

Events (EventsConfig):
  - EVENTS_TRANSPORT: gochannel or nats (default: gochannel)
  - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
  - NATS_EMBEDDED: Run embedded NATS server (default: true)

Security (SecurityConfig):
  - JWT_SECRET: Token validation secret (required, min 32 chars in production)
  - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
  - CORS_ORIGINS: Comma-separated origin allowlist (default: *)

# Usage Example

Basic configuration loading:

	import "github.com/jmercer/concord/internal/config"

	// Load configuration from defaults, file, and environment
	cfg, err := config.Load()
	if err != nil {
	    log.Fatal("invalid configuration:", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

# Validation

Load returns an error naming the offending environment variable whenever a
value is missing or out of range, so misconfiguration fails fast at startup
rather than surfacing as runtime misbehavior.

# Thread Safety

Config is immutable after Load and safe for concurrent reads. Hot reload via
WatchConfigFile requires caller-side synchronization.
*/
package config
