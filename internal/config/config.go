// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Infrastructure:
//     - Server: HTTP server configuration (port, host, timeouts)
//     - Store: BadgerDB configuration (path, GC, transaction retries)
//     - Events: In-process or NATS JetStream event transport
//
//  2. Realtime:
//     - WebSocket: Connection buffers, read limits, ping/pong deadlines
//     - Presence: Typing indicator TTL and sweep interval
//
//  3. Security:
//     - JWT validation, rate limiting, CORS, Casbin RBAC
//
//  4. Client:
//     - Reconnect backoff, typing throttle, RPC retry policy
//
//  5. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Server.Port, cfg.Store.Path, etc. are now populated
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Events    EventsConfig    `koanf:"events"`
	Presence  PresenceConfig  `koanf:"presence"`
	Security  SecurityConfig  `koanf:"security"`
	Client    ClientConfig    `koanf:"client"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 2673)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Read/write timeout for REST handlers (default: 30s)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown deadline (default: 10s)
//   - ENVIRONMENT: "development", "staging", or "production" (default: development)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}

// StoreConfig holds BadgerDB settings for the vote and comment store.
//
// Environment Variables:
//   - STORE_PATH: BadgerDB data directory (default: /data/concord)
//   - STORE_IN_MEMORY: Run Badger without disk persistence (default: false)
//   - STORE_GC_INTERVAL: Value-log GC cycle interval (default: 5m)
//   - STORE_GC_DISCARD_RATIO: Value-log GC discard ratio, 0..1 (default: 0.5)
//   - STORE_CONFLICT_RETRIES: Transaction retries on write conflict (default: 3)
type StoreConfig struct {
	// Path is the BadgerDB data directory. Ignored when InMemory is true.
	Path string `koanf:"path"`

	// InMemory runs Badger entirely in memory. Intended for tests and
	// ephemeral deployments; all data is lost on shutdown.
	InMemory bool `koanf:"in_memory"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is passed to Badger's RunValueLogGC. A file is
	// rewritten when at least this fraction of its data is stale.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`

	// ConflictRetries is how many times a vote or comment transaction is
	// retried after badger.ErrConflict before surfacing a conflict error.
	ConflictRetries int `koanf:"conflict_retries"`
}

// WebSocketConfig holds realtime connection settings.
//
// Environment Variables:
//   - WS_SEND_BUFFER: Per-client outbound message buffer (default: 64)
//   - WS_READ_LIMIT: Max inbound frame size in bytes (default: 8192)
//   - WS_WRITE_TIMEOUT: Deadline for a single outbound write (default: 10s)
//   - WS_PONG_TIMEOUT: Deadline for a pong after a ping (default: 60s)
//   - WS_PING_INTERVAL: Interval between keepalive pings (default: 54s)
//   - WS_ALLOWED_ORIGINS: Comma-separated Origin allowlist, "*" for any (default: *)
type WebSocketConfig struct {
	// SendBuffer is the per-client buffered channel size. A client whose
	// buffer is full when a broadcast arrives is disconnected rather than
	// allowed to stall the room.
	SendBuffer int `koanf:"send_buffer"`

	// ReadLimit caps the size of inbound frames. Clients only send small
	// control envelopes, so anything large is a protocol violation.
	ReadLimit int64 `koanf:"read_limit"`

	WriteTimeout time.Duration `koanf:"write_timeout"`
	PongTimeout  time.Duration `koanf:"pong_timeout"`

	// PingInterval must be shorter than PongTimeout so a healthy client
	// always has a ping in flight before its read deadline expires.
	PingInterval time.Duration `koanf:"ping_interval"`

	// AllowedOrigins is the Origin header allowlist for the upgrade
	// handshake. A single "*" entry accepts any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// EventsConfig holds event transport settings.
//
// Concord runs on an in-process Watermill GoChannel transport by default.
// A NATS JetStream transport (embedded or external) can be selected for
// multi-instance deployments.
//
// Environment Variables:
//   - EVENTS_TRANSPORT: "gochannel" or "nats" (default: gochannel)
//   - NATS_URL: NATS server connection URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Run an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory (default: /data/concord/jetstream)
//   - NATS_MAX_MEMORY: Max JetStream memory in bytes (default: 1GB)
//   - NATS_MAX_STORE: Max JetStream disk in bytes (default: 10GB)
//   - NATS_RETENTION_DAYS: Event stream retention (default: 7)
//   - EVENTS_ROUTER_RETRY_COUNT: Max handler retries (default: 3)
//   - EVENTS_ROUTER_RETRY_INTERVAL: Initial retry backoff (default: 100ms)
//   - EVENTS_ROUTER_CLOSE_TIMEOUT: Graceful router shutdown deadline (default: 30s)
//   - EVENTS_BREAKER_FAILURES: Consecutive publish failures before the
//     circuit opens (default: 5)
//   - EVENTS_BREAKER_OPEN_TIMEOUT: How long the circuit stays open (default: 30s)
type EventsConfig struct {
	// Transport selects the Watermill Pub/Sub backend: "gochannel" for
	// in-process delivery or "nats" for JetStream.
	Transport string `koanf:"transport"`

	// URL is the NATS server connection URL. Only used when Transport is "nats".
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS server instead of connecting
	// to an external one. Only used when Transport is "nats".
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// StreamRetentionDays is how long to keep events.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// RouterRetryCount is the maximum number of retries for failed messages.
	RouterRetryCount int `koanf:"router_retry_count"`

	// RouterRetryInitialInterval is the initial backoff interval for retries.
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`

	// RouterCloseTimeout is the maximum time to wait for graceful router shutdown.
	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`

	// BreakerMaxFailures is the consecutive publish failure count that
	// trips the publisher circuit breaker.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures"`

	// BreakerOpenTimeout is how long the tripped breaker rejects publishes
	// before probing the transport again.
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// PresenceConfig holds typing indicator settings.
//
// Environment Variables:
//   - PRESENCE_TTL: Typing entry lifetime without refresh (default: 3s)
//   - PRESENCE_SWEEP_INTERVAL: Expiry sweep cadence (default: 1s)
type PresenceConfig struct {
	// TTL is how long a typing entry survives without a refresh before
	// the user is reported as stopped typing.
	TTL time.Duration `koanf:"ttl"`

	// SweepInterval is how often the background sweeper evicts expired
	// entries. Must not exceed TTL.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// SecurityConfig holds authentication and authorization settings.
//
// Environment Variables:
//   - JWT_SECRET: HMAC secret for token validation (required)
//   - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: Disable rate limiting entirely (default: false)
//   - CORS_ORIGINS: Comma-separated CORS origin allowlist (default: *)
//   - CASBIN_DEFAULT_ROLE: Role for tokens without a role claim (default: member)
//   - CASBIN_CACHE_ENABLED: Cache authorization decisions (default: true)
//   - CASBIN_CACHE_TTL: Authorization cache TTL (default: 5m)
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// CasbinConfig holds Casbin RBAC authorization settings.
type CasbinConfig struct {
	DefaultRole  string        `koanf:"default_role"`
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// ClientConfig holds settings for the embedded sync client.
//
// Environment Variables:
//   - CLIENT_SERVER_URL: Concord server base URL (default: http://127.0.0.1:2673)
//   - CLIENT_ORIGIN: Origin header for the upgrade handshake (default: derived from server URL)
//   - CLIENT_RECONNECT_BASE: Initial reconnect backoff (default: 1s)
//   - CLIENT_RECONNECT_CAP: Maximum reconnect backoff (default: 32s)
//   - CLIENT_RECONNECT_MAX_ATTEMPTS: Attempts before giving up (default: 10)
//   - CLIENT_TYPING_INTERVAL: Minimum gap between typing events (default: 2s)
//   - CLIENT_RPC_RETRY_ATTEMPTS: Retries for conflicted mutations (default: 3)
//   - CLIENT_RPC_RETRY_DELAY: Delay between mutation retries (default: 150ms)
//   - CLIENT_REQUEST_TIMEOUT: Per-request HTTP timeout (default: 10s)
type ClientConfig struct {
	ServerURL string `koanf:"server_url"`

	// Origin is sent on the upgrade handshake. The server rejects
	// origin-less upgrades, so non-browser embedders need one; empty
	// means derive it from ServerURL.
	Origin string `koanf:"origin"`

	// ReconnectBase doubles after each failed attempt until it reaches
	// ReconnectCap. ReconnectMaxAttempts consecutive failures put the
	// client into a terminal Failed state.
	ReconnectBase        time.Duration `koanf:"reconnect_base"`
	ReconnectCap         time.Duration `koanf:"reconnect_cap"`
	ReconnectMaxAttempts int           `koanf:"reconnect_max_attempts"`

	// TypingInterval is the minimum spacing between outbound typing
	// notifications regardless of keystroke rate.
	TypingInterval time.Duration `koanf:"typing_interval"`

	RPCRetryAttempts int           `koanf:"rpc_retry_attempts"`
	RPCRetryDelay    time.Duration `koanf:"rpc_retry_delay"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
}

// Load reads configuration with layered sources (defaults, optional YAML
// file, environment variables) and validates the result.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
