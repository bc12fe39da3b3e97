// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/concord/config.yaml",
	"/etc/concord/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            2673,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development", // Set ENVIRONMENT=production for production checks
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:            "/data/concord",
			InMemory:        false,
			GCInterval:      5 * time.Minute,
			GCDiscardRatio:  0.5,
			ConflictRetries: 3,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:     64,
			ReadLimit:      8192,
			WriteTimeout:   10 * time.Second,
			PongTimeout:    60 * time.Second,
			PingInterval:   54 * time.Second, // 90% of PongTimeout
			AllowedOrigins: []string{"*"},
		},
		Events: EventsConfig{
			Transport:                  "gochannel",
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             true,
			StoreDir:                   "/data/concord/jetstream",
			MaxMemory:                  1 << 30,  // 1GB
			MaxStore:                   10 << 30, // 10GB
			StreamRetentionDays:        7,
			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterCloseTimeout:         30 * time.Second,
			BreakerMaxFailures:         5,
			BreakerOpenTimeout:         30 * time.Second,
		},
		Presence: PresenceConfig{
			TTL:           3 * time.Second,
			SweepInterval: time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			Casbin: CasbinConfig{
				DefaultRole:  "member",
				CacheEnabled: true,
				CacheTTL:     5 * time.Minute,
			},
		},
		Client: ClientConfig{
			ServerURL:            "http://127.0.0.1:2673",
			ReconnectBase:        time.Second,
			ReconnectCap:         32 * time.Second,
			ReconnectMaxAttempts: 10,
			TypingInterval:       2 * time.Second,
			RPCRetryAttempts:     3,
			RPCRetryDelay:        150 * time.Millisecond,
			RequestTimeout:       10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HTTP_PORT -> server.port
	// PRESENCE_TTL -> presence.ttl
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"websocket.allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - STORE_PATH -> store.path
//   - NATS_URL -> events.url
//   - JWT_SECRET -> security.jwt_secret
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":        "server.port",
		"http_host":        "server.host",
		"http_timeout":     "server.timeout",
		"shutdown_timeout": "server.shutdown_timeout",
		"environment":      "server.environment",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Store mappings
		"store_path":             "store.path",
		"store_in_memory":        "store.in_memory",
		"store_gc_interval":      "store.gc_interval",
		"store_gc_discard_ratio": "store.gc_discard_ratio",
		"store_conflict_retries": "store.conflict_retries",

		// WebSocket mappings
		"ws_send_buffer":     "websocket.send_buffer",
		"ws_read_limit":      "websocket.read_limit",
		"ws_write_timeout":   "websocket.write_timeout",
		"ws_pong_timeout":    "websocket.pong_timeout",
		"ws_ping_interval":   "websocket.ping_interval",
		"ws_allowed_origins": "websocket.allowed_origins",

		// Events mappings
		"events_transport":             "events.transport",
		"nats_url":                     "events.url",
		"nats_embedded":                "events.embedded_server",
		"nats_store_dir":               "events.store_dir",
		"nats_max_memory":              "events.max_memory",
		"nats_max_store":               "events.max_store",
		"nats_retention_days":          "events.stream_retention_days",
		"events_router_retry_count":    "events.router_retry_count",
		"events_router_retry_interval": "events.router_retry_initial_interval",
		"events_router_close_timeout":  "events.router_close_timeout",
		"events_breaker_failures":      "events.breaker_max_failures",
		"events_breaker_open_timeout":  "events.breaker_open_timeout",

		// Presence mappings
		"presence_ttl":            "presence.ttl",
		"presence_sweep_interval": "presence.sweep_interval",

		// Security mappings
		"jwt_secret":          "security.jwt_secret",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Casbin mappings
		"casbin_default_role":  "security.casbin.default_role",
		"casbin_cache_enabled": "security.casbin.cache_enabled",
		"casbin_cache_ttl":     "security.casbin.cache_ttl",

		// Client mappings
		"client_server_url":             "client.server_url",
		"client_origin":                 "client.origin",
		"client_reconnect_base":         "client.reconnect_base",
		"client_reconnect_cap":          "client.reconnect_cap",
		"client_reconnect_max_attempts": "client.reconnect_max_attempts",
		"client_typing_interval":        "client.typing_interval",
		"client_rpc_retry_attempts":     "client.rpc_retry_attempts",
		"client_rpc_retry_delay":        "client.rpc_retry_delay",
		"client_request_timeout":        "client.request_timeout",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
//
// Example usage:
//
//	var cfgMu sync.RWMutex
//	var cfg *Config
//
//	err := WatchConfigFile(configPath, func() {
//	    cfgMu.Lock()
//	    defer cfgMu.Unlock()
//	    newCfg, err := LoadWithKoanf()
//	    if err != nil {
//	        log.Printf("Config reload failed: %v", err)
//	        return
//	    }
//	    cfg = newCfg
//	})
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
