// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testJWTSecret satisfies the JWT_SECRET requirement in loader tests.
const testJWTSecret = "koanf-test-secret-0123456789-0123456789"

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Server defaults
	if cfg.Server.Port != 2673 {
		t.Errorf("Server.Port = %d, want 2673", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want development", cfg.Server.Environment)
	}

	// Store defaults
	if cfg.Store.Path != "/data/concord" {
		t.Errorf("Store.Path = %q, want /data/concord", cfg.Store.Path)
	}
	if cfg.Store.InMemory {
		t.Error("Store.InMemory should be false by default")
	}
	if cfg.Store.ConflictRetries != 3 {
		t.Errorf("Store.ConflictRetries = %d, want 3", cfg.Store.ConflictRetries)
	}

	// WebSocket defaults
	if cfg.WebSocket.SendBuffer != 64 {
		t.Errorf("WebSocket.SendBuffer = %d, want 64", cfg.WebSocket.SendBuffer)
	}
	if cfg.WebSocket.PingInterval >= cfg.WebSocket.PongTimeout {
		t.Error("default PingInterval must be shorter than PongTimeout")
	}

	// Events defaults (in-process transport)
	if cfg.Events.Transport != "gochannel" {
		t.Errorf("Events.Transport = %q, want gochannel", cfg.Events.Transport)
	}
	if cfg.Events.URL != "nats://127.0.0.1:4222" {
		t.Errorf("Events.URL = %q, want nats://127.0.0.1:4222", cfg.Events.URL)
	}
	if cfg.Events.MaxMemory != 1<<30 {
		t.Errorf("Events.MaxMemory = %d, want 1GB", cfg.Events.MaxMemory)
	}

	// Presence defaults
	if cfg.Presence.TTL != 3*time.Second {
		t.Errorf("Presence.TTL = %v, want 3s", cfg.Presence.TTL)
	}
	if cfg.Presence.SweepInterval != time.Second {
		t.Errorf("Presence.SweepInterval = %v, want 1s", cfg.Presence.SweepInterval)
	}

	// Security defaults
	if cfg.Security.JWTSecret != "" {
		t.Error("Security.JWTSecret should be empty by default (required)")
	}
	if cfg.Security.RateLimitReqs != 100 {
		t.Errorf("Security.RateLimitReqs = %d, want 100", cfg.Security.RateLimitReqs)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
	if cfg.Security.Casbin.DefaultRole != "member" {
		t.Errorf("Security.Casbin.DefaultRole = %q, want member", cfg.Security.Casbin.DefaultRole)
	}

	// Client defaults
	if cfg.Client.ReconnectBase != time.Second {
		t.Errorf("Client.ReconnectBase = %v, want 1s", cfg.Client.ReconnectBase)
	}
	if cfg.Client.ReconnectCap != 32*time.Second {
		t.Errorf("Client.ReconnectCap = %v, want 32s", cfg.Client.ReconnectCap)
	}
	if cfg.Client.ReconnectMaxAttempts != 10 {
		t.Errorf("Client.ReconnectMaxAttempts = %d, want 10", cfg.Client.ReconnectMaxAttempts)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Server
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"HTTP_TIMEOUT", "server.timeout"},
		{"ENVIRONMENT", "server.environment"},

		// Store
		{"STORE_PATH", "store.path"},
		{"STORE_IN_MEMORY", "store.in_memory"},
		{"STORE_CONFLICT_RETRIES", "store.conflict_retries"},

		// WebSocket
		{"WS_SEND_BUFFER", "websocket.send_buffer"},
		{"WS_ALLOWED_ORIGINS", "websocket.allowed_origins"},

		// Events
		{"EVENTS_TRANSPORT", "events.transport"},
		{"NATS_URL", "events.url"},
		{"NATS_EMBEDDED", "events.embedded_server"},
		{"NATS_MAX_MEMORY", "events.max_memory"},
		{"NATS_RETENTION_DAYS", "events.stream_retention_days"},

		// Presence
		{"PRESENCE_TTL", "presence.ttl"},
		{"PRESENCE_SWEEP_INTERVAL", "presence.sweep_interval"},

		// Security
		{"JWT_SECRET", "security.jwt_secret"},
		{"RATE_LIMIT_REQUESTS", "security.rate_limit_reqs"},
		{"DISABLE_RATE_LIMIT", "security.rate_limit_disabled"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"CASBIN_DEFAULT_ROLE", "security.casbin.default_role"},

		// Client
		{"CLIENT_SERVER_URL", "client.server_url"},
		{"CLIENT_ORIGIN", "client.origin"},
		{"CLIENT_RECONNECT_CAP", "client.reconnect_cap"},

		// Logging
		{"LOG_LEVEL", "logging.level"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := envTransformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Save original working directory
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	}()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	t.Run("no config file exists", func(t *testing.T) {
		os.Unsetenv(ConfigPathEnvVar)
		result := findConfigFile()
		if result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("test: true"), 0644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		os.Unsetenv(ConfigPathEnvVar)
		result := findConfigFile()
		if result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom_config.yaml")
		if err := os.WriteFile(customPath, []byte("test: true"), 0644); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}
		defer os.Remove(customPath)

		os.Setenv(ConfigPathEnvVar, customPath)
		defer os.Unsetenv(ConfigPathEnvVar)

		result := findConfigFile()
		if result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("CONFIG_PATH env var with non-existent file", func(t *testing.T) {
		os.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		defer os.Unsetenv(ConfigPathEnvVar)

		result := findConfigFile()
		if result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

// TestLoadWithKoanfEnvVars tests loading configuration from environment variables
func TestLoadWithKoanfEnvVars(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("JWT_SECRET", testJWTSecret)

	// Custom values overriding defaults
	os.Setenv("HTTP_PORT", "9000")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("STORE_IN_MEMORY", "true")
	os.Setenv("PRESENCE_TTL", "5s")
	os.Setenv("CLIENT_RECONNECT_MAX_ATTEMPTS", "4")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Verify custom overrides
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory = false, want true")
	}
	if cfg.Presence.TTL != 5*time.Second {
		t.Errorf("Presence.TTL = %v, want 5s", cfg.Presence.TTL)
	}
	if cfg.Client.ReconnectMaxAttempts != 4 {
		t.Errorf("Client.ReconnectMaxAttempts = %d, want 4", cfg.Client.ReconnectMaxAttempts)
	}

	// Verify defaults are still applied for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Events.Transport != "gochannel" {
		t.Errorf("Events.Transport = %q, want gochannel (default)", cfg.Events.Transport)
	}
}

// TestLoadWithKoanfConfigFile tests loading configuration from a YAML file
func TestLoadWithKoanfConfigFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `
server:
  port: 8888
  host: "127.0.0.1"

store:
  in_memory: true

presence:
  ttl: 4s

security:
  jwt_secret: "config-file-secret-0123456789-012345"

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Clearenv()
	defer os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Verify values from config file
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory = false, want true")
	}
	if cfg.Presence.TTL != 4*time.Second {
		t.Errorf("Presence.TTL = %v, want 4s", cfg.Presence.TTL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}

	// Verify defaults are still applied for unset values
	if cfg.Events.Transport != "gochannel" {
		t.Errorf("Events.Transport = %q, want gochannel (default)", cfg.Events.Transport)
	}
}

// TestLoadWithKoanfEnvOverridesFile tests that env vars override config file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `
server:
  port: 8888

security:
  jwt_secret: "config-file-secret-0123456789-012345"

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Clearenv()
	defer os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Env wins over file
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env over file)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env over file)", cfg.Logging.Level)
	}

	// File still wins over defaults
	if cfg.Security.JWTSecret != "config-file-secret-0123456789-012345" {
		t.Errorf("Security.JWTSecret = %q, want file value", cfg.Security.JWTSecret)
	}
}

// TestLoadWithKoanfSliceFields tests comma-separated env vars become slices
func TestLoadWithKoanfSliceFields(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("JWT_SECRET", testJWTSecret)
	os.Setenv("CORS_ORIGINS", "https://ideas.example.com, https://admin.example.com")
	os.Setenv("WS_ALLOWED_ORIGINS", "https://ideas.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	want := []string{"https://ideas.example.com", "https://admin.example.com"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}

	if len(cfg.WebSocket.AllowedOrigins) != 1 || cfg.WebSocket.AllowedOrigins[0] != "https://ideas.example.com" {
		t.Errorf("WebSocket.AllowedOrigins = %v, want single origin", cfg.WebSocket.AllowedOrigins)
	}
}

// TestLoadWithKoanfRejectsInvalid tests that validation runs during load
func TestLoadWithKoanfRejectsInvalid(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("JWT_SECRET", testJWTSecret)
	os.Setenv("HTTP_PORT", "99999")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("LoadWithKoanf() should reject out-of-range HTTP_PORT")
	}
}

// TestLoadDelegatesToKoanf verifies the Load alias
func TestLoadDelegatesToKoanf(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	os.Setenv("JWT_SECRET", testJWTSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 2673 {
		t.Errorf("Server.Port = %d, want default 2673", cfg.Server.Port)
	}
}
