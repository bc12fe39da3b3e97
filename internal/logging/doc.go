// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package logging provides centralized zerolog-based structured logging for Concord.
//
// The package implements a unified logging layer using zerolog: zero-allocation
// structured JSON logging for production and human-readable console output for
// development.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Context-aware logging with request ID propagation
//   - slog adapter for the suture supervision tree
//   - Security-focused sanitization for attacker-controlled values
//
// # Quick Start
//
//	import "github.com/jmercer/concord/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("user", "alice").Msg("Vote resolved")
//	logging.Error().Err(err).Str("entity", id).Msg("Broadcast failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Msg("Processing request")
//
// # Log Levels
//
// Supported levels, most to least verbose:
//
//	trace, debug, info (default), warn, error, fatal
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	hubLogger := logging.WithComponent("hub")
//	hubLogger.Info().Msg("Hub started")
//
// # slog Adapter
//
// Libraries requiring slog.Logger (sutureslog) use the adapter:
//
//	slogLogger := logging.NewSlogLogger()
//
// # Output Formats
//
// JSON (production):
//
//	{"level":"info","time":"2026-08-25T10:30:00Z","message":"Server starting","port":8080}
//
// Console (development):
//
//	10:30:00 INF Server starting port=8080
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger is
// protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
//	output := buf.String()
//
// # See Also
//
//   - github.com/rs/zerolog: underlying logging library
//   - internal/middleware: request ID middleware for correlation
package logging
