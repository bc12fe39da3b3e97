// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package main is the entry point for the Concord sync server.
//
// Concord is the realtime synchronization backend for community idea boards.
// It resolves votes on ideas and comments, fans the resulting score changes
// out to every browser watching the same board, and tracks who is typing in
// which comment thread.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Store: Open BadgerDB for entity scores, vote records, and comment threads
//  3. Event Transport: Watermill GoChannel (default) or NATS JetStream
//  4. Vote Engine and Comment Store: transactional resolution over the store
//  5. Presence Tracker and WebSocket Hub: typing state and room fan-out
//  6. Event Router: sync topic consumer bridging the bus into the hub
//  7. Authentication: JWT validation plus Casbin role enforcement
//  8. HTTP Server: REST API and the /api/v1/ws upgrade endpoint
//
// Every long-running component is registered with a suture supervisor tree
// and restarted on failure; main only constructs and wires them.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server  # Enable the NATS JetStream transport
//
// Without the tag, EVENTS_TRANSPORT=nats fails at startup with a hint to
// rebuild; the default GoChannel transport needs no tags.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Closes every WebSocket with a going-away frame
//   - Waits for in-flight requests to complete (10s timeout)
//   - Flushes and closes the BadgerDB store
//
// # Example Usage
//
// Development (in-memory store, console logs):
//
//	export STORE_IN_MEMORY=true
//	export LOG_FORMAT=console
//	export JWT_SECRET=dev-secret-of-at-least-32-characters
//	./concord
//
// Production with a persistent store:
//
//	export STORE_PATH=/data/concord
//	export JWT_SECRET=$(openssl rand -base64 32)
//	./concord
//
// Clustered with NATS JetStream (requires a -tags nats build):
//
//	export EVENTS_TRANSPORT=nats
//	export NATS_URL=nats://nats:4222
//	./concord
//
// Docker:
//
//	docker run -d \
//	  -e STORE_PATH=/data/concord \
//	  -e JWT_SECRET=your-32-plus-character-secret \
//	  -v concord-data:/data/concord \
//	  -p 2673:2673 \
//	  ghcr.io/jmercer/concord
//
// # Port 2673
//
// The default port 2673 spells CORD on a telephone keypad.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmercer/concord/internal/api"
	"github.com/jmercer/concord/internal/auth"
	"github.com/jmercer/concord/internal/authz"
	"github.com/jmercer/concord/internal/comments"
	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/events"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/presence"
	"github.com/jmercer/concord/internal/store"
	"github.com/jmercer/concord/internal/supervisor"
	"github.com/jmercer/concord/internal/supervisor/services"
	"github.com/jmercer/concord/internal/votes"
	ws "github.com/jmercer/concord/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Concord with supervisor tree")

	logging.Info().
		Str("transport", cfg.Events.Transport).
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(cfg.Server.ShutdownTimeout); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened successfully")

	// Event transport: in-process GoChannel by default, NATS JetStream when
	// built with -tags nats and EVENTS_TRANSPORT=nats. The transport owns
	// the broker lifecycle; the router below owns consumption.
	wmLogger := events.NewLoggerAdapter()
	transport, err := events.NewTransport(cfg.Events, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event transport")
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event transport")
		}
	}()

	publisher, err := events.NewPublisher(transport.Publisher(), cfg.Events, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()
	logging.Info().Str("transport", cfg.Events.Transport).Msg("Event transport initialized")

	// Create cancellable context for coordinated shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create supervisor tree with slog adapter for suture
	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Domain components. The tracker doubles as the hub's typing signaler,
	// so inbound typing frames flow hub -> tracker -> publisher -> bus and
	// come back through the bridge like every other event.
	engine := votes.NewEngine(st, publisher)
	commentStore := comments.NewStore(st, publisher)
	tracker := presence.NewTracker(cfg.Presence, publisher)
	wsHub := ws.NewHub(cfg.WebSocket, tracker)

	routerCfg := events.RouterConfigFrom(cfg.Events)
	eventRouter, err := events.NewRouter(&routerCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event router")
	}
	bridge := events.NewBridge(wsHub, wmLogger)
	bridge.Register(eventRouter, transport.Subscriber())

	jwtManager, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	logging.Info().Msg("JWT authentication enabled")

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(cfg.Security.Casbin))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}

	authMW := auth.NewMiddleware(jwtManager)
	authzMW := authz.NewMiddleware(enforcer)
	chiMW := api.NewChiMiddlewareFromConfig(&cfg.Security)

	handler := api.NewHandler(st, engine, commentStore, enforcer, wsHub, publisher, cfg)
	router := api.NewRouter(handler, authMW, authzMW, chiMW)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	tree.AddDataService(services.NewStoreGCService(store.NewGCRunner(st)))
	logging.Info().Dur("interval", cfg.Store.GCInterval).Msg("Store GC added to supervisor tree")

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddMessagingService(services.NewEventRouterService(eventRouter))
	tree.AddMessagingService(services.NewPresenceSweeperService(tracker))
	logging.Info().Msg("WebSocket hub, event router, and presence sweeper added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
