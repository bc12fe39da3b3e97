// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package services provides suture.Service wrappers for Concord components.

This package adapts the application's long-running components to the suture v4
supervision model, translating their lifecycle patterns (Start/Stop, Run,
ListenAndServe) into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub's blocking Run loop
  - Handles client connection cleanup on shutdown
  - Sends close frames to connected clients before exiting

Event Router (EventRouterService):
  - Wraps events.Router's blocking Run loop
  - Drives the subscription that feeds broadcasts into the hub
  - Restarting it re-establishes the bus subscription

Presence Sweeper (PresenceSweeperService):
  - Wraps presence.Tracker with Start/Stop lifecycle
  - Expires stale typing indicators on a timer

Store GC (StoreGCService):
  - Wraps store.GCRunner with Start/Stop lifecycle
  - Runs BadgerDB value-log garbage collection periodically

# Interface-Based Design

Each wrapper depends on a small local interface rather than the concrete
component, so this package imports none of the component packages and the
wrappers are testable with in-memory fakes.
*/
package services
