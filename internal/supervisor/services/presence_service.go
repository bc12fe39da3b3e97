// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package services

import (
	"context"
	"fmt"
)

// PresenceSweeper interface matches the presence tracker lifecycle.
//
// This interface abstracts the tracker's Start/Stop pattern, allowing the
// wrapper to adapt it to suture's Serve pattern without importing the
// presence package.
//
// Satisfied by *presence.Tracker from internal/presence/tracker.go:
//   - Start(ctx context.Context) error
//   - Stop()
type PresenceSweeper interface {
	Start(ctx context.Context) error
	Stop()
}

// PresenceSweeperService wraps the presence tracker as a supervised service.
//
// The sweeper expires stale typing indicators whose owners disconnected
// without sending a stop signal. It adapts the Start/Stop lifecycle to
// suture's Serve pattern:
//
//  1. Calls Start(ctx) to begin the sweep loop
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown (waits for the goroutine)
type PresenceSweeperService struct {
	sweeper PresenceSweeper
	name    string
}

// NewPresenceSweeperService creates a new presence sweeper service wrapper.
//
// Example usage:
//
//	tracker := presence.NewTracker(cfg.Presence, publisher)
//	svc := services.NewPresenceSweeperService(tracker)
//	tree.AddMessagingService(svc)
func NewPresenceSweeperService(sweeper PresenceSweeper) *PresenceSweeperService {
	return &PresenceSweeperService{
		sweeper: sweeper,
		name:    "presence-sweeper",
	}
}

// Serve implements suture.Service.
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *PresenceSweeperService) Serve(ctx context.Context) error {
	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("presence sweeper start failed: %w", err)
	}

	<-ctx.Done()

	// Stop blocks until the sweep goroutine exits
	s.sweeper.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *PresenceSweeperService) String() string {
	return s.name
}
