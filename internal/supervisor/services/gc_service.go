// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package services

import (
	"context"
	"fmt"
)

// GCLoop interface matches the store's value-log GC runner lifecycle.
//
// Satisfied by *store.GCRunner from internal/store/gc.go:
//   - Start(ctx context.Context) error
//   - Stop()
type GCLoop interface {
	Start(ctx context.Context) error
	Stop()
}

// StoreGCService wraps the BadgerDB value-log GC runner as a supervised
// service in the data layer.
//
// Badger never reclaims value-log space on its own; the runner calls
// RunValueLogGC on a timer. The wrapper adapts the Start/Stop lifecycle
// to suture's Serve pattern:
//
//  1. Calls Start(ctx) to begin the GC loop
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown (waits for the goroutine)
type StoreGCService struct {
	gc   GCLoop
	name string
}

// NewStoreGCService creates a new store GC service wrapper.
//
// Example usage:
//
//	runner := store.NewGCRunner(st)
//	svc := services.NewStoreGCService(runner)
//	tree.AddDataService(svc)
func NewStoreGCService(gc GCLoop) *StoreGCService {
	return &StoreGCService{
		gc:   gc,
		name: "store-gc",
	}
}

// Serve implements suture.Service.
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *StoreGCService) Serve(ctx context.Context) error {
	if err := s.gc.Start(ctx); err != nil {
		return fmt.Errorf("store gc start failed: %w", err)
	}

	<-ctx.Done()

	// Stop blocks until the GC goroutine exits
	s.gc.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *StoreGCService) String() string {
	return s.name
}
