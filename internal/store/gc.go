// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package store

import (
	"context"
	"sync"
	"time"

	"github.com/jmercer/concord/internal/logging"
)

// GCRunner triggers periodic BadgerDB value log garbage collection.
// It runs as a supervised service under the application's supervision tree.
type GCRunner struct {
	store    *Store
	interval time.Duration

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewGCRunner creates a GC runner for the store using the configured
// GC interval.
func NewGCRunner(s *Store) *GCRunner {
	return &GCRunner{
		store:    s,
		interval: s.Config().GCInterval,
	}
}

// Start begins the background GC loop.
func (g *GCRunner) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}

	g.ctx, g.cancel = context.WithCancel(ctx)
	g.running = true
	g.mu.Unlock()

	g.wg.Add(1)
	go g.run()

	logging.Info().Dur("interval", g.interval).Msg("Store GC runner started")
	return nil
}

// Stop gracefully stops the GC loop.
func (g *GCRunner) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.cancel()
	g.running = false
	g.mu.Unlock()

	g.wg.Wait()
	logging.Info().Msg("Store GC runner stopped")
}

// IsRunning returns whether the GC loop is active.
func (g *GCRunner) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// run is the main GC loop goroutine.
func (g *GCRunner) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.collect()
		}
	}
}

// collect runs one GC pass and records the outcome.
func (g *GCRunner) collect() {
	start := time.Now()

	if err := g.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Store GC run failed")
		return
	}

	g.mu.Lock()
	g.lastRun = time.Now()
	g.mu.Unlock()

	logging.Debug().Dur("duration", time.Since(start)).Msg("Store GC run completed")
}

// LastRun returns the time of the last successful GC pass.
func (g *GCRunner) LastRun() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRun
}
