// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
)

// Errors
var (
	// ErrStoreClosed is returned when an operation is attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store owns the BadgerDB instance that holds entities, vote records and
// comments. All mutation goes through Update transactions; Badger's
// serializable snapshot isolation turns conflicting concurrent commits
// into badger.ErrConflict, which callers retry.
type Store struct {
	db  *badger.DB
	cfg config.StoreConfig

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the BadgerDB database described by cfg.
// With cfg.InMemory set, the store lives entirely in RAM and is destroyed
// on Close; this is the mode tests use.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{
		db:  db,
		cfg: cfg,
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Store opened")
	return s, nil
}

// DB exposes the underlying BadgerDB handle for packages that build their
// own transactions (the vote engine, the comment store).
func (s *Store) DB() *badger.DB {
	return s.db
}

// Config returns the store configuration.
func (s *Store) Config() config.StoreConfig {
	return s.cfg
}

// Healthy reports whether the store can serve transactions. Health
// endpoints consult this instead of issuing a probe read.
func (s *Store) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.db != nil && !s.db.IsClosed()
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	return s.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	return s.db.View(fn)
}

// RunGC triggers BadgerDB value log garbage collection, looping until no
// further rewrite is possible. In-memory stores have no value log, so the
// call is a no-op for them.
func (s *Store) RunGC() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	if s.cfg.InMemory {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreGC(time.Since(start))
	}()

	for {
		err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}

	return nil
}

// Close flushes and closes the database. The timeout bounds how long a
// wedged close may block shutdown.
func (s *Store) Close(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
