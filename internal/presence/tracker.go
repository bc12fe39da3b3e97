// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package presence tracks who is typing in which idea thread.
//
// Typing state is soft: every entry carries its own expiry, a repeat signal
// re-arms the entry in place, and an entry disappears on an explicit stop or
// on timeout, whichever comes first. A background sweeper publishes
// user:stoppedTyping for entries that lapse without an explicit stop; reads
// treat lapsed entries as absent without waiting for the sweep. Losing a
// stop event is therefore harmless: the state self-heals within one TTL.
package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
)

const (
	defaultTTL           = 3 * time.Second
	defaultSweepInterval = time.Second
)

// ErrInvalidSignal is returned for typing signals missing an entity or user id.
var ErrInvalidSignal = errors.New("typing signal missing entity or user id")

// EventPublisher pushes typing lifecycle events onto the bus for room
// fan-out. Satisfied by *events.Publisher; kept as a local interface so the
// tracker stays decoupled from the transport.
type EventPublisher interface {
	PublishTyping(ctx context.Context, entityID, userID, username string) error
	PublishStoppedTyping(ctx context.Context, entityID, userID string) error
}

// User is one active typist in a room.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// key identifies one typing entry.
type key struct {
	entityID string
	userID   string
}

// entry carries its own expiry. A repeat signal replaces the entry with a
// fresh deadline rather than creating a duplicate.
type entry struct {
	username  string
	expiresAt time.Time
}

// Tracker holds typing entries per (entity, user) pair and runs the expiry
// sweep. Entries live only in memory; a restart simply clears the board.
type Tracker struct {
	ttl           time.Duration
	sweepInterval time.Duration
	publisher     EventPublisher

	mu      sync.RWMutex
	entries map[key]entry

	// Sweeper control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runMu   sync.Mutex
	running bool
}

// NewTracker creates a tracker. The publisher may be nil, in which case
// state is tracked locally but no events leave the process (used in tests).
func NewTracker(cfg config.PresenceConfig, publisher EventPublisher) *Tracker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}

	return &Tracker{
		ttl:           ttl,
		sweepInterval: sweep,
		publisher:     publisher,
		entries:       make(map[key]entry),
	}
}

// Typing records a typing signal, arming or re-arming the (entity, user)
// entry, and publishes user:typing to the entity's room. Every signal is
// republished so that viewers who joined after the first one still learn
// about the typist; receivers re-arm their own display timers per event.
func (t *Tracker) Typing(ctx context.Context, entityID, userID, username string) error {
	if entityID == "" || userID == "" {
		return ErrInvalidSignal
	}

	k := key{entityID: entityID, userID: userID}
	now := time.Now()

	t.mu.Lock()
	_, rearmed := t.entries[k]
	t.entries[k] = entry{username: username, expiresAt: now.Add(t.ttl)}
	active := len(t.entries)
	t.mu.Unlock()

	metrics.RecordTypingSignal()
	metrics.SetTypingActive(active)

	if !rearmed {
		logging.Debug().
			Str("entity_id", entityID).
			Str("user_id", userID).
			Msg("Typing started")
	}

	if t.publisher == nil {
		return nil
	}
	return t.publisher.PublishTyping(ctx, entityID, userID, username)
}

// StoppedTyping removes the (entity, user) entry and publishes
// user:stoppedTyping. The stop event is published even when no entry
// remains: the entry may have lapsed between sweeps, and receivers treat a
// stop for an unknown typist as a no-op.
func (t *Tracker) StoppedTyping(ctx context.Context, entityID, userID string) error {
	if entityID == "" || userID == "" {
		return ErrInvalidSignal
	}

	k := key{entityID: entityID, userID: userID}

	t.mu.Lock()
	_, existed := t.entries[k]
	delete(t.entries, k)
	active := len(t.entries)
	t.mu.Unlock()

	if existed {
		metrics.RecordTypingExpiry("stopped")
		metrics.SetTypingActive(active)
		logging.Debug().
			Str("entity_id", entityID).
			Str("user_id", userID).
			Msg("Typing stopped")
	}

	if t.publisher == nil {
		return nil
	}
	return t.publisher.PublishStoppedTyping(ctx, entityID, userID)
}

// Active returns the users currently typing in the entity's room, ordered
// by user id. Lapsed entries are skipped but not removed here: removal
// stays with the sweeper so the stop event is still published exactly once.
func (t *Tracker) Active(entityID string) []User {
	now := time.Now()

	t.mu.RLock()
	var users []User
	for k, e := range t.entries {
		if k.entityID != entityID || now.After(e.expiresAt) {
			continue
		}
		users = append(users, User{UserID: k.userID, Username: e.username})
	}
	t.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Count returns the number of live typing entries across all rooms.
func (t *Tracker) Count() int {
	now := time.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if !now.After(e.expiresAt) {
			count++
		}
	}
	return count
}

// Start begins the background expiry sweep.
func (t *Tracker) Start(ctx context.Context) error {
	t.runMu.Lock()
	if t.running {
		t.runMu.Unlock()
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	t.runMu.Unlock()

	t.wg.Add(1)
	go t.run()

	logging.Info().
		Dur("ttl", t.ttl).
		Dur("interval", t.sweepInterval).
		Msg("Presence sweeper started")
	return nil
}

// Stop gracefully stops the sweep loop.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	if !t.running {
		t.runMu.Unlock()
		return
	}
	t.cancel()
	t.running = false
	t.runMu.Unlock()

	t.wg.Wait()
	logging.Info().Msg("Presence sweeper stopped")
}

// IsRunning returns whether the sweeper is active.
func (t *Tracker) IsRunning() bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	return t.running
}

// run is the sweep loop goroutine.
func (t *Tracker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.sweepExpired(time.Now())
		}
	}
}

// sweepExpired removes every lapsed entry and publishes the stop event each
// owes its room. Publishing happens outside the lock.
func (t *Tracker) sweepExpired(now time.Time) {
	t.mu.Lock()
	var expired []key
	for k, e := range t.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, k)
			delete(t.entries, k)
		}
	}
	active := len(t.entries)
	t.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	metrics.SetTypingActive(active)
	for _, k := range expired {
		metrics.RecordTypingExpiry("timeout")
		if t.publisher == nil {
			continue
		}
		if err := t.publisher.PublishStoppedTyping(t.ctx, k.entityID, k.userID); err != nil {
			logging.Warn().Err(err).
				Str("entity_id", k.entityID).
				Str("user_id", k.userID).
				Msg("Failed to publish typing expiry")
		}
	}

	logging.Debug().Int("expired", len(expired)).Msg("Typing entries swept")
}
