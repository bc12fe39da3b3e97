// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultTypingInterval spaces typing frames when the config leaves the
// interval unset.
const defaultTypingInterval = 2 * time.Second

// TypingSender is the transport a throttle signals through. *Conn
// satisfies it.
type TypingSender interface {
	Typing(entityID string) error
	StoppedTyping(entityID string) error
}

// TypingThrottle rate-limits typing signals per entity so a keystroke
// storm produces at most one frame per interval. The explicit stop
// always passes; a suppressed stop would leave the indicator stuck
// until the server-side timer cleared it.
//
// Safe for concurrent use.
type TypingThrottle struct {
	sender   TypingSender
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTypingThrottle wraps a sender with per-entity rate limiting.
func NewTypingThrottle(sender TypingSender, interval time.Duration) *TypingThrottle {
	if interval <= 0 {
		interval = defaultTypingInterval
	}
	return &TypingThrottle{
		sender:   sender,
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Typing forwards a typing signal unless one was already sent for this
// entity within the interval. Suppression is not an error; the earlier
// frame already re-armed the server-side timer.
func (t *TypingThrottle) Typing(entityID string) error {
	if !t.limiterFor(entityID).Allow() {
		return nil
	}
	return t.sender.Typing(entityID)
}

// Stop forwards the stop signal unconditionally and retires the
// entity's limiter; the next typing burst starts fresh.
func (t *TypingThrottle) Stop(entityID string) error {
	t.mu.Lock()
	delete(t.limiters, entityID)
	t.mu.Unlock()

	return t.sender.StoppedTyping(entityID)
}

// limiterFor returns the entity's limiter, creating it on first use.
// Burst 1 lets the first keystroke through immediately.
func (t *TypingThrottle) limiterFor(entityID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[entityID]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[entityID] = l
	}
	return l
}
