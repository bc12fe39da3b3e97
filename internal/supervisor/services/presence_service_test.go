// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockSweeper simulates the presence tracker for testing.
// It matches the PresenceSweeper interface.
type mockSweeper struct {
	started    atomic.Bool
	stopped    atomic.Bool
	startError error
}

func (m *mockSweeper) Start(ctx context.Context) error {
	if m.startError != nil {
		return m.startError
	}
	m.started.Store(true)
	return nil
}

func (m *mockSweeper) Stop() {
	m.stopped.Store(true)
}

func TestPresenceSweeperService_Interface(t *testing.T) {
	var _ suture.Service = (*PresenceSweeperService)(nil)
}

func TestPresenceSweeperService(t *testing.T) {
	t.Run("starts underlying sweeper", func(t *testing.T) {
		sweeper := &mockSweeper{}
		svc := NewPresenceSweeperService(sweeper)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- svc.Serve(ctx)
		}()

		// Wait for service to start with polling (more reliable in CI under load)
		var started bool
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			if sweeper.started.Load() {
				started = true
				break
			}
		}
		if !started {
			t.Error("sweeper was not started")
		}

		// Let context expire
		<-done
	})

	t.Run("stops sweeper on context cancellation", func(t *testing.T) {
		sweeper := &mockSweeper{}
		svc := NewPresenceSweeperService(sweeper)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- svc.Serve(ctx)
		}()

		// Wait for start with polling (more reliable in CI under load)
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			if sweeper.started.Load() {
				break
			}
		}
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("service did not stop in time")
		}

		if !sweeper.stopped.Load() {
			t.Error("sweeper was not stopped")
		}
	})

	t.Run("propagates start error for restart", func(t *testing.T) {
		expectedErr := errors.New("publisher unavailable")
		sweeper := &mockSweeper{startError: expectedErr}
		svc := NewPresenceSweeperService(sweeper)

		err := svc.Serve(context.Background())
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected %v, got %v", expectedErr, err)
		}
		if sweeper.stopped.Load() {
			t.Error("Stop should not be called when Start fails")
		}
	})
}

func TestPresenceSweeperService_String(t *testing.T) {
	svc := NewPresenceSweeperService(&mockSweeper{})
	if svc.String() != "presence-sweeper" {
		t.Errorf("expected 'presence-sweeper', got %q", svc.String())
	}
}
