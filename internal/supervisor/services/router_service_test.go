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

// mockRouter is a test double for EventRouter interface.
type mockRouter struct {
	runErr   error
	runCount atomic.Int32
}

func (m *mockRouter) Run(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestEventRouterService_Interface(t *testing.T) {
	var _ suture.Service = (*EventRouterService)(nil)
}

func TestNewEventRouterService(t *testing.T) {
	router := &mockRouter{}
	svc := NewEventRouterService(router)

	if svc == nil {
		t.Fatal("NewEventRouterService returned nil")
	}
	if svc.name != "event-router" {
		t.Errorf("expected name 'event-router', got %q", svc.name)
	}
}

func TestEventRouterService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		router := &mockRouter{}
		svc := NewEventRouterService(router)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after context cancellation")
		}

		if router.runCount.Load() != 1 {
			t.Errorf("expected 1 run, got %d", router.runCount.Load())
		}
	})

	t.Run("propagates router errors for restart", func(t *testing.T) {
		expectedErr := errors.New("subscription failed")
		router := &mockRouter{runErr: expectedErr}
		svc := NewEventRouterService(router)

		err := svc.Serve(context.Background())
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected %v, got %v", expectedErr, err)
		}
	})
}

func TestEventRouterService_String(t *testing.T) {
	svc := NewEventRouterService(&mockRouter{})
	if svc.String() != "event-router" {
		t.Errorf("expected 'event-router', got %q", svc.String())
	}
}
