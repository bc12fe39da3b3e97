// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package votes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/models"
	"github.com/jmercer/concord/internal/store"
)

type capturePublisher struct {
	mu      sync.Mutex
	results []*models.VoteResult
	err     error
}

func (p *capturePublisher) PublishVoteResult(_ context.Context, result *models.VoteResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return p.err
}

func (p *capturePublisher) published() []*models.VoteResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.VoteResult, len(p.results))
	copy(out, p.results)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *capturePublisher) {
	t.Helper()

	s, err := store.Open(config.StoreConfig{
		InMemory:        true,
		GCInterval:      time.Minute,
		GCDiscardRatio:  0.5,
		ConflictRetries: 10,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close(5 * time.Second)
	})

	pub := &capturePublisher{}
	return NewEngine(s, pub), pub
}

func seedIdea(t *testing.T, e *Engine, id string) models.EntityRef {
	t.Helper()

	ref := models.IdeaRef(id)
	if err := e.EnsureEntity(context.Background(), ref); err != nil {
		t.Fatalf("seed entity %s: %v", id, err)
	}
	return ref
}

func TestResolve_Create(t *testing.T) {
	tests := []struct {
		name      string
		direction models.VoteDirection
		wantScore int64
	}{
		{"first upvote", models.DirectionUp, 1},
		{"first downvote", models.DirectionDown, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			ref := seedIdea(t, e, "idea-1")

			result, err := e.Resolve(context.Background(), "alice", ref, tt.direction)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if result.NewScore != tt.wantScore {
				t.Errorf("score = %d, want %d", result.NewScore, tt.wantScore)
			}
			if result.EffectiveDirection != tt.direction {
				t.Errorf("direction = %q, want %q", result.EffectiveDirection, tt.direction)
			}
		})
	}
}

func TestResolve_ToggleOff(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	// Same direction again removes the vote entirely
	result, err := e.Resolve(ctx, "alice", ref, models.DirectionUp)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if result.NewScore != 0 {
		t.Errorf("score = %d, want 0", result.NewScore)
	}
	if result.EffectiveDirection != models.DirectionNone {
		t.Errorf("direction = %q, want none", result.EffectiveDirection)
	}

	// The record is gone: a third vote is a fresh create
	result, err = e.Resolve(ctx, "alice", ref, models.DirectionUp)
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if result.NewScore != 1 || result.EffectiveDirection != models.DirectionUp {
		t.Errorf("revote = %d/%q, want 1/up", result.NewScore, result.EffectiveDirection)
	}
}

func TestResolve_Flip(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	// Opposite direction moves the score by two
	result, err := e.Resolve(ctx, "alice", ref, models.DirectionDown)
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if result.NewScore != -1 {
		t.Errorf("score = %d, want -1", result.NewScore)
	}
	if result.EffectiveDirection != models.DirectionDown {
		t.Errorf("direction = %q, want down", result.EffectiveDirection)
	}
}

func TestResolve_FullCycle(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	steps := []struct {
		direction     models.VoteDirection
		wantScore     int64
		wantEffective models.VoteDirection
	}{
		{models.DirectionUp, 1, models.DirectionUp},      // create
		{models.DirectionUp, 0, models.DirectionNone},    // toggle off
		{models.DirectionDown, -1, models.DirectionDown}, // create down
		{models.DirectionUp, 1, models.DirectionUp},      // flip
		{models.DirectionDown, -1, models.DirectionDown}, // flip back
		{models.DirectionDown, 0, models.DirectionNone},  // toggle off
	}

	for i, step := range steps {
		result, err := e.Resolve(ctx, "alice", ref, step.direction)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step.direction, err)
		}
		if result.NewScore != step.wantScore {
			t.Errorf("step %d: score = %d, want %d", i, result.NewScore, step.wantScore)
		}
		if result.EffectiveDirection != step.wantEffective {
			t.Errorf("step %d: direction = %q, want %q", i, result.EffectiveDirection, step.wantEffective)
		}
	}
}

func TestResolve_MissingEntity(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Resolve(context.Background(), "alice", models.IdeaRef("ghost"), models.DirectionUp)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionNone); err == nil {
		t.Error("expected error for direction none")
	}
	if _, err := e.Resolve(ctx, "alice", ref, models.VoteDirection("sideways")); err == nil {
		t.Error("expected error for unknown direction")
	}
	if _, err := e.Resolve(ctx, "", ref, models.DirectionUp); err == nil {
		t.Error("expected error for empty user id")
	}
	if _, err := e.Resolve(ctx, "alice", models.EntityRef{}, models.DirectionUp); err == nil {
		t.Error("expected error for empty entity ref")
	}
}

func TestResolve_DistinctUsersCompose(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("alice: %v", err)
	}
	result, err := e.Resolve(ctx, "bob", ref, models.DirectionUp)
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	if result.NewScore != 2 {
		t.Errorf("score = %d, want 2", result.NewScore)
	}

	// A third user voting down brings it to 1
	result, err = e.Resolve(ctx, "carol", ref, models.DirectionDown)
	if err != nil {
		t.Fatalf("carol: %v", err)
	}
	if result.NewScore != 1 {
		t.Errorf("score = %d, want 1", result.NewScore)
	}
}

func TestResolve_ConcurrentVotersAllLand(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "contested")
	ctx := context.Background()

	// Sixteen distinct users vote up concurrently; every delta must land,
	// with commit conflicts absorbed by the retry loop
	const voters = 16
	var wg sync.WaitGroup
	errs := make(chan error, voters)

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.Resolve(ctx, fmt.Sprintf("voter-%d", n), ref, models.DirectionUp)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent resolve: %v", err)
		}
	}

	snap, err := e.Snapshot(ctx, "observer", ref)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Score != voters {
		t.Errorf("final score = %d, want %d", snap.Score, voters)
	}
}

func TestResolve_SameUserConcurrentStaysConsistent(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	// Rapid double-click: two concurrent identical votes by one user must
	// serialize into create-then-toggle or conflict out, never double-apply
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Conflict exhaustion is acceptable; double-applying is not
			e.Resolve(ctx, "alice", ref, models.DirectionUp) //nolint:errcheck
		}()
	}
	wg.Wait()

	snap, err := e.Snapshot(ctx, "alice", ref)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Invariant: the score equals the delta of the user's active record
	if snap.Score != snap.ViewerDirection.Delta() {
		t.Errorf("score %d inconsistent with viewer direction %q", snap.Score, snap.ViewerDirection)
	}
	if snap.Score < 0 || snap.Score > 1 {
		t.Errorf("score = %d, want 0 or 1", snap.Score)
	}
}

func TestResolve_PublishesResult(t *testing.T) {
	e, pub := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")

	if _, err := e.Resolve(context.Background(), "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	results := pub.published()
	if len(results) != 1 {
		t.Fatalf("published %d results, want 1", len(results))
	}
	if results[0].Ref != ref {
		t.Errorf("published ref = %+v, want %+v", results[0].Ref, ref)
	}
	if results[0].NewScore != 1 {
		t.Errorf("published score = %d, want 1", results[0].NewScore)
	}
}

func TestResolve_PublishFailureDoesNotFailRPC(t *testing.T) {
	e, pub := newTestEngine(t)
	pub.err = errors.New("bus unavailable")
	ref := seedIdea(t, e, "idea-1")

	result, err := e.Resolve(context.Background(), "alice", ref, models.DirectionUp)
	if err != nil {
		t.Fatalf("Resolve = %v, want success despite publish failure", err)
	}
	if result.NewScore != 1 {
		t.Errorf("score = %d, want 1", result.NewScore)
	}
}

func TestResolve_CommentEntity(t *testing.T) {
	e, pub := newTestEngine(t)
	ref := models.CommentRef("idea-1", "comment-1")
	if err := e.EnsureEntity(context.Background(), ref); err != nil {
		t.Fatalf("seed comment entity: %v", err)
	}

	result, err := e.Resolve(context.Background(), "alice", ref, models.DirectionUp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.NewScore != 1 {
		t.Errorf("score = %d, want 1", result.NewScore)
	}

	// The published result keeps the parent id so the dispatcher can route
	// through the idea's room
	results := pub.published()
	if len(results) != 1 {
		t.Fatalf("published %d results, want 1", len(results))
	}
	if results[0].Ref.RoomID() != "idea-1" {
		t.Errorf("room id = %q, want idea-1", results[0].Ref.RoomID())
	}
}

func TestResolve_ContextCanceled(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	t.Run("fresh entity", func(t *testing.T) {
		snap, err := e.Snapshot(ctx, "alice", ref)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Score != 0 {
			t.Errorf("score = %d, want 0", snap.Score)
		}
		if snap.ViewerDirection != models.DirectionNone {
			t.Errorf("direction = %q, want none", snap.ViewerDirection)
		}
	})

	t.Run("viewer sees own vote", func(t *testing.T) {
		if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
			t.Fatalf("Resolve: %v", err)
		}

		snap, err := e.Snapshot(ctx, "alice", ref)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Score != 1 || snap.ViewerDirection != models.DirectionUp {
			t.Errorf("snapshot = %d/%q, want 1/up", snap.Score, snap.ViewerDirection)
		}
	})

	t.Run("other viewer sees score only", func(t *testing.T) {
		snap, err := e.Snapshot(ctx, "bob", ref)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Score != 1 || snap.ViewerDirection != models.DirectionNone {
			t.Errorf("snapshot = %d/%q, want 1/none", snap.Score, snap.ViewerDirection)
		}
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := e.Snapshot(ctx, "alice", models.IdeaRef("ghost"))
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestEnsureEntity_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Re-ensuring must not reset the score
	if err := e.EnsureEntity(ctx, ref); err != nil {
		t.Fatalf("EnsureEntity: %v", err)
	}

	snap, err := e.Snapshot(ctx, "alice", ref)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Score != 1 {
		t.Errorf("score = %d after re-ensure, want 1", snap.Score)
	}
}

func TestRemoveEntity(t *testing.T) {
	e, _ := newTestEngine(t)
	ref := seedIdea(t, e, "idea-1")
	ctx := context.Background()

	if _, err := e.Resolve(ctx, "alice", ref, models.DirectionUp); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := e.Resolve(ctx, "bob", ref, models.DirectionDown); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if err := e.RemoveEntity(ctx, ref); err != nil {
		t.Fatalf("RemoveEntity: %v", err)
	}

	if _, err := e.Snapshot(ctx, "alice", ref); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Snapshot after remove = %v, want ErrNotFound", err)
	}

	// Recreating starts clean: no orphaned vote records survive
	if err := e.EnsureEntity(ctx, ref); err != nil {
		t.Fatalf("EnsureEntity: %v", err)
	}
	snap, err := e.Snapshot(ctx, "alice", ref)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Score != 0 || snap.ViewerDirection != models.DirectionNone {
		t.Errorf("recreated snapshot = %d/%q, want 0/none", snap.Score, snap.ViewerDirection)
	}
}

func TestLookup(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	seedIdea(t, e, "idea-1")
	commentRef := models.CommentRef("idea-1", "comment-1")
	if err := e.EnsureEntity(ctx, commentRef); err != nil {
		t.Fatalf("seed comment entity: %v", err)
	}

	t.Run("comment recovers parent idea", func(t *testing.T) {
		ref, err := e.Lookup(ctx, models.KindComment, "comment-1")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if ref.ParentID != "idea-1" {
			t.Errorf("parent id = %q, want idea-1", ref.ParentID)
		}
		if ref.RoomID() != "idea-1" {
			t.Errorf("room id = %q, want idea-1", ref.RoomID())
		}
	})

	t.Run("idea resolves to itself", func(t *testing.T) {
		ref, err := e.Lookup(ctx, models.KindIdea, "idea-1")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if ref.RoomID() != "idea-1" {
			t.Errorf("room id = %q, want idea-1", ref.RoomID())
		}
	})

	t.Run("missing entity", func(t *testing.T) {
		if _, err := e.Lookup(ctx, models.KindComment, "ghost"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		if _, err := e.Lookup(ctx, "post", "idea-1"); err == nil {
			t.Error("Lookup with invalid kind succeeded, want error")
		}
		if _, err := e.Lookup(ctx, models.KindIdea, ""); err == nil {
			t.Error("Lookup with empty id succeeded, want error")
		}
	})
}
