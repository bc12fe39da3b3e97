// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jmercer/concord/internal/models"
)

// ErrViewDiscarded is returned when a prediction is attempted on a view
// whose entity has already left the screen.
var ErrViewDiscarded = errors.New("view discarded")

// viewSnapshot is the rollback point captured before an optimistic
// mutation.
type viewSnapshot struct {
	score     int64
	direction models.VoteDirection
}

// pendingVote tracks the one in-flight vote RPC a view can have. A
// second prediction before the first resolves replaces it, which makes
// the first response stale; stale responses are dropped because the
// newer request's response carries fresher state.
type pendingVote struct {
	requestID string
	rollback  viewSnapshot
}

// VoteView is the client-side reconciled vote state of one votable
// entity. It merges the local optimistic prediction, the authoritative
// response to the viewer's own vote, and broadcasts caused by other
// users, and it stays correct whichever order the last two arrive in.
//
// All methods are safe for concurrent use; the UI goroutine predicts
// while the connection goroutine applies broadcasts.
type VoteView struct {
	mu        sync.Mutex
	entityID  string
	score     int64
	direction models.VoteDirection
	pending   *pendingVote
	discarded bool
}

// NewVoteView seeds a view from an authoritative snapshot.
func NewVoteView(snap *models.EntitySnapshot) *VoteView {
	direction := snap.ViewerDirection
	if !direction.Valid() {
		direction = models.DirectionNone
	}
	return &VoteView{
		entityID:  snap.EntityID,
		score:     snap.Score,
		direction: direction,
	}
}

// EntityID returns the entity this view renders.
func (v *VoteView) EntityID() string {
	return v.entityID
}

// Score returns the current local score.
func (v *VoteView) Score() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.score
}

// Direction returns the viewer's current local direction.
func (v *VoteView) Direction() models.VoteDirection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.direction
}

// PendingRequestID returns the in-flight request id, or "" when no vote
// is awaiting its response.
func (v *VoteView) PendingRequestID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return ""
	}
	return v.pending.requestID
}

// Predict applies the viewer's vote optimistically, before any network
// round trip, using the same three-branch resolution the server runs:
// voting the current direction toggles it off, voting with no standing
// vote creates one, voting the opposite direction flips and moves the
// score by two. It captures a rollback snapshot first and returns the
// request id the caller must pass to ApplyResponse or Rollback.
func (v *VoteView) Predict(requested models.VoteDirection) (string, error) {
	if requested != models.DirectionUp && requested != models.DirectionDown {
		return "", fmt.Errorf("invalid predicted direction %q", requested)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.discarded {
		return "", ErrViewDiscarded
	}

	rollback := viewSnapshot{score: v.score, direction: v.direction}

	switch {
	case v.direction == requested:
		v.score -= requested.Delta()
		v.direction = models.DirectionNone
	case v.direction == models.DirectionNone:
		v.score += requested.Delta()
		v.direction = requested
	default:
		v.score += 2 * requested.Delta()
		v.direction = requested
	}

	requestID := uuid.New().String()
	v.pending = &pendingVote{requestID: requestID, rollback: rollback}
	return requestID, nil
}

// ApplyResponse applies the authoritative response to the viewer's own
// vote, overwriting both score and direction; the server owns the acting
// user's state. Returns false when the response was stale (a newer
// prediction replaced it) or the view is already off screen; either way
// no caller action is needed.
func (v *VoteView) ApplyResponse(requestID string, resp *models.VoteResponse) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil || v.pending.requestID != requestID {
		return false
	}
	v.pending = nil

	v.score = resp.NewScore
	v.direction = resp.EffectiveDirection
	if !v.direction.Valid() {
		v.direction = models.DirectionNone
	}
	return !v.discarded
}

// Rollback restores the snapshot captured before the prediction with the
// given request id, after that vote's RPC failed. A stale request id is
// ignored; the newer prediction's outcome governs the view.
func (v *VoteView) Rollback(requestID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending == nil || v.pending.requestID != requestID {
		return false
	}
	snap := v.pending.rollback
	v.pending = nil

	v.score = snap.score
	v.direction = snap.direction
	return !v.discarded
}

// ApplyBroadcast folds in a room broadcast caused by another user. The
// score is replaced with the absolute broadcast value, never added to,
// so duplicate delivery cannot double-count. The direction is never
// touched: a broadcast about the aggregate carries no information about
// this viewer's own vote, and an in-flight prediction keeps its
// predicted direction until its own response resolves.
func (v *VoteView) ApplyBroadcast(newScore int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.score = newScore
}

// ApplySnapshot overwrites the view with a refetched authoritative
// snapshot, direction included, and drops any in-flight prediction; a
// post-reconnect refetch supersedes whatever was pending across the gap.
func (v *VoteView) ApplySnapshot(snap *models.EntitySnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pending = nil
	v.score = snap.Score
	v.direction = snap.ViewerDirection
	if !v.direction.Valid() {
		v.direction = models.DirectionNone
	}
}

// Discard marks the view as off screen. A response that arrives
// afterwards is still reconciled into this orphaned state and reported
// as not-live, so late arrivals never mutate anything the UI reads.
func (v *VoteView) Discard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.discarded = true
}

// Discarded reports whether the view has left the screen.
func (v *VoteView) Discarded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.discarded
}
