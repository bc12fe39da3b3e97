// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jmercer/concord/internal/events"
	"github.com/jmercer/concord/internal/models"
)

// IdeaView is the composed client state of one idea open on screen: the
// idea's own vote view, its comment thread, vote views for comments the
// user has interacted with, and who is currently typing. Apply routes
// the room's event stream into the right piece.
//
// Safe for concurrent use.
type IdeaView struct {
	idea   *VoteView
	thread *Thread

	mu           sync.Mutex
	commentViews map[string]*VoteView
	typing       map[string]string // userID -> username
}

// NewIdeaView builds the composed view from the snapshot and thread
// fetched when the idea was opened.
func NewIdeaView(snap *models.EntitySnapshot, thread *models.ThreadResponse) *IdeaView {
	return &IdeaView{
		idea:         NewVoteView(snap),
		thread:       NewThread(thread),
		commentViews: make(map[string]*VoteView),
		typing:       make(map[string]string),
	}
}

// Idea returns the idea's own vote view.
func (iv *IdeaView) Idea() *VoteView {
	return iv.idea
}

// Thread returns the cached comment thread.
func (iv *IdeaView) Thread() *Thread {
	return iv.thread
}

// CommentView returns a vote view for one comment in the thread,
// creating it from the cached comment on first use. The viewer's own
// direction on a comment is unknown until their first vote resolves, so
// fresh comment views start at none. Returns nil for comments not in
// the thread.
func (iv *IdeaView) CommentView(commentID string) *VoteView {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if v, ok := iv.commentViews[commentID]; ok {
		return v
	}

	var cached *models.Comment
	for _, c := range iv.thread.Comments() {
		if c.ID == commentID {
			comment := c
			cached = &comment
			break
		}
	}
	if cached == nil {
		return nil
	}

	v := NewVoteView(&models.EntitySnapshot{
		EntityID:        cached.ID,
		Kind:            models.KindComment,
		Score:           cached.Score,
		ViewerDirection: models.DirectionNone,
	})
	iv.commentViews[commentID] = v
	return v
}

// TypingUsers returns the usernames currently typing in this idea,
// sorted for stable rendering.
func (iv *IdeaView) TypingUsers() []string {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	names := make([]string, 0, len(iv.typing))
	for _, name := range iv.typing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resync overwrites the view with freshly fetched authoritative state
// after a reconnect. Comment vote views are discarded; any vote the user
// had in flight across the gap resolves against a view nobody renders.
func (iv *IdeaView) Resync(snap *models.EntitySnapshot, thread *models.ThreadResponse) {
	if snap != nil {
		iv.idea.ApplySnapshot(snap)
	}
	if thread != nil {
		iv.thread.Replace(thread)
	}

	iv.mu.Lock()
	defer iv.mu.Unlock()
	for _, v := range iv.commentViews {
		v.Discard()
	}
	iv.commentViews = make(map[string]*VoteView)
	iv.typing = make(map[string]string)
}

// Apply folds one room event into the view. Unknown event types are an
// error so protocol drift surfaces in logs instead of silently dropping
// state; malformed payloads likewise.
//
//nolint:gocyclo // One branch per protocol event type.
func (iv *IdeaView) Apply(evt *events.Event) error {
	if evt == nil {
		return fmt.Errorf("nil event")
	}

	switch evt.Type {
	case events.TypeVoteUpdated:
		var p events.VoteUpdatedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.idea.ApplyBroadcast(p.NewScore)

	case events.TypeCommentAdded:
		var p events.CommentAddedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.thread.MergeAdded(p.Comment)

	case events.TypeCommentVoteUpdated:
		var p events.CommentVoteUpdatedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.thread.ApplyVote(p.CommentID, p.NewScore)
		iv.mu.Lock()
		if v, ok := iv.commentViews[p.CommentID]; ok {
			v.ApplyBroadcast(p.NewScore)
		}
		iv.mu.Unlock()

	case events.TypeCommentDeleted:
		var p events.CommentDeletedPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.thread.Remove(p.CommentID)
		iv.mu.Lock()
		if v, ok := iv.commentViews[p.CommentID]; ok {
			v.Discard()
			delete(iv.commentViews, p.CommentID)
		}
		iv.mu.Unlock()

	case events.TypeTyping:
		var p events.TypingPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.mu.Lock()
		iv.typing[p.UserID] = p.Username
		iv.mu.Unlock()

	case events.TypeStoppedTyping:
		var p events.StoppedTypingPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		iv.mu.Lock()
		delete(iv.typing, p.UserID)
		iv.mu.Unlock()

	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}

	return nil
}
