// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"sync"

	"github.com/jmercer/concord/internal/models"
)

// Thread is the locally cached comment thread of one idea. Broadcast
// merges are keyed by comment id: comment:added inserts only if absent,
// which tolerates duplicate delivery and the acting client's own insert
// racing its echo broadcast; comment:voteUpdated replaces that comment's
// score; comment:deleted removes by id.
//
// Safe for concurrent use.
type Thread struct {
	mu     sync.Mutex
	ideaID string
	order  []string
	byID   map[string]*models.Comment
}

// NewThread builds a thread cache from an authoritative thread snapshot.
func NewThread(resp *models.ThreadResponse) *Thread {
	t := &Thread{
		ideaID: resp.IdeaID,
		byID:   make(map[string]*models.Comment, len(resp.Comments)),
	}
	for i := range resp.Comments {
		c := resp.Comments[i]
		t.order = append(t.order, c.ID)
		t.byID[c.ID] = &c
	}
	return t
}

// IdeaID returns the idea whose thread this cache holds.
func (t *Thread) IdeaID() string {
	return t.ideaID
}

// MergeAdded inserts a broadcast comment if no comment with that id is
// cached yet. Returns whether the comment was inserted.
func (t *Thread) MergeAdded(c *models.Comment) bool {
	if c == nil || c.ID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byID[c.ID]; exists {
		return false
	}

	clone := *c
	t.order = append(t.order, clone.ID)
	t.byID[clone.ID] = &clone
	return true
}

// ApplyVote replaces the cached score of one comment with the absolute
// broadcast value. Unknown ids are ignored; the comment either never
// reached this client or was already deleted, and the next refetch
// settles it.
func (t *Thread) ApplyVote(commentID string, newScore int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.byID[commentID]
	if !ok {
		return false
	}
	c.Score = newScore
	return true
}

// Remove drops a comment from the cache. Returns whether it was present.
func (t *Thread) Remove(commentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[commentID]; !ok {
		return false
	}
	delete(t.byID, commentID)
	for i, id := range t.order {
		if id == commentID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the whole cache for a fresh authoritative snapshot,
// used after a reconnect refetch.
func (t *Thread) Replace(resp *models.ThreadResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.order = t.order[:0]
	t.byID = make(map[string]*models.Comment, len(resp.Comments))
	for i := range resp.Comments {
		c := resp.Comments[i]
		t.order = append(t.order, c.ID)
		t.byID[c.ID] = &c
	}
}

// Comments returns the cached thread in arrival order. The slice and
// its elements are copies; mutating them does not touch the cache.
func (t *Thread) Comments() []models.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Comment, 0, len(t.order))
	for _, id := range t.order {
		if c, ok := t.byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Len returns the number of cached comments.
func (t *Thread) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
