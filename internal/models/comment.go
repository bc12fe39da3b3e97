// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

import "time"

// Comment is one entry in an idea's discussion thread. Comments are
// votable entities; Score mirrors the comment's VotableEntity aggregate
// at read time so thread snapshots need no second lookup.
type Comment struct {
	ID        string    `json:"id"`
	IdeaID    string    `json:"ideaId"`
	ParentID  string    `json:"parentId,omitempty"` // parent comment for replies
	AuthorID  string    `json:"authorId"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentRequest is the body of a create-comment call.
type CommentRequest struct {
	Body     string `json:"body" validate:"required,min=1,max=10000"`
	ParentID string `json:"parentId,omitempty" validate:"omitempty,uuid4"`
}
