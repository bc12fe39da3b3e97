// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

import (
	"fmt"
	"time"
)

// VoteDirection is the direction of a vote as carried on the wire and in
// the store. None is only ever an output value (the state after a toggle);
// requests must carry Up or Down.
type VoteDirection string

// Vote direction values.
const (
	DirectionUp   VoteDirection = "up"
	DirectionDown VoteDirection = "down"
	DirectionNone VoteDirection = "none"
)

// Valid reports whether d is a recognized direction, including None.
func (d VoteDirection) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionNone:
		return true
	}
	return false
}

// Delta returns the score contribution of a vote in this direction:
// +1 for Up, -1 for Down, 0 for None.
func (d VoteDirection) Delta() int64 {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	}
	return 0
}

// Opposite returns the flipped direction. None flips to None.
func (d VoteDirection) Opposite() VoteDirection {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	}
	return DirectionNone
}

// ParseDirection converts a wire string into a VoteDirection, accepting
// only the two request-legal values.
func ParseDirection(s string) (VoteDirection, error) {
	switch VoteDirection(s) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	}
	return DirectionNone, fmt.Errorf("invalid vote direction %q: must be %q or %q", s, DirectionUp, DirectionDown)
}

// EntityKind distinguishes the two votable entity types.
type EntityKind string

// Entity kinds.
const (
	KindIdea    EntityKind = "idea"
	KindComment EntityKind = "comment"
)

// Valid reports whether k is a recognized entity kind.
func (k EntityKind) Valid() bool {
	return k == KindIdea || k == KindComment
}

// EntityRef identifies one votable entity. For comments, ParentID carries
// the owning idea's id so events can be routed to the idea's room.
type EntityRef struct {
	Kind     EntityKind `json:"kind"`
	ID       string     `json:"id"`
	ParentID string     `json:"parentId,omitempty"`
}

// IdeaRef builds a reference to an idea entity.
func IdeaRef(id string) EntityRef {
	return EntityRef{Kind: KindIdea, ID: id}
}

// CommentRef builds a reference to a comment entity within an idea.
func CommentRef(ideaID, commentID string) EntityRef {
	return EntityRef{Kind: KindComment, ID: commentID, ParentID: ideaID}
}

// RoomID returns the id of the room that carries this entity's events.
// Comment events fan out through their parent idea's room, because viewers
// subscribe per idea, not per comment.
func (r EntityRef) RoomID() string {
	if r.Kind == KindComment && r.ParentID != "" {
		return r.ParentID
	}
	return r.ID
}

// Validate checks the reference is well formed.
func (r EntityRef) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid entity kind %q", r.Kind)
	}
	if r.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	if r.Kind == KindComment && r.ParentID == "" {
		return fmt.Errorf("comment entity requires a parent idea id")
	}
	return nil
}

// VotableEntity is the canonical scored record for an idea or comment.
// AggregateScore always equals the sum of all active vote records for the
// entity; the vote engine maintains that invariant transactionally.
type VotableEntity struct {
	Ref            EntityRef `json:"ref"`
	AggregateScore int64     `json:"aggregateScore"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// VoteRecord is one user's active vote on one entity. At most one record
// exists per (UserID, entity) pair at any time.
type VoteRecord struct {
	UserID    string        `json:"userId"`
	EntityID  string        `json:"entityId"`
	Direction VoteDirection `json:"direction"`
	CastAt    time.Time     `json:"castAt"`
}

// VoteResult is the authoritative outcome of a vote resolution, returned
// to the acting client and broadcast (score only) to the entity's room.
type VoteResult struct {
	Ref                EntityRef     `json:"ref"`
	NewScore           int64         `json:"newScore"`
	EffectiveDirection VoteDirection `json:"effectiveDirection"`
}

// VoteRequest is the body of a vote RPC.
type VoteRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// VoteResponse is the payload of a successful vote RPC.
type VoteResponse struct {
	EntityID           string        `json:"entityId"`
	NewScore           int64         `json:"newScore"`
	EffectiveDirection VoteDirection `json:"effectiveDirection"`
}

// EntitySnapshot is the authoritative per-viewer state of one entity,
// served by the snapshot endpoints that clients refetch after reconnect.
// ViewerDirection is the requesting user's own effective direction.
type EntitySnapshot struct {
	EntityID        string        `json:"entityId"`
	Kind            EntityKind    `json:"kind"`
	Score           int64         `json:"score"`
	ViewerDirection VoteDirection `json:"viewerDirection"`
}
