// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jmercer/concord/internal/models"
)

// Event type names as they appear on the wire. Connected clients switch on
// these strings, so they are part of the public protocol and never change.
const (
	TypeVoteUpdated        = "vote:updated"
	TypeCommentAdded       = "comment:added"
	TypeCommentVoteUpdated = "comment:voteUpdated"
	TypeCommentDeleted     = "comment:deleted"
	TypeTyping             = "user:typing"
	TypeStoppedTyping      = "user:stoppedTyping"
)

// TopicSync is the single bus topic all sync events travel on. Per-room
// fan-out happens at the hub bridge, keyed by the envelope's room field,
// rather than by a topic per room.
const TopicSync = "sync.events"

// Message metadata keys set alongside every published envelope.
const (
	MetaRoom = "room"
	MetaType = "event_type"
)

// knownTypes is the closed set of event types the bus accepts.
var knownTypes = map[string]struct{}{
	TypeVoteUpdated:        {},
	TypeCommentAdded:       {},
	TypeCommentVoteUpdated: {},
	TypeCommentDeleted:     {},
	TypeTyping:             {},
	TypeStoppedTyping:      {},
}

// Event is the envelope carried on the bus and delivered verbatim to every
// WebSocket client in the target room. Room is the idea id whose watchers
// should receive it; comment events carry their parent idea's id.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// VoteUpdatedPayload reports an idea's new aggregate score.
// EffectiveDirection reflects the acting user's resolved state and is only
// meaningful to that user; other viewers apply the score alone.
type VoteUpdatedPayload struct {
	EntityID           string `json:"entityId"`
	NewScore           int64  `json:"newScore"`
	EffectiveDirection string `json:"effectiveDirection,omitempty"`
}

// CommentAddedPayload carries a freshly created comment to the idea's room.
type CommentAddedPayload struct {
	EntityID string          `json:"entityId"`
	Comment  *models.Comment `json:"comment"`
}

// CommentVoteUpdatedPayload reports a comment's new score within its idea's
// room. EntityID is the parent idea; CommentID identifies the comment.
type CommentVoteUpdatedPayload struct {
	EntityID  string `json:"entityId"`
	CommentID string `json:"commentId"`
	NewScore  int64  `json:"newScore"`
}

// CommentDeletedPayload tells a room to drop a comment from its thread view.
type CommentDeletedPayload struct {
	EntityID  string `json:"entityId"`
	CommentID string `json:"commentId"`
}

// TypingPayload announces that a user started composing in an idea's room.
type TypingPayload struct {
	EntityID string `json:"entityId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// StoppedTypingPayload clears a previously announced typing indicator.
type StoppedTypingPayload struct {
	EntityID string `json:"entityId"`
	UserID   string `json:"userId"`
}

// NewEvent builds an envelope with a unique id and UTC timestamp around the
// given payload. The payload is marshaled immediately so a bad payload fails
// at construction, not at publish.
func NewEvent(eventType, room string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Room:    room,
		TS:      time.Now().UTC(),
		Payload: data,
	}, nil
}

// FromVoteResult translates a resolved vote into its wire event. Idea votes
// become vote:updated in the idea's own room; comment votes become
// comment:voteUpdated in the parent idea's room.
func FromVoteResult(res *models.VoteResult) (*Event, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil vote result", ErrInvalidEvent)
	}

	if res.Ref.Kind == models.KindComment {
		return NewEvent(TypeCommentVoteUpdated, res.Ref.RoomID(), &CommentVoteUpdatedPayload{
			EntityID:  res.Ref.RoomID(),
			CommentID: res.Ref.ID,
			NewScore:  res.NewScore,
		})
	}

	return NewEvent(TypeVoteUpdated, res.Ref.RoomID(), &VoteUpdatedPayload{
		EntityID:           res.Ref.ID,
		NewScore:           res.NewScore,
		EffectiveDirection: string(res.EffectiveDirection),
	})
}

// NewCommentAdded builds the comment:added event for the comment's idea room.
func NewCommentAdded(c *models.Comment) (*Event, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil comment", ErrInvalidEvent)
	}
	return NewEvent(TypeCommentAdded, c.IdeaID, &CommentAddedPayload{
		EntityID: c.IdeaID,
		Comment:  c,
	})
}

// NewCommentDeleted builds the comment:deleted event for the idea's room.
func NewCommentDeleted(ideaID, commentID string) (*Event, error) {
	return NewEvent(TypeCommentDeleted, ideaID, &CommentDeletedPayload{
		EntityID:  ideaID,
		CommentID: commentID,
	})
}

// NewTyping builds the user:typing event for the idea's room.
func NewTyping(entityID, userID, username string) (*Event, error) {
	return NewEvent(TypeTyping, entityID, &TypingPayload{
		EntityID: entityID,
		UserID:   userID,
		Username: username,
	})
}

// NewStoppedTyping builds the user:stoppedTyping event for the idea's room.
func NewStoppedTyping(entityID, userID string) (*Event, error) {
	return NewEvent(TypeStoppedTyping, entityID, &StoppedTypingPayload{
		EntityID: entityID,
		UserID:   userID,
	})
}

// Validate checks required envelope fields before the event reaches the bus.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if _, ok := knownTypes[e.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.Room == "" {
		return fmt.Errorf("%w: missing room", ErrInvalidEvent)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidEvent)
	}
	return nil
}

// Topic returns the bus topic this event publishes to.
func (e *Event) Topic() string {
	return TopicSync
}
