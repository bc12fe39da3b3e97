// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package store

import "github.com/jmercer/concord/internal/models"

// Key prefixes for BadgerDB storage. Keys are namespaced by prefix so
// prefix iteration yields one logical table.
const (
	entityKeyPrefix  = "entity:"
	voteKeyPrefix    = "vote:"
	commentKeyPrefix = "comment:"
)

// EntityKey builds the key for a votable entity: entity:<kind>:<id>.
func EntityKey(kind models.EntityKind, id string) []byte {
	return []byte(entityKeyPrefix + string(kind) + ":" + id)
}

// VoteKey builds the key for a user's vote on an entity: vote:<entityID>:<userID>.
// The entity id leads so all votes for one entity share a prefix.
func VoteKey(entityID, userID string) []byte {
	return []byte(voteKeyPrefix + entityID + ":" + userID)
}

// VotePrefix is the iteration prefix for all votes on one entity.
func VotePrefix(entityID string) []byte {
	return []byte(voteKeyPrefix + entityID + ":")
}

// CommentKey builds the key for a comment: comment:<ideaID>:<commentID>.
// The idea id leads so an idea's thread is one contiguous range.
func CommentKey(ideaID, commentID string) []byte {
	return []byte(commentKeyPrefix + ideaID + ":" + commentID)
}

// CommentPrefix is the iteration prefix for all comments under one idea.
func CommentPrefix(ideaID string) []byte {
	return []byte(commentKeyPrefix + ideaID + ":")
}
