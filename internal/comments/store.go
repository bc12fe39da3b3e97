// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package comments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
	"github.com/jmercer/concord/internal/models"
	"github.com/jmercer/concord/internal/store"
)

// EventPublisher pushes committed comment mutations onto the event bus for
// room fan-out. Satisfied by *events.Publisher.
type EventPublisher interface {
	PublishCommentAdded(ctx context.Context, comment *models.Comment) error
	PublishCommentDeleted(ctx context.Context, ideaID, commentID string) error
}

// Store owns the comment records of idea threads. Adding a comment also
// creates its votable entity at score zero inside the same transaction, so
// a thread snapshot never observes a comment without a score.
type Store struct {
	store     *store.Store
	publisher EventPublisher
	retries   int
}

// NewStore creates a comment store. publisher may be nil, in which case
// committed mutations are not broadcast (used by tests).
func NewStore(s *store.Store, publisher EventPublisher) *Store {
	return &Store{
		store:     s,
		publisher: publisher,
		retries:   s.Config().ConflictRetries,
	}
}

// Add persists a new comment under ideaID and returns it. The owning idea
// must exist; the comment's votable entity record is initialized at score
// zero in the same transaction.
func (cs *Store) Add(ctx context.Context, ideaID, authorID, author string, req *models.CommentRequest) (*models.Comment, error) {
	if ideaID == "" {
		return nil, fmt.Errorf("idea id is required")
	}
	if authorID == "" {
		return nil, fmt.Errorf("author id is required")
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		IdeaID:    ideaID,
		ParentID:  req.ParentID,
		AuthorID:  authorID,
		Author:    author,
		Body:      req.Body,
		Score:     0,
		CreatedAt: time.Now().UTC(),
	}

	err := cs.withConflictRetry(ctx, func(txn *badger.Txn) error {
		// The owning idea must exist before a thread can grow under it
		if _, err := txn.Get(store.EntityKey(models.KindIdea, ideaID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("get idea entity: %w", err)
		}

		data, err := json.Marshal(comment)
		if err != nil {
			return fmt.Errorf("marshal comment: %w", err)
		}
		if err := txn.Set(store.CommentKey(ideaID, comment.ID), data); err != nil {
			return fmt.Errorf("set comment: %w", err)
		}

		entity := &models.VotableEntity{
			Ref:            models.CommentRef(ideaID, comment.ID),
			AggregateScore: 0,
			CreatedAt:      comment.CreatedAt,
			UpdatedAt:      comment.CreatedAt,
		}
		entityData, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("marshal comment entity: %w", err)
		}
		if err := txn.Set(store.EntityKey(models.KindComment, comment.ID), entityData); err != nil {
			return fmt.Errorf("set comment entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCommentAdded()

	if cs.publisher != nil {
		if pubErr := cs.publisher.PublishCommentAdded(ctx, comment); pubErr != nil {
			logging.Error().Err(pubErr).
				Str("idea_id", ideaID).
				Str("comment_id", comment.ID).
				Msg("Comment committed but broadcast publish failed")
		}
	}

	return comment, nil
}

// Get returns one comment by id. Handlers use it to check ownership before
// deciding whether a delete needs moderator rights.
func (cs *Store) Get(ctx context.Context, ideaID, commentID string) (*models.Comment, error) {
	var comment models.Comment

	err := cs.store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(store.CommentKey(ideaID, commentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get comment: %w", err)
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &comment)
		}); err != nil {
			return fmt.Errorf("decode comment: %w", err)
		}

		comment.Score = readScore(txn, comment.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &comment, nil
}

// Delete removes a comment along with its votable entity and every vote
// cast on it. Authorization is the caller's responsibility; userID is
// recorded for the audit trail only.
func (cs *Store) Delete(ctx context.Context, ideaID, commentID, userID string) error {
	err := cs.withConflictRetry(ctx, func(txn *badger.Txn) error {
		commentKey := store.CommentKey(ideaID, commentID)
		if _, err := txn.Get(commentKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("get comment: %w", err)
		}

		if err := txn.Delete(commentKey); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if err := txn.Delete(store.EntityKey(models.KindComment, commentID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete comment entity: %w", err)
		}

		// Collect vote keys first; Badger cannot delete during iteration
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var voteKeys [][]byte
		prefix := store.VotePrefix(commentID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keyCopy := make([]byte, len(it.Item().Key()))
			copy(keyCopy, it.Item().Key())
			voteKeys = append(voteKeys, keyCopy)
		}
		it.Close()

		for _, key := range voteKeys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete vote record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordCommentDeleted()
	logging.Info().
		Str("idea_id", ideaID).
		Str("comment_id", commentID).
		Str("deleted_by", userID).
		Msg("Comment deleted")

	if cs.publisher != nil {
		if pubErr := cs.publisher.PublishCommentDeleted(ctx, ideaID, commentID); pubErr != nil {
			logging.Error().Err(pubErr).
				Str("idea_id", ideaID).
				Str("comment_id", commentID).
				Msg("Comment deleted but broadcast publish failed")
		}
	}

	return nil
}

// List returns the idea's thread ordered by creation time, each comment
// carrying its current aggregate score. This is the snapshot clients
// refetch after reconnect.
func (cs *Store) List(ctx context.Context, ideaID string) ([]*models.Comment, error) {
	var thread []*models.Comment

	err := cs.store.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(store.EntityKey(models.KindIdea, ideaID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("get idea entity: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := store.CommentPrefix(ideaID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var comment models.Comment
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &comment)
			})
			if err != nil {
				// Skip records we cannot parse rather than failing the thread
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping undecodable comment")
				continue
			}

			comment.Score = readScore(txn, comment.ID)
			thread = append(thread, &comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(thread, func(i, j int) bool {
		if thread[i].CreatedAt.Equal(thread[j].CreatedAt) {
			return thread[i].ID < thread[j].ID
		}
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})

	return thread, nil
}

// withConflictRetry runs fn in Update transactions until it commits, hits a
// non-conflict error, or exhausts the configured attempts.
func (cs *Store) withConflictRetry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < cs.retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = cs.store.Update(fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		metrics.RecordVoteConflictRetry()
	}
	return fmt.Errorf("%w: comment mutation contested after %d attempts", models.ErrConflict, cs.retries)
}

// readScore reads a comment's current aggregate score inside txn; a missing
// entity reads as zero.
func readScore(txn *badger.Txn, commentID string) int64 {
	item, err := txn.Get(store.EntityKey(models.KindComment, commentID))
	if err != nil {
		return 0
	}

	var entity models.VotableEntity
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return 0
	}
	return entity.AggregateScore
}
