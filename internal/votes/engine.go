// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package votes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/metrics"
	"github.com/jmercer/concord/internal/models"
	"github.com/jmercer/concord/internal/store"
)

// EventPublisher pushes committed vote results onto the event bus for room
// fan-out. Satisfied by *events.Publisher; kept as a local interface so the
// engine stays decoupled from the transport.
type EventPublisher interface {
	PublishVoteResult(ctx context.Context, result *models.VoteResult) error
}

// Engine resolves votes transactionally. Each resolution is a single
// read-modify-write against the entity record and the caster's vote record,
// so concurrent votes on one entity compose without losing deltas.
type Engine struct {
	store     *store.Store
	publisher EventPublisher
	retries   int
}

// NewEngine creates a vote resolution engine. publisher may be nil, in
// which case committed results are not broadcast (used by tests).
func NewEngine(s *store.Store, publisher EventPublisher) *Engine {
	return &Engine{
		store:     s,
		publisher: publisher,
		retries:   s.Config().ConflictRetries,
	}
}

// Resolve applies one vote by userID on the referenced entity and returns
// the authoritative outcome. The resolution policy, computed against the
// user's single existing vote record:
//
//  1. No existing record: create it, score moves by +1 (up) or -1 (down).
//  2. Existing record in the same direction: toggle off, the record is
//     deleted and the score moves back by one.
//  3. Existing record in the opposite direction: flip, the record is
//     rewritten and the score moves by two toward the new direction.
//
// Commit conflicts from concurrent resolutions are retried up to the
// configured attempt count; exhaustion surfaces models.ErrConflict.
func (e *Engine) Resolve(ctx context.Context, userID string, ref models.EntityRef, requested models.VoteDirection) (*models.VoteResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity ref: %w", err)
	}
	if requested != models.DirectionUp && requested != models.DirectionDown {
		return nil, fmt.Errorf("invalid requested direction %q: must be %q or %q",
			requested, models.DirectionUp, models.DirectionDown)
	}

	start := time.Now()

	var (
		result *models.VoteResult
		branch string
	)

	entityKey := store.EntityKey(ref.Kind, ref.ID)
	voteKey := store.VoteKey(ref.ID, userID)

	var err error
	for attempt := 0; attempt < e.retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		err = e.store.Update(func(txn *badger.Txn) error {
			entity, err := loadEntity(txn, entityKey)
			if err != nil {
				return err
			}

			existing, err := loadVote(txn, voteKey)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			var (
				delta     int64
				effective models.VoteDirection
			)

			switch {
			case existing == nil:
				branch = "create"
				delta = requested.Delta()
				effective = requested
				if err := storeVote(txn, voteKey, &models.VoteRecord{
					UserID:    userID,
					EntityID:  ref.ID,
					Direction: requested,
					CastAt:    now,
				}); err != nil {
					return err
				}

			case existing.Direction == requested:
				branch = "toggle"
				delta = -requested.Delta()
				effective = models.DirectionNone
				if err := txn.Delete(voteKey); err != nil {
					return fmt.Errorf("delete vote record: %w", err)
				}

			default:
				branch = "flip"
				delta = 2 * requested.Delta()
				effective = requested
				if err := storeVote(txn, voteKey, &models.VoteRecord{
					UserID:    userID,
					EntityID:  ref.ID,
					Direction: requested,
					CastAt:    now,
				}); err != nil {
					return err
				}
			}

			entity.AggregateScore += delta
			entity.UpdatedAt = now
			if err := storeEntity(txn, entityKey, entity); err != nil {
				return err
			}

			result = &models.VoteResult{
				Ref:                ref,
				NewScore:           entity.AggregateScore,
				EffectiveDirection: effective,
			}
			return nil
		})

		if err == nil {
			break
		}
		if errors.Is(err, badger.ErrConflict) {
			metrics.RecordVoteConflictRetry()
			continue
		}
		break
	}

	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			metrics.RecordVoteFailure("not_found")
		case errors.Is(err, badger.ErrConflict):
			metrics.RecordVoteFailure("conflict")
			err = fmt.Errorf("%w: vote on %s contested after %d attempts",
				models.ErrConflict, ref.ID, e.retries)
		default:
			metrics.RecordVoteFailure("storage")
		}
		return nil, err
	}

	metrics.RecordVoteResolved(branch, time.Since(start))

	// The vote is committed; a publish failure degrades liveness for room
	// watchers but must not fail the caller's RPC.
	if e.publisher != nil {
		if pubErr := e.publisher.PublishVoteResult(ctx, result); pubErr != nil {
			logging.Error().Err(pubErr).
				Str("entity_id", ref.ID).
				Str("kind", string(ref.Kind)).
				Msg("Vote committed but broadcast publish failed")
		}
	}

	return result, nil
}

// Snapshot returns the authoritative per-viewer state of one entity: its
// aggregate score plus the viewer's own effective direction. Clients refetch
// this after reconnect.
func (e *Engine) Snapshot(ctx context.Context, userID string, ref models.EntityRef) (*models.EntitySnapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity ref: %w", err)
	}

	snap := &models.EntitySnapshot{
		EntityID:        ref.ID,
		Kind:            ref.Kind,
		ViewerDirection: models.DirectionNone,
	}

	err := e.store.View(func(txn *badger.Txn) error {
		entity, err := loadEntity(txn, store.EntityKey(ref.Kind, ref.ID))
		if err != nil {
			return err
		}
		snap.Score = entity.AggregateScore

		vote, err := loadVote(txn, store.VoteKey(ref.ID, userID))
		if err != nil {
			return err
		}
		if vote != nil {
			snap.ViewerDirection = vote.Direction
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Lookup returns the stored reference for an entity. Comment references
// carry the parent idea id, so handlers that receive a bare comment id can
// recover the full ref for room routing. Missing entities surface
// models.ErrNotFound.
func (e *Engine) Lookup(ctx context.Context, kind models.EntityKind, id string) (models.EntityRef, error) {
	if !kind.Valid() {
		return models.EntityRef{}, fmt.Errorf("invalid entity kind %q", kind)
	}
	if id == "" {
		return models.EntityRef{}, fmt.Errorf("entity id is required")
	}

	var ref models.EntityRef
	err := e.store.View(func(txn *badger.Txn) error {
		entity, err := loadEntity(txn, store.EntityKey(kind, id))
		if err != nil {
			return err
		}
		ref = entity.Ref
		return nil
	})
	if err != nil {
		return models.EntityRef{}, err
	}
	return ref, nil
}

// EnsureEntity creates the votable entity record at score zero if it does
// not exist yet. Idea records are provisioned through this hook when the
// platform creates an idea; the comment store calls it for new comments.
func (e *Engine) EnsureEntity(ctx context.Context, ref models.EntityRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("invalid entity ref: %w", err)
	}

	key := store.EntityKey(ref.Kind, ref.ID)
	return e.store.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get entity: %w", err)
		}

		now := time.Now().UTC()
		return storeEntity(txn, key, &models.VotableEntity{
			Ref:            ref,
			AggregateScore: 0,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	})
}

// RemoveEntity deletes an entity record and every vote cast on it. The
// comment store calls this when a comment is deleted.
func (e *Engine) RemoveEntity(ctx context.Context, ref models.EntityRef) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("invalid entity ref: %w", err)
	}

	return e.store.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(store.EntityKey(ref.Kind, ref.ID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete entity: %w", err)
		}

		// Collect vote keys first; Badger cannot delete during iteration
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var voteKeys [][]byte
		prefix := store.VotePrefix(ref.ID)
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
}

// loadEntity reads and decodes a votable entity, mapping a missing key to
// models.ErrNotFound.
func loadEntity(txn *badger.Txn, key []byte) (*models.VotableEntity, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}

	var entity models.VotableEntity
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	})
	if err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return &entity, nil
}

// loadVote reads and decodes a vote record; a missing key yields nil, nil.
func loadVote(txn *badger.Txn, key []byte) (*models.VoteRecord, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote record: %w", err)
	}

	var record models.VoteRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("decode vote record: %w", err)
	}
	return &record, nil
}

func storeEntity(txn *badger.Txn, key []byte, entity *models.VotableEntity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set entity: %w", err)
	}
	return nil
}

func storeVote(txn *badger.Txn, key []byte, record *models.VoteRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal vote record: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set vote record: %w", err)
	}
	return nil
}
