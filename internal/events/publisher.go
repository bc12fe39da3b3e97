// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/metrics"
	"github.com/jmercer/concord/internal/models"
)

// Publisher wraps a transport publisher with circuit breaker protection and
// typed constructors for every event in the catalog. The vote engine,
// comment store, and presence tracker all publish through it; a transport
// outage trips the breaker so callers fail fast instead of stacking up.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher creates a resilient publisher on top of the given transport
// publisher. Breaker thresholds come from the events configuration.
func NewPublisher(pub message.Publisher, cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("transport publisher cannot be nil")
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	settings := gobreaker.Settings{
		Name:        "events_publish",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
			logger.Info("Publisher breaker state change", watermill.LogFields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	return &Publisher{
		publisher:      pub,
		circuitBreaker: gobreaker.NewCircuitBreaker[interface{}](settings),
		logger:         logger,
	}, nil
}

// Publish sends a message to the given topic with breaker protection.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	msg.SetContext(ctx)

	_, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	return err
}

// PublishEvent validates, serializes, and publishes a catalog event. The
// envelope's room and type travel in message metadata so the bridge can
// route without re-decoding the body.
func (p *Publisher) PublishEvent(ctx context.Context, event *Event) error {
	data, err := SerializeEvent(event)
	if err != nil {
		metrics.RecordEventPublishError(event.Type)
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set(MetaRoom, event.Room)
	msg.Metadata.Set(MetaType, event.Type)

	if err := p.Publish(ctx, event.Topic(), msg); err != nil {
		metrics.RecordEventPublishError(event.Type)
		return err
	}

	metrics.RecordEventPublished(event.Type)
	return nil
}

// PublishVoteResult emits vote:updated for idea votes and comment:voteUpdated
// for comment votes, routed to the affected idea's room.
func (p *Publisher) PublishVoteResult(ctx context.Context, res *models.VoteResult) error {
	event, err := FromVoteResult(res)
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, event)
}

// PublishCommentAdded emits comment:added to the comment's idea room.
func (p *Publisher) PublishCommentAdded(ctx context.Context, c *models.Comment) error {
	event, err := NewCommentAdded(c)
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, event)
}

// PublishCommentDeleted emits comment:deleted to the idea's room.
func (p *Publisher) PublishCommentDeleted(ctx context.Context, ideaID, commentID string) error {
	event, err := NewCommentDeleted(ideaID, commentID)
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, event)
}

// PublishTyping emits user:typing to the idea's room.
func (p *Publisher) PublishTyping(ctx context.Context, entityID, userID, username string) error {
	event, err := NewTyping(entityID, userID, username)
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, event)
}

// PublishStoppedTyping emits user:stoppedTyping to the idea's room.
func (p *Publisher) PublishStoppedTyping(ctx context.Context, entityID, userID string) error {
	event, err := NewStoppedTyping(entityID, userID)
	if err != nil {
		return err
	}
	return p.PublishEvent(ctx, event)
}

// BreakerState returns the current breaker state string for health reporting.
func (p *Publisher) BreakerState() string {
	return p.circuitBreaker.State().String()
}

// Close marks the publisher closed. The underlying transport is shared with
// the subscriber side and is closed by the transport owner, not here.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return nil
}
