// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/jmercer/concord/internal/config"
)

// Transport bundles the Pub/Sub pair the event bus runs on. The default is
// Watermill's in-process gochannel, which gives a single Concord instance
// real fan-out with no external broker. Building with -tags nats unlocks the
// NATS JetStream transport for multi-instance deployments.
type Transport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	closers    []func() error
}

// NewTransport builds the transport selected by cfg.Transport.
func NewTransport(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	switch cfg.Transport {
	case "", "gochannel":
		return newGoChannelTransport(logger), nil
	case "nats":
		return newNATSTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

// newGoChannelTransport wires the in-process Pub/Sub. One value serves both
// sides; subscribers only see messages published after they subscribe, which
// matches the live-events contract (missed state is recovered by snapshot
// refetch, not replay).
func newGoChannelTransport(logger watermill.LoggerAdapter) *Transport {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	return &Transport{
		publisher:  ch,
		subscriber: ch,
		closers:    []func() error{ch.Close},
	}
}

// Publisher returns the transport's publish side.
func (t *Transport) Publisher() message.Publisher {
	return t.publisher
}

// Subscriber returns the transport's subscribe side.
func (t *Transport) Subscriber() message.Subscriber {
	return t.subscriber
}

// Close shuts down every transport component in reverse creation order.
func (t *Transport) Close() error {
	var firstErr error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
