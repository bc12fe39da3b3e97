// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jmercer/concord/internal/metrics"
)

// RoomBroadcaster delivers a raw frame to every connection joined to a room
// and reports how many received it. The WebSocket hub implements it; the
// bridge depends on this interface so the events package never imports the
// hub.
type RoomBroadcaster interface {
	BroadcastToRoom(roomID string, payload []byte) int
}

// Bridge is the bus-to-hub dispatcher: it consumes the sync topic and routes
// each envelope to its room's connections. It is the only subscriber in a
// single-instance deployment; with the NATS transport every instance runs
// its own bridge so rooms fan out cluster-wide.
type Bridge struct {
	hub    RoomBroadcaster
	logger watermill.LoggerAdapter
}

// NewBridge creates a bridge dispatching to the given hub.
func NewBridge(hub RoomBroadcaster, logger watermill.LoggerAdapter) *Bridge {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &Bridge{hub: hub, logger: logger}
}

// Register attaches the bridge to a router as the sync topic consumer.
func (b *Bridge) Register(r *Router, subscriber message.Subscriber) {
	r.AddConsumerHandler("sync-bridge", TopicSync, subscriber, b.Handle)
}

// Handle routes one bus message to its room. Malformed messages are logged
// and acked: retrying cannot repair a bad payload, and live events are
// worthless late, so nothing is ever requeued here.
func (b *Bridge) Handle(msg *message.Message) error {
	room := msg.Metadata.Get(MetaRoom)
	eventType := msg.Metadata.Get(MetaType)

	if room == "" {
		// Metadata can be stripped by non-Watermill publishers; fall
		// back to the envelope itself.
		event, err := DeserializeEvent(msg.Payload)
		if err != nil {
			b.logger.Error("Dropping undecodable sync message", err, watermill.LogFields{
				"message_id": msg.UUID,
			})
			return nil
		}
		room = event.Room
		eventType = event.Type
	}

	if room == "" {
		b.logger.Error("Dropping sync message without a room", nil, watermill.LogFields{
			"message_id": msg.UUID,
			"event_type": eventType,
		})
		return nil
	}

	recipients := b.hub.BroadcastToRoom(room, msg.Payload)
	metrics.RecordBroadcast(eventType, recipients)

	b.logger.Trace("Dispatched sync event", watermill.LogFields{
		"event_type": eventType,
		"room":       room,
		"recipients": recipients,
	})
	return nil
}
