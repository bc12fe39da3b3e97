// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

//go:build !nats

package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/jmercer/concord/internal/config"
)

// newNATSTransport returns an error when NATS support is not compiled in.
func newNATSTransport(_ config.EventsConfig, _ watermill.LoggerAdapter) (*Transport, error) {
	return nil, ErrNATSNotEnabled
}
