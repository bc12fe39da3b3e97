// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package events provides common error definitions.
package events

import "errors"

// ErrNATSNotEnabled is returned when the NATS transport is selected without the nats build tag.
var ErrNATSNotEnabled = errors.New("NATS transport not enabled (build with -tags nats)")

// ErrPublisherClosed is returned when publishing through a closed publisher.
var ErrPublisherClosed = errors.New("publisher is closed")

// ErrUnknownTransport is returned for an unrecognized transport name.
var ErrUnknownTransport = errors.New("unknown event transport")

// ErrInvalidEvent is returned when an event fails validation before publish.
var ErrInvalidEvent = errors.New("invalid event")
