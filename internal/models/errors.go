// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

import "errors"

// Sentinel errors classifying every failure the sync subsystem surfaces to
// clients. Deeper layers wrap these with %w; the API boundary and the
// client RPC layer branch on them with errors.Is.
var (
	// ErrNotFound means the entity vanished between view and action.
	// Clients should refetch and disable the action.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict means the transactional vote path lost a race after
	// exhausting its retries. The operation is safe to retry as-is; the
	// client must retry the RPC, never re-apply its optimistic prediction.
	ErrConflict = errors.New("concurrent modification, retry")

	// ErrForbidden means authorization denied the action. Clients roll
	// back optimistic state and surface the message.
	ErrForbidden = errors.New("action not permitted")

	// ErrUnauthorized means the request carried no valid identity.
	ErrUnauthorized = errors.New("authentication required")
)

// API error codes carried in the error envelope. The client RPC layer maps
// these back to the sentinel errors above.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorCode returns the envelope code for a taxonomy error, or
// CodeInternal for anything unclassified.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	}
	return CodeInternal
}

// ErrorFromCode maps an envelope code back to its sentinel error.
// Unknown codes return nil so callers can fall back to a generic error.
func ErrorFromCode(code string) error {
	switch code {
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return ErrConflict
	case CodeForbidden:
		return ErrForbidden
	case CodeUnauthorized:
		return ErrUnauthorized
	}
	return nil
}
