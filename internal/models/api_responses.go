// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

import (
	"time"
)

// APIResponse is the standardized wrapper used by every HTTP endpoint.
// It provides one consistent structure for success and error responses.
//
// Status field values:
//   - "success": Request completed, see Data
//   - "error": Request failed, see Error
//
// Example successful vote response:
//
//	{
//	  "status": "success",
//	  "data": {"entityId": "idea-42", "newScore": 17, "effectiveDirection": "up"},
//	  "metadata": {"timestamp": "2026-08-25T12:00:00Z"}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "CONFLICT", "message": "concurrent modification, retry"},
//	  "metadata": {"timestamp": "2026-08-25T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
//
// Fields:
//   - Timestamp: server time when the response was generated (RFC3339)
//   - QueryTimeMS: store operation time in milliseconds, omitted when zero
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the structured error payload inside an APIResponse.
//
// Code is machine-readable and drawn from the taxonomy constants in
// errors.go (NOT_FOUND, CONFLICT, FORBIDDEN, UNAUTHORIZED,
// VALIDATION_ERROR, INTERNAL_ERROR); Message is human-readable; Details
// carries optional context such as failing field names.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ThreadResponse wraps a comment thread snapshot.
type ThreadResponse struct {
	IdeaID   string    `json:"ideaId"`
	Comments []Comment `json:"comments"`
}
