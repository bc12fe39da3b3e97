// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package models defines data structures shared across the Concord sync server
and client packages.

This package is the single source of truth for the domain types that flow
between the vote engine, the event bus, the websocket hub, and the HTTP API.
It holds no behavior beyond validation and formatting helpers; all mutation
happens in the packages that own the data.

Key Components:

  - VoteDirection / EntityKind: closed enums used throughout the vote path
  - VotableEntity: canonical scored entity (idea or comment)
  - VoteRecord: one active vote per (user, entity) pair
  - VoteResult: authoritative outcome of a vote resolution
  - Comment: a thread entry carrying its own vote score
  - APIResponse / APIError / Metadata: standardized HTTP envelope

Error Taxonomy:

The sentinel errors in errors.go classify every failure the sync subsystem
can surface to a client:

  - ErrNotFound: entity vanished between view and action
  - ErrConflict: transactional vote path lost a race after bounded retries
  - ErrForbidden: authorization denied the action
  - ErrUnauthorized: missing or invalid identity

Handlers map these to HTTP statuses with errors.Is; clients map the decoded
error codes back to the same sentinels.

Thread Safety:

All models are plain data structures, safe for concurrent reads. Copies are
cheap and preferred over shared pointers across goroutine boundaries.

JSON Marshaling:

Client-facing payloads (vote requests, event payloads) use camelCase keys to
match the wire protocol; the HTTP envelope uses the lowercase status/data/
error/metadata keys. goccy/go-json handles all encoding.

See Also:

  - internal/votes: vote resolution over these types
  - internal/events: event payloads built from these types
  - internal/client: client-side views reconciled against them
*/
package models
