// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package votes implements the vote resolution engine, the single writer of
aggregate scores and vote records.

Each call to Resolve is one Badger Update transaction that reads the
caster's existing vote record (if any), picks one of three branches, and
rewrites the entity's aggregate score:

  - create: no prior record, score moves by one in the requested direction
  - toggle: same direction again, the record is removed and the score
    moves back by one, leaving the user with no active vote
  - flip: opposite direction, the record is rewritten and the score moves
    by two

Because the read and both writes share a transaction, a rapid double-click
resolves as create-then-toggle rather than a double-apply, and concurrent
votes by different users compose through Badger's conflict detection plus
bounded retry. Committed results are handed to the event publisher for
fan-out to the entity's room; the caller's RPC response never waits on the
broadcast.
*/
package votes
