// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package store owns the BadgerDB database underlying the realtime sync
server: votable entities, vote records and comments all live here.

# Key Layout

Keys are namespaced by prefix so prefix iteration yields one logical table:

	entity:<kind>:<id>        -> VotableEntity (JSON)
	vote:<entityID>:<userID>  -> VoteRecord (JSON)
	comment:<ideaID>:<commentID> -> Comment (JSON)

The vote key leads with the entity id so all votes on one entity share a
prefix, and the comment key leads with the idea id so an idea's thread is
one contiguous range.

# Transactions

Vote resolution reads and writes the entity key and the vote key inside a
single Update transaction. Badger's serializable snapshot isolation turns
conflicting concurrent commits into badger.ErrConflict; callers retry a
bounded number of times (STORE_CONFLICT_RETRIES) before surfacing the
conflict.

# Lifecycle

Open the store once at startup and close it last during shutdown, after
every component that holds transactions has stopped:

	st, err := store.Open(cfg.Store)
	if err != nil {
	    return err
	}
	defer st.Close(30 * time.Second)

A GCRunner runs value log garbage collection on a timer; it is supervised
alongside the other background services. In-memory stores (STORE_IN_MEMORY,
used by tests) skip GC since they have no value log.
*/
package store
