// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package client implements the board-side half of the sync protocol: the
reconciliation layer that keeps locally rendered vote state honest, the
connection lifecycle manager, the vote RPC caller, and the typing throttle.

Key Components:

  - VoteView: per-entity reconciliation of optimistic predictions,
    authoritative RPC responses, and room broadcasts
  - Thread: locally cached comment thread merged by comment id
  - IdeaView: composed view of one open idea (vote state, thread, typing
    indicators) that applies incoming room events
  - Conn: WebSocket lifecycle manager with reconnect backoff, room
    rejoin, and snapshot refetch
  - RPC: HTTP caller for the vote and snapshot endpoints with circuit
    breaker protection and bounded conflict retry
  - TypingThrottle: per-entity rate limiting for typing signals

Reconciliation Rules:

Three signals feed one VoteView, and they may arrive in any order:

 1. The local optimistic prediction runs the same three-branch vote
    resolution the server runs, synchronously, so the UI moves before
    any network round trip. A rollback snapshot is captured first.
 2. The authoritative response to the user's own vote overwrites both
    the score and the direction. An error response restores the
    rollback snapshot instead.
 3. Broadcasts caused by other users replace only the score. They carry
    no information about this viewer's own vote, so the direction is
    never touched, even while a prediction is in flight.

Broadcast scores are absolute, and the view always replaces rather than
adds, so duplicate delivery cannot double-count.

Recovery Model:

Missed broadcasts are never replayed. On every transition into the
Connected state the Conn re-joins each active entity room and refetches
the authoritative snapshot and thread, which heals any gap. The worst
case anywhere in this package is a stale score that the next broadcast
or refetch corrects.

Usage Example:

	cfg := config.Load().Client
	rpc := client.NewRPC(cfg, token)
	conn := client.NewConn(cfg, token, rpc)
	conn.SetCallbacks(onState, onEvent, onSnapshot, onThread, onFailure)

	if err := conn.Connect(ctx); err != nil {
	    return err
	}
	defer conn.Close()

	_ = conn.JoinEntity("idea-42")
	view := client.NewVoteView(snapshot)

	reqID, _ := view.Predict(models.DirectionUp)
	resp, err := rpc.VoteIdea(ctx, "idea-42", models.DirectionUp)
	if err != nil {
	    view.Rollback(reqID)
	} else {
	    view.ApplyResponse(reqID, resp)
	}
*/
package client
