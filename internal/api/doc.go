// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

/*
Package api provides the HTTP surface of the sync subsystem.

Every route answers in the standard envelope (models.APIResponse): a
"success" body carries the payload under data, an "error" body carries a
machine-readable code from the error taxonomy plus a human-readable
message. Clients branch on the code, never on the message text.

Routes, versioned under /api/v1 and authenticated via JWT middleware:

	POST   /api/v1/ideas/{id}/vote                  vote on an idea
	POST   /api/v1/comments/{id}/vote               vote on a comment
	POST   /api/v1/ideas/{id}/comments              add a comment
	DELETE /api/v1/ideas/{id}/comments/{commentId}  delete a comment
	GET    /api/v1/ideas/{id}                       per-viewer entity snapshot
	GET    /api/v1/ideas/{id}/comments              thread snapshot
	GET    /api/v1/ws                               WebSocket upgrade

Unversioned operational routes:

	GET /health        dependency-aware health report
	GET /health/live   liveness probe
	GET /health/ready  readiness probe
	GET /metrics       Prometheus scrape

Vote and comment mutations pass through the casbin middleware
(internal/authz); comment deletion instead checks ownership in the
handler and consults the enforcer only for foreign comments, so authors
never need moderator rights for their own threads.

Snapshot reads (GET /ideas/{id}, GET /ideas/{id}/comments) are the
refetch targets of the client reconciliation layer: after a reconnect
the client rejoins its rooms and refetches these to replace any state
that broadcasts may have skipped past while it was away.

Key components:

  - Router: chi route table plus the global middleware stack
  - ChiMiddleware: CORS and httprate factories built from config
  - Handler: request handlers bound to the vote engine, comment store,
    enforcer and hub

Usage:

	handler := api.NewHandler(st, engine, commentStore, enforcer, hub, publisher, cfg)
	router := api.NewRouter(handler, authMW, authzMW, api.NewChiMiddlewareFromConfig(&cfg.Security))
	srv := &http.Server{Addr: addr, Handler: router.SetupChi()}
*/
package api
