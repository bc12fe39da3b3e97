// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

// Package authz decides who may vote, comment, and delete, using Casbin
// RBAC with an embedded model and policy.
//
// # Request flow
//
//	Request -> auth.Authenticate -> authz.Require -> Handler
//	                |                    |
//	           validate JWT         role vs policy
//	          (internal/auth)       (this package)
//
// Subjects are the role claims the platform issues (member, moderator),
// not user ids: the policy is static and user-to-role binding happens at
// token issuance, outside Concord.
//
// # RBAC model
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[role_definition]
//	g = _, _
//
//	[policy_effect]
//	e = some(where (p.eft == allow))
//
//	[matchers]
//	m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
//
// Objects are entity kinds (idea, comment) rather than URL paths; the API
// layer names the object per route, so the policy survives route renames.
//
// # Policy
//
//	p, member, idea, vote
//	p, member, comment, vote
//	p, member, idea, comment
//	p, moderator, comment, delete
//	g, moderator, member
//
// Comment deletion is the one decision the policy cannot make alone:
// authors may delete their own comments regardless of role. The delete
// handler checks ownership first and consults the enforcer only for
// foreign comments, which is why deletion has no Require middleware.
//
// # Usage
//
//	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(cfg.Security.Casbin))
//	if err != nil {
//		return err
//	}
//	defer enforcer.Close()
//
//	r.With(authzMW.Require(authz.ObjectIdea, authz.ActionVote)).
//		Post("/ideas/{id}/vote", handler.VoteIdea)
//
// A file policy can override the embedded one for deployments that adjust
// role grants; with AutoReload enabled the enforcer picks up edits without
// a restart.
package authz
