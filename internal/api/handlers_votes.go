// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmercer/concord/internal/auth"
	"github.com/jmercer/concord/internal/models"
)

// requireClaims fetches the authenticated identity from the request
// context, answering 401 if the route was somehow reached without the
// auth middleware.
func (h *Handler) requireClaims(w http.ResponseWriter, r *http.Request) *auth.Claims {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, models.CodeUnauthorized, models.ErrUnauthorized.Error(), nil)
		return nil
	}
	return claims
}

// parseVoteRequest decodes and validates a vote body, answering the error
// envelope itself on failure. The validator restricts direction to the two
// request-legal values, so ParseDirection cannot fail afterwards.
func parseVoteRequest(w http.ResponseWriter, r *http.Request) (models.VoteDirection, bool) {
	var req models.VoteRequest
	if !decodeBody(w, r, &req) {
		return models.DirectionNone, false
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return models.DirectionNone, false
	}

	direction, err := models.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.CodeValidation, err.Error(), nil)
		return models.DirectionNone, false
	}
	return direction, true
}

// IdeaVote handles POST /api/v1/ideas/{id}/vote.
//
// The response carries the authoritative outcome of the resolution: the
// new aggregate score and the caller's effective direction after the
// create/toggle/flip policy was applied. The room broadcast happens on the
// engine's publish path, not here.
func (h *Handler) IdeaVote(w http.ResponseWriter, r *http.Request) {
	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	direction, ok := parseVoteRequest(w, r)
	if !ok {
		return
	}

	ref := models.IdeaRef(chi.URLParam(r, "id"))
	result, err := h.engine.Resolve(r.Context(), claims.UserID(), ref, direction)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, &models.VoteResponse{
		EntityID:           result.Ref.ID,
		NewScore:           result.NewScore,
		EffectiveDirection: result.EffectiveDirection,
	})
}

// CommentVote handles POST /api/v1/comments/{id}/vote.
//
// The route carries only the comment id; the stored entity reference
// supplies the parent idea so the broadcast routes through the idea's
// room. A vote on a comment deleted moments earlier answers NOT_FOUND
// from the lookup.
func (h *Handler) CommentVote(w http.ResponseWriter, r *http.Request) {
	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	direction, ok := parseVoteRequest(w, r)
	if !ok {
		return
	}

	ref, err := h.engine.Lookup(r.Context(), models.KindComment, chi.URLParam(r, "id"))
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	result, err := h.engine.Resolve(r.Context(), claims.UserID(), ref, direction)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, &models.VoteResponse{
		EntityID:           result.Ref.ID,
		NewScore:           result.NewScore,
		EffectiveDirection: result.EffectiveDirection,
	})
}

// IdeaSnapshot handles GET /api/v1/ideas/{id}.
//
// This is the refetch target after reconnect: the authoritative aggregate
// score plus the viewer's own effective direction, replacing whatever the
// client accumulated from broadcasts.
func (h *Handler) IdeaSnapshot(w http.ResponseWriter, r *http.Request) {
	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	start := time.Now()
	snap, err := h.engine.Snapshot(r.Context(), claims.UserID(), models.IdeaRef(chi.URLParam(r, "id")))
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   snap,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
