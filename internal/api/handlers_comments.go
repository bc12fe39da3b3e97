// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmercer/concord/internal/authz"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
)

// CommentCreate handles POST /api/v1/ideas/{id}/comments.
//
// The committed comment comes back in full, including its generated id
// and zero score; the room learns about it through the comment:added
// broadcast on the store's publish path.
func (h *Handler) CommentCreate(w http.ResponseWriter, r *http.Request) {
	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	var req models.CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ideaID := chi.URLParam(r, "id")
	comment, err := h.comments.Add(r.Context(), ideaID, claims.UserID(), claims.Username, &req)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, comment)
}

// CommentDelete handles DELETE /api/v1/ideas/{id}/comments/{commentId}.
//
// Ownership is checked before the enforcer: authors always delete their
// own comments, and only foreign deletions need the moderator grant. The
// route therefore carries no authorization middleware.
func (h *Handler) CommentDelete(w http.ResponseWriter, r *http.Request) {
	claims := h.requireClaims(w, r)
	if claims == nil {
		return
	}

	ideaID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentId")

	comment, err := h.comments.Get(r.Context(), ideaID, commentID)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	if comment.AuthorID != claims.UserID() {
		if err := h.enforcer.Require(claims.Role, authz.ObjectComment, authz.ActionDelete); err != nil {
			logging.Debug().
				Str("user_id", claims.UserID()).
				Str("comment_id", sanitizeLogValue(commentID)).
				Str("author_id", comment.AuthorID).
				Msg("Foreign comment deletion denied")
			respondTaxonomyError(w, err)
			return
		}
	}

	if err := h.comments.Delete(r.Context(), ideaID, commentID, claims.UserID()); err != nil {
		respondTaxonomyError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ideaId":    ideaID,
		"commentId": commentID,
		"deleted":   true,
	})
}

// CommentList handles GET /api/v1/ideas/{id}/comments.
//
// Returns the idea's thread ordered by creation time with per-comment
// aggregate scores. Together with IdeaSnapshot this is the state a client
// refetches after reconnecting.
func (h *Handler) CommentList(w http.ResponseWriter, r *http.Request) {
	if h.requireClaims(w, r) == nil {
		return
	}

	ideaID := chi.URLParam(r, "id")

	start := time.Now()
	thread, err := h.comments.List(r.Context(), ideaID)
	if err != nil {
		respondTaxonomyError(w, err)
		return
	}

	// Flatten to values so an empty thread serializes as [], not null
	commentList := make([]models.Comment, len(thread))
	for i, c := range thread {
		commentList[i] = *c
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: &models.ThreadResponse{
			IdeaID:   ideaID,
			Comments: commentList,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
