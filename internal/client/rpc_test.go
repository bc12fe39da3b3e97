// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/models"
)

func testRPCConfig(serverURL string) config.ClientConfig {
	return config.ClientConfig{
		ServerURL:        serverURL,
		RPCRetryAttempts: 2,
		RPCRetryDelay:    time.Millisecond,
		RequestTimeout:   2 * time.Second,
	}
}

func writeTestEnvelope(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.APIResponse{Status: "success", Data: data}); err != nil {
		t.Errorf("Failed to encode envelope: %v", err)
	}
}

func writeTestError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.APIResponse{Status: "error", Error: &models.APIError{Code: code, Message: message}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("Failed to encode error envelope: %v", err)
	}
}

func TestVoteIdea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ideas/idea-1/vote" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token, got %q", got)
		}

		var req models.VoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		if req.Direction != "up" {
			t.Errorf("Expected direction up, got %q", req.Direction)
		}

		writeTestEnvelope(t, w, http.StatusOK, models.VoteResponse{
			EntityID:           "idea-1",
			NewScore:           6,
			EffectiveDirection: models.DirectionUp,
		})
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	resp, err := rpc.VoteIdea(context.Background(), "idea-1", models.DirectionUp)
	if err != nil {
		t.Fatalf("VoteIdea failed: %v", err)
	}
	if resp.NewScore != 6 || resp.EffectiveDirection != models.DirectionUp {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestVote_RetriesOnConflict(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeTestError(t, w, http.StatusConflict, models.CodeConflict, "concurrent modification, retry")
			return
		}
		writeTestEnvelope(t, w, http.StatusOK, models.VoteResponse{
			EntityID: "idea-1", NewScore: 2, EffectiveDirection: models.DirectionUp,
		})
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	resp, err := rpc.VoteIdea(context.Background(), "idea-1", models.DirectionUp)
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if resp.NewScore != 2 {
		t.Errorf("Expected score 2, got %d", resp.NewScore)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 requests (2 conflicts + 1 success), got %d", got)
	}
}

func TestVote_ConflictBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeTestError(t, w, http.StatusConflict, models.CodeConflict, "concurrent modification, retry")
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	_, err := rpc.VoteIdea(context.Background(), "idea-1", models.DirectionUp)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	// RPCRetryAttempts 2 means one original try plus two retries.
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
}

func TestVote_NotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeTestError(t, w, http.StatusNotFound, models.CodeNotFound, "entity not found")
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	_, err := rpc.VoteIdea(context.Background(), "idea-gone", models.DirectionUp)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("Not-found must not retry, saw %d requests", got)
	}
}

func TestVote_TaxonomyMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		sentinel error
	}{
		{"forbidden", http.StatusForbidden, models.CodeForbidden, models.ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, models.CodeUnauthorized, models.ErrUnauthorized},
		{"not found", http.StatusNotFound, models.CodeNotFound, models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeTestError(t, w, tt.status, tt.code, "nope")
			}))
			defer srv.Close()

			rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
			_, err := rpc.VoteIdea(context.Background(), "idea-1", models.DirectionUp)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Expected %v, got %v", tt.sentinel, err)
			}
		})
	}
}

func TestVoteComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/comments/c-1/vote" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		writeTestEnvelope(t, w, http.StatusOK, models.VoteResponse{
			EntityID: "c-1", NewScore: 1, EffectiveDirection: models.DirectionUp,
		})
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	resp, err := rpc.VoteComment(context.Background(), "c-1", models.DirectionUp)
	if err != nil {
		t.Fatalf("VoteComment failed: %v", err)
	}
	if resp.EntityID != "c-1" {
		t.Errorf("Expected entity c-1, got %q", resp.EntityID)
	}
}

func TestIdeaSnapshotAndThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/ideas/idea-1":
			writeTestEnvelope(t, w, http.StatusOK, models.EntitySnapshot{
				EntityID: "idea-1", Kind: models.KindIdea, Score: 12, ViewerDirection: models.DirectionDown,
			})
		case "/api/v1/ideas/idea-1/comments":
			writeTestEnvelope(t, w, http.StatusOK, models.ThreadResponse{
				IdeaID:   "idea-1",
				Comments: []models.Comment{{ID: "c-1", IdeaID: "idea-1", Body: "hi"}},
			})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")

	snap, err := rpc.IdeaSnapshot(context.Background(), "idea-1")
	if err != nil {
		t.Fatalf("IdeaSnapshot failed: %v", err)
	}
	if snap.Score != 12 || snap.ViewerDirection != models.DirectionDown {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	thread, err := rpc.Thread(context.Background(), "idea-1")
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}
	if len(thread.Comments) != 1 || thread.Comments[0].ID != "c-1" {
		t.Errorf("Unexpected thread: %+v", thread)
	}
}

func TestCreateAndDeleteComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/ideas/idea-1/comments":
			var req models.CommentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("Failed to decode comment request: %v", err)
			}
			writeTestEnvelope(t, w, http.StatusCreated, models.Comment{
				ID: "c-new", IdeaID: "idea-1", Body: req.Body,
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/ideas/idea-1/comments/c-new":
			writeTestEnvelope(t, w, http.StatusOK, map[string]interface{}{"deleted": true})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")

	comment, err := rpc.CreateComment(context.Background(), "idea-1", &models.CommentRequest{Body: "hello"})
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if comment.ID != "c-new" || comment.Body != "hello" {
		t.Errorf("Unexpected comment: %+v", comment)
	}

	if err := rpc.DeleteComment(context.Background(), "idea-1", "c-new"); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
}

func TestServerErrorSurfacesWithoutSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTestError(t, w, http.StatusInternalServerError, models.CodeInternal, "internal error")
	}))
	defer srv.Close()

	rpc := NewRPC(testRPCConfig(srv.URL), "test-token")
	_, err := rpc.VoteIdea(context.Background(), "idea-1", models.DirectionUp)
	if err == nil {
		t.Fatal("Expected error from 500 response")
	}
	for _, sentinel := range []error{models.ErrNotFound, models.ErrConflict, models.ErrForbidden, models.ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			t.Errorf("500 mapped onto client taxonomy error %v", sentinel)
		}
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	rpc := NewRPC(testRPCConfig("http://127.0.0.1:0"), "test-token")
	if got := rpc.BreakerState(); got != "closed" {
		t.Errorf("Expected closed breaker, got %q", got)
	}
}
