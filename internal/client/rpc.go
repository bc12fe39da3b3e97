// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
)

// Fallbacks for zero-valued client configuration.
const (
	defaultRequestTimeout   = 10 * time.Second
	defaultRPCRetryAttempts = 3
	defaultRPCRetryDelay    = 150 * time.Millisecond
)

// maxErrorBodySize bounds how much of a non-envelope error response is
// read for diagnostics.
const maxErrorBodySize = 64 * 1024

// envelope mirrors the server's response wrapper with the payload kept
// raw so each call decodes it into its own type.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error,omitempty"`
}

// RPC is the HTTP caller for the vote, snapshot, and comment endpoints.
//
// Every call runs inside a circuit breaker so a struggling server sheds
// client traffic instead of accumulating it. The breaker counts
// transport errors and 5xx responses as failures; taxonomy errors like
// NOT_FOUND or FORBIDDEN are the server working correctly and never
// trip it. Vote calls additionally retry on transient conflicts, with a
// bounded attempt count. A retry re-sends the RPC as-is; the optimistic
// prediction made for the original attempt is never re-applied.
//
// Thread Safety: safe for concurrent use.
type RPC struct {
	baseURL string
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[*envelope]

	retryAttempts int
	retryDelay    time.Duration
}

// NewRPC creates a caller for the server named in the client config,
// authenticating every request with the given bearer token.
func NewRPC(cfg config.ClientConfig, token string) *RPC {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	retryAttempts := cfg.RPCRetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = defaultRPCRetryAttempts
	}
	retryDelay := cfg.RPCRetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRPCRetryDelay
	}

	settings := gobreaker.Settings{
		Name:        "vote-rpc",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("RPC breaker state change")
		},
	}

	return &RPC{
		baseURL:       strings.TrimRight(cfg.ServerURL, "/"),
		token:         token,
		client:        &http.Client{Timeout: timeout},
		cb:            gobreaker.NewCircuitBreaker[*envelope](settings),
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
}

// VoteIdea casts or toggles the viewer's vote on an idea and returns
// the authoritative outcome.
func (c *RPC) VoteIdea(ctx context.Context, ideaID string, direction models.VoteDirection) (*models.VoteResponse, error) {
	path := "/api/v1/ideas/" + url.PathEscape(ideaID) + "/vote"
	return c.vote(ctx, path, direction)
}

// VoteComment casts or toggles the viewer's vote on a comment.
func (c *RPC) VoteComment(ctx context.Context, commentID string, direction models.VoteDirection) (*models.VoteResponse, error) {
	path := "/api/v1/comments/" + url.PathEscape(commentID) + "/vote"
	return c.vote(ctx, path, direction)
}

// vote posts a vote request with bounded retry on transient conflicts.
// Only ErrConflict retries; everything else, breaker rejections
// included, surfaces immediately.
func (c *RPC) vote(ctx context.Context, path string, direction models.VoteDirection) (*models.VoteResponse, error) {
	req := models.VoteRequest{Direction: string(direction)}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		var out models.VoteResponse
		err := c.call(ctx, http.MethodPost, path, req, &out)
		if err == nil {
			return &out, nil
		}
		lastErr = err

		if !errors.Is(err, models.ErrConflict) || attempt == c.retryAttempts {
			return nil, err
		}

		logging.Debug().
			Int("attempt", attempt+1).
			Str("path", path).
			Msg("vote contested, retrying")

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// IdeaSnapshot fetches the authoritative per-viewer state of an idea.
func (c *RPC) IdeaSnapshot(ctx context.Context, ideaID string) (*models.EntitySnapshot, error) {
	var out models.EntitySnapshot
	path := "/api/v1/ideas/" + url.PathEscape(ideaID)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Thread fetches an idea's full comment thread.
func (c *RPC) Thread(ctx context.Context, ideaID string) (*models.ThreadResponse, error) {
	var out models.ThreadResponse
	path := "/api/v1/ideas/" + url.PathEscape(ideaID) + "/comments"
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateComment posts a comment or reply to an idea's thread.
func (c *RPC) CreateComment(ctx context.Context, ideaID string, req *models.CommentRequest) (*models.Comment, error) {
	var out models.Comment
	path := "/api/v1/ideas/" + url.PathEscape(ideaID) + "/comments"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment from an idea's thread.
func (c *RPC) DeleteComment(ctx context.Context, ideaID, commentID string) error {
	path := "/api/v1/ideas/" + url.PathEscape(ideaID) + "/comments/" + url.PathEscape(commentID)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// call performs one request through the breaker, decodes the envelope,
// maps taxonomy errors back onto the shared sentinels, and unmarshals
// the data payload into result when both are present.
func (c *RPC) call(ctx context.Context, method, path string, body, result interface{}) error {
	env, err := c.cb.Execute(func() (*envelope, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("vote service unavailable: %w", err)
		}
		return err
	}

	if env.Error != nil {
		if sentinel := models.ErrorFromCode(env.Error.Code); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, env.Error.Message)
		}
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// roundTrip performs the raw HTTP exchange. It returns an error for
// transport failures and 5xx responses so the breaker counts them;
// envelopes carrying taxonomy errors return cleanly and are mapped by
// the caller.
func (c *RPC) roundTrip(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		if env.Error != nil {
			return nil, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, env.Error.Message)
		}
		return nil, fmt.Errorf("server error (HTTP %d)", resp.StatusCode)
	}

	return &env, nil
}

// BreakerState reports the breaker's current state for health displays.
func (c *RPC) BreakerState() string {
	return c.cb.State().String()
}
