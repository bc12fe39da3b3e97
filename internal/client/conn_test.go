// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/events"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
	ws "github.com/jmercer/concord/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	// Initialize logging for tests with discard output
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// syncServer plays the sync endpoint: it upgrades on /api/v1/ws, records
// every control frame clients send, and can push event frames or sever
// connections to drive the reconnect path.
type syncServer struct {
	t       *testing.T
	srv     *httptest.Server
	frames  chan ws.ClientMessage
	origins chan string

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newSyncServer(t *testing.T) *syncServer {
	t.Helper()

	s := &syncServer{
		t:       t,
		frames:  make(chan ws.ClientMessage, 32),
		origins: make(chan string, 8),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ws" {
			t.Errorf("Unexpected upgrade path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") == "" {
			t.Errorf("Upgrade request missing token parameter")
		}
		select {
		case s.origins <- r.Header.Get("Origin"):
		default:
		}

		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ws.ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case s.frames <- msg:
			default:
			}
		}
	}))
	return s
}

// push writes an event frame on the most recent connection.
func (s *syncServer) push(evt *events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.t.Errorf("Failed to marshal event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Error("No connection to push event on")
		return
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.t.Errorf("Failed to push event: %v", err)
	}
}

// drop severs every live socket without stopping the listener, so
// clients can reconnect.
func (s *syncServer) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// stop shuts the listener down; dials fail from here on.
func (s *syncServer) stop() {
	s.srv.Close()
}

func (s *syncServer) close() {
	s.drop()
	s.srv.Close()
}

// waitFrame blocks until the server has received a control frame.
func (s *syncServer) waitFrame(timeout time.Duration) ws.ClientMessage {
	s.t.Helper()
	select {
	case frame := <-s.frames:
		return frame
	case <-time.After(timeout):
		s.t.Fatalf("Timed out after %v waiting for client frame", timeout)
		return ws.ClientMessage{}
	}
}

// fakeRefetcher records refetch calls and serves canned state.
type fakeRefetcher struct {
	mu        sync.Mutex
	snapshots []string
	threads   []string
}

func (f *fakeRefetcher) IdeaSnapshot(_ context.Context, ideaID string) (*models.EntitySnapshot, error) {
	f.mu.Lock()
	f.snapshots = append(f.snapshots, ideaID)
	f.mu.Unlock()
	return &models.EntitySnapshot{
		EntityID:        ideaID,
		Kind:            models.KindIdea,
		Score:           42,
		ViewerDirection: models.DirectionUp,
	}, nil
}

func (f *fakeRefetcher) Thread(_ context.Context, ideaID string) (*models.ThreadResponse, error) {
	f.mu.Lock()
	f.threads = append(f.threads, ideaID)
	f.mu.Unlock()
	return &models.ThreadResponse{IdeaID: ideaID, Comments: []models.Comment{}}, nil
}

func (f *fakeRefetcher) calls() (snapshots, threads []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.snapshots...), append([]string(nil), f.threads...)
}

func testConnConfig(serverURL string) config.ClientConfig {
	return config.ClientConfig{
		ServerURL:     serverURL,
		ReconnectBase: 10 * time.Millisecond,
		ReconnectCap:  40 * time.Millisecond,
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		StateFailed:       "failed",
		State(99):         "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name      string
		serverURL string
		token     string
		want      string
	}{
		{
			name:      "http becomes ws",
			serverURL: "http://127.0.0.1:2673",
			token:     "abc",
			want:      "ws://127.0.0.1:2673/api/v1/ws?token=abc",
		},
		{
			name:      "https becomes wss",
			serverURL: "https://concord.example.com:8443",
			token:     "secret",
			want:      "wss://concord.example.com:8443/api/v1/ws?token=secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConn(config.ClientConfig{ServerURL: tt.serverURL}, tt.token, nil)
			got, err := c.buildURL()
			if err != nil {
				t.Fatalf("buildURL() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildURL_InvalidServerURL(t *testing.T) {
	c := NewConn(config.ClientConfig{ServerURL: "://nope"}, "t", nil)
	if _, err := c.buildURL(); err == nil {
		t.Error("Expected error for unparseable server URL")
	}
}

func TestOriginHeader(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ClientConfig
		want string
	}{
		{
			name: "derived from http server URL",
			cfg:  config.ClientConfig{ServerURL: "http://127.0.0.1:2673"},
			want: "http://127.0.0.1:2673",
		},
		{
			name: "derived from https server URL",
			cfg:  config.ClientConfig{ServerURL: "https://concord.example.com:8443"},
			want: "https://concord.example.com:8443",
		},
		{
			name: "explicit origin wins",
			cfg: config.ClientConfig{
				ServerURL: "http://127.0.0.1:2673",
				Origin:    "https://boards.example.com",
			},
			want: "https://boards.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConn(tt.cfg, "t", nil)
			if got := c.originHeader(); got != tt.want {
				t.Errorf("originHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDial_SendsOrigin(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	c := NewConn(testConnConfig(server.srv.URL), "test-token", nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	select {
	case origin := <-server.origins:
		if origin != server.srv.URL {
			t.Errorf("Expected Origin %q on upgrade, got %q", server.srv.URL, origin)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for upgrade")
	}
}

func TestConnLifecycle(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	evtCh := make(chan *events.Event, 8)
	c := NewConn(testConnConfig(server.srv.URL), "test-token", nil)
	c.SetCallbacks(nil, func(evt *events.Event) { evtCh <- evt }, nil, nil, nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	if !c.IsConnected() {
		t.Fatalf("Expected connected state, got %s", c.State())
	}

	if err := c.JoinEntity("idea-1"); err != nil {
		t.Fatalf("JoinEntity() error: %v", err)
	}
	frame := server.waitFrame(2 * time.Second)
	if frame.Type != ws.MessageTypeJoin || frame.EntityID != "idea-1" {
		t.Errorf("Expected join frame for idea-1, got %+v", frame)
	}

	server.push(mustEvent(t, events.TypeVoteUpdated, "idea-1", &events.VoteUpdatedPayload{
		EntityID: "idea-1", NewScore: 3, EffectiveDirection: "up",
	}))

	select {
	case evt := <-evtCh:
		if evt.Type != events.TypeVoteUpdated {
			t.Errorf("Expected %s event, got %s", events.TypeVoteUpdated, evt.Type)
		}
		if evt.Room != "idea-1" {
			t.Errorf("Expected room idea-1, got %s", evt.Room)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for pushed event")
	}

	if err := c.LeaveEntity("idea-1"); err != nil {
		t.Fatalf("LeaveEntity() error: %v", err)
	}
	frame = server.waitFrame(2 * time.Second)
	if frame.Type != ws.MessageTypeLeave || frame.EntityID != "idea-1" {
		t.Errorf("Expected leave frame for idea-1, got %+v", frame)
	}
	if got := c.ActiveEntities(); len(got) != 0 {
		t.Errorf("Expected empty active set after leave, got %v", got)
	}
}

func TestConnect_SecondCallIsNoOp(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	c := NewConn(testConnConfig(server.srv.URL), "test-token", nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("Second Connect() should be a no-op, got error: %v", err)
	}
	if !c.IsConnected() {
		t.Error("Expected connection to remain up")
	}
}

func TestConnect_DialFailure(t *testing.T) {
	// Nothing listens on port 1.
	c := NewConn(testConnConfig("http://127.0.0.1:1"), "test-token", nil)

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Expected dial error against a closed port")
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("Expected disconnected after failed dial, got %s", got)
	}

	// Close must be safe even though no goroutines ever started.
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestJoinEntity_WhileDisconnected(t *testing.T) {
	c := NewConn(testConnConfig("http://127.0.0.1:2673"), "test-token", nil)

	if err := c.JoinEntity("idea-1"); err != nil {
		t.Fatalf("JoinEntity() while disconnected should record membership, got: %v", err)
	}
	if got := c.ActiveEntities(); len(got) != 1 || got[0] != "idea-1" {
		t.Errorf("Expected active set [idea-1], got %v", got)
	}

	if err := c.JoinEntity(""); err == nil {
		t.Error("Expected error for empty entity id")
	}

	if err := c.LeaveEntity("idea-1"); err != nil {
		t.Fatalf("LeaveEntity() while disconnected error: %v", err)
	}
	if got := c.ActiveEntities(); len(got) != 0 {
		t.Errorf("Expected empty active set, got %v", got)
	}
}

func TestTyping_WhileDisconnected(t *testing.T) {
	c := NewConn(testConnConfig("http://127.0.0.1:2673"), "test-token", nil)

	if err := c.Typing("idea-1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.StoppedTyping("idea-1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestTypingFrames(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	c := NewConn(testConnConfig(server.srv.URL), "test-token", nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	if err := c.Typing("idea-7"); err != nil {
		t.Fatalf("Typing() error: %v", err)
	}
	frame := server.waitFrame(2 * time.Second)
	if frame.Type != ws.MessageTypeTyping || frame.EntityID != "idea-7" {
		t.Errorf("Expected typing frame for idea-7, got %+v", frame)
	}

	if err := c.StoppedTyping("idea-7"); err != nil {
		t.Fatalf("StoppedTyping() error: %v", err)
	}
	frame = server.waitFrame(2 * time.Second)
	if frame.Type != ws.MessageTypeStoppedTyping || frame.EntityID != "idea-7" {
		t.Errorf("Expected stopped-typing frame for idea-7, got %+v", frame)
	}
}

func TestReconnect_RejoinsAndRefetches(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	refetcher := &fakeRefetcher{}
	snapCh := make(chan *models.EntitySnapshot, 4)
	threadCh := make(chan *models.ThreadResponse, 4)

	var stateMu sync.Mutex
	var seen []State

	c := NewConn(testConnConfig(server.srv.URL), "test-token", refetcher)
	c.SetCallbacks(
		func(_, to State) {
			stateMu.Lock()
			seen = append(seen, to)
			stateMu.Unlock()
		},
		nil,
		func(snap *models.EntitySnapshot) { snapCh <- snap },
		func(thread *models.ThreadResponse) { threadCh <- thread },
		nil,
	)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer c.Close()

	if err := c.JoinEntity("idea-1"); err != nil {
		t.Fatalf("JoinEntity() error: %v", err)
	}
	frame := server.waitFrame(2 * time.Second)
	if frame.Type != ws.MessageTypeJoin {
		t.Fatalf("Expected initial join frame, got %+v", frame)
	}

	server.drop()

	// The reconnect replays the join, then refetches through the
	// Refetcher and emits the results.
	frame = server.waitFrame(5 * time.Second)
	if frame.Type != ws.MessageTypeJoin || frame.EntityID != "idea-1" {
		t.Errorf("Expected rejoin frame for idea-1, got %+v", frame)
	}

	select {
	case snap := <-snapCh:
		if snap.EntityID != "idea-1" || snap.Score != 42 {
			t.Errorf("Unexpected refetched snapshot: %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for refetched snapshot")
	}
	select {
	case thread := <-threadCh:
		if thread.IdeaID != "idea-1" {
			t.Errorf("Unexpected refetched thread: %+v", thread)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for refetched thread")
	}

	snapshots, threads := refetcher.calls()
	if len(snapshots) == 0 || snapshots[0] != "idea-1" {
		t.Errorf("Expected snapshot refetch for idea-1, got %v", snapshots)
	}
	if len(threads) == 0 || threads[0] != "idea-1" {
		t.Errorf("Expected thread refetch for idea-1, got %v", threads)
	}

	stateMu.Lock()
	defer stateMu.Unlock()
	var sawReconnecting bool
	for _, s := range seen {
		if s == StateReconnecting {
			sawReconnecting = true
		}
	}
	if !sawReconnecting {
		t.Errorf("Expected a reconnecting transition, saw %v", seen)
	}
}

func TestReconnect_GivesUpAfterMaxAttempts(t *testing.T) {
	server := newSyncServer(t)

	failCh := make(chan error, 1)
	cfg := config.ClientConfig{
		ServerURL:            server.srv.URL,
		ReconnectBase:        5 * time.Millisecond,
		ReconnectCap:         10 * time.Millisecond,
		ReconnectMaxAttempts: 2,
	}
	c := NewConn(cfg, "test-token", nil)
	c.SetCallbacks(nil, nil, nil, nil, func(err error) { failCh <- err })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	// Stop the listener so redials fail, then sever the live socket.
	server.stop()
	server.drop()

	select {
	case err := <-failCh:
		if err == nil || !strings.Contains(err.Error(), "gave up") {
			t.Errorf("Unexpected terminal error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for terminal failure")
	}

	if got := c.State(); got != StateFailed {
		t.Errorf("Expected failed state, got %s", got)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() after failure error: %v", err)
	}
	if got := c.State(); got != StateFailed {
		t.Errorf("Close must not clear the terminal state, got %s", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	server := newSyncServer(t)
	defer server.close()

	c := NewConn(testConnConfig(server.srv.URL), "test-token", nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Second Close() error: %v", err)
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("Expected disconnected after close, got %s", got)
	}
}
