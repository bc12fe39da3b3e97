// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package websocket

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	// Initialize logging for tests with discard output
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		SendBuffer:     8,
		ReadLimit:      8192,
		WriteTimeout:   time.Second,
		PongTimeout:    time.Minute,
		PingInterval:   50 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// setupHub creates a hub, runs it until the test ends, and waits for the
// loop to come up.
func setupHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(testWSConfig(), nil)
	startHub(t, hub)
	return hub
}

func startHub(t *testing.T, hub *Hub) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})

	waitFor(t, func() bool {
		select {
		case <-hub.doneCh():
			return false
		default:
			return true
		}
	}, "hub did not start")
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

var testClientSeq int

// createTestClient creates a connection-less client for loop tests.
func createTestClient(hub *Hub) *Client {
	testClientSeq++
	return NewClient(hub, nil, fmt.Sprintf("user-%d", testClientSeq), fmt.Sprintf("name-%d", testClientSeq))
}

// registerClient registers a client and waits for the loop to apply it.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()

	before := hub.GetClientCount()
	hub.Register <- client
	waitFor(t, func() bool { return hub.GetClientCount() > before }, "client was not registered")
}

// joinRoom joins a client to a room and waits for the membership.
func joinRoom(t *testing.T, hub *Hub, client *Client, room string) {
	t.Helper()

	before := hub.RoomSize(room)
	hub.join <- membership{client: client, room: room}
	waitFor(t, func() bool { return hub.RoomSize(room) > before }, "client did not join room")
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testWSConfig(), nil)

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"rooms map", hub.rooms != nil, "rooms map not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"join channel", hub.join != nil, "join channel not initialized"},
		{"leave channel", hub.leave != nil, "leave channel not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"empty clients", hub.GetClientCount() == 0, "clients map should be empty"},
		{"empty rooms", hub.RoomCount() == 0, "rooms map should be empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := setupHub(t)

	c1 := createTestClient(hub)
	c2 := createTestClient(hub)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	if got := hub.GetClientCount(); got != 2 {
		t.Errorf("Expected 2 clients, got %d", got)
	}

	hub.Unregister <- c1
	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "client was not unregistered")

	// The hub closes the send channel on unregister.
	select {
	case _, ok := <-c1.send:
		if ok {
			t.Error("Expected send channel to be closed, got a frame")
		}
	case <-time.After(time.Second):
		t.Error("send channel was not closed")
	}
}

func TestHub_UnregisterUnknownClientIsNoop(t *testing.T) {
	hub := setupHub(t)

	stranger := createTestClient(hub)
	hub.Unregister <- stranger

	// A second unregister of the same client must not panic either.
	registered := createTestClient(hub)
	registerClient(t, hub, registered)
	hub.Unregister <- registered
	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "client was not unregistered")
	hub.Unregister <- registered

	time.Sleep(20 * time.Millisecond)
	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("Expected 0 clients, got %d", got)
	}
}

func TestHub_JoinLeave(t *testing.T) {
	hub := setupHub(t)

	c1 := createTestClient(hub)
	c2 := createTestClient(hub)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	joinRoom(t, hub, c1, "idea-1")
	joinRoom(t, hub, c2, "idea-1")

	if got := hub.RoomSize("idea-1"); got != 2 {
		t.Errorf("Expected room size 2, got %d", got)
	}
	if got := hub.RoomCount(); got != 1 {
		t.Errorf("Expected 1 room, got %d", got)
	}

	hub.leave <- membership{client: c1, room: "idea-1"}
	waitFor(t, func() bool { return hub.RoomSize("idea-1") == 1 }, "client did not leave room")

	// The last member leaving dissolves the room.
	hub.leave <- membership{client: c2, room: "idea-1"}
	waitFor(t, func() bool { return hub.RoomCount() == 0 }, "empty room was not removed")
}

func TestHub_JoinRequiresRegistration(t *testing.T) {
	hub := setupHub(t)

	stranger := createTestClient(hub)
	hub.join <- membership{client: stranger, room: "idea-1"}

	// Give the loop a beat, then confirm nothing was recorded.
	time.Sleep(20 * time.Millisecond)
	if got := hub.RoomSize("idea-1"); got != 0 {
		t.Errorf("Expected empty room for unregistered client, got size %d", got)
	}
}

func TestHub_DuplicateJoinIsIdempotent(t *testing.T) {
	hub := setupHub(t)

	c := createTestClient(hub)
	registerClient(t, hub, c)

	joinRoom(t, hub, c, "idea-1")
	hub.join <- membership{client: c, room: "idea-1"}

	time.Sleep(20 * time.Millisecond)
	if got := hub.RoomSize("idea-1"); got != 1 {
		t.Errorf("Expected room size 1 after duplicate join, got %d", got)
	}
}

func TestHub_MultiRoomMembership(t *testing.T) {
	hub := setupHub(t)

	c := createTestClient(hub)
	registerClient(t, hub, c)
	joinRoom(t, hub, c, "idea-1")
	joinRoom(t, hub, c, "idea-2")

	if got := hub.RoomCount(); got != 2 {
		t.Errorf("Expected 2 rooms, got %d", got)
	}

	// Disconnect removes every membership without explicit leaves.
	hub.Unregister <- c
	waitFor(t, func() bool { return hub.RoomCount() == 0 }, "memberships were not cleaned up")
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub := setupHub(t)

	watcher1 := createTestClient(hub)
	watcher2 := createTestClient(hub)
	bystander := createTestClient(hub)
	for _, c := range []*Client{watcher1, watcher2, bystander} {
		registerClient(t, hub, c)
	}
	joinRoom(t, hub, watcher1, "idea-1")
	joinRoom(t, hub, watcher2, "idea-1")
	joinRoom(t, hub, bystander, "idea-2")

	payload := []byte(`{"type":"vote:updated","room":"idea-1"}`)
	if got := hub.BroadcastToRoom("idea-1", payload); got != 2 {
		t.Errorf("Expected 2 recipients, got %d", got)
	}

	for _, c := range []*Client{watcher1, watcher2} {
		select {
		case frame := <-c.send:
			if string(frame) != string(payload) {
				t.Errorf("Expected payload %s, got %s", payload, frame)
			}
		case <-time.After(time.Second):
			t.Error("watcher did not receive the frame")
		}
	}

	select {
	case frame := <-bystander.send:
		t.Errorf("Bystander in another room received frame %s", frame)
	default:
	}
}

func TestHub_BroadcastToRoom_EmptyRoom(t *testing.T) {
	hub := setupHub(t)

	if got := hub.BroadcastToRoom("idea-ghost", []byte(`{}`)); got != 0 {
		t.Errorf("Expected 0 recipients for unknown room, got %d", got)
	}
}

func TestHub_BroadcastToRoom_DropsSlowClient(t *testing.T) {
	hub := setupHub(t)

	slow := NewClient(hub, nil, "user-slow", "slow")
	slow.send = make(chan []byte, 1)
	healthy := createTestClient(hub)
	registerClient(t, hub, slow)
	registerClient(t, hub, healthy)
	joinRoom(t, hub, slow, "idea-1")
	joinRoom(t, hub, healthy, "idea-1")

	// First broadcast fills the slow client's buffer.
	if got := hub.BroadcastToRoom("idea-1", []byte(`{"seq":1}`)); got != 2 {
		t.Fatalf("Expected 2 recipients on first broadcast, got %d", got)
	}

	// Second broadcast finds it full: deliver to the healthy client and
	// disconnect the slow one instead of blocking the loop.
	if got := hub.BroadcastToRoom("idea-1", []byte(`{"seq":2}`)); got != 1 {
		t.Errorf("Expected 1 recipient on second broadcast, got %d", got)
	}

	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "slow client was not dropped")
	if got := hub.RoomSize("idea-1"); got != 1 {
		t.Errorf("Expected slow client removed from room, size %d", got)
	}
	if slow.closeReason != "slow consumer" {
		t.Errorf("Expected close reason 'slow consumer', got %q", slow.closeReason)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(testWSConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	waitFor(t, func() bool {
		select {
		case <-hub.doneCh():
			return false
		default:
			return true
		}
	}, "hub did not start")

	c := createTestClient(hub)
	registerClient(t, hub, c)
	joinRoom(t, hub, c, "idea-1")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("Expected closed send channel after shutdown")
		}
	case <-time.After(time.Second):
		t.Error("send channel was not closed on shutdown")
	}
	if c.closeReason != "server shutting down" {
		t.Errorf("Expected shutdown close reason, got %q", c.closeReason)
	}
	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", got)
	}
	if got := hub.RoomCount(); got != 0 {
		t.Errorf("Expected 0 rooms after shutdown, got %d", got)
	}
}

func TestHub_BroadcastAfterShutdownReturnsZero(t *testing.T) {
	hub := NewHub(testWSConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	cancel()
	<-done

	start := time.Now()
	if got := hub.BroadcastToRoom("idea-1", []byte(`{}`)); got != 0 {
		t.Errorf("Expected 0 recipients on stopped hub, got %d", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Broadcast on stopped hub blocked for %v", elapsed)
	}
}

func TestHub_BroadcastBeforeStartReturnsZero(t *testing.T) {
	hub := NewHub(testWSConfig(), nil)

	if got := hub.BroadcastToRoom("idea-1", []byte(`{}`)); got != 0 {
		t.Errorf("Expected 0 recipients on never-started hub, got %d", got)
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("Expected context_canceled, got %s", got)
	}

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("Expected context_deadline, got %s", got)
	}
}
