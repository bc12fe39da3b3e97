// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/jmercer/concord/internal/config"
	"github.com/jmercer/concord/internal/events"
	"github.com/jmercer/concord/internal/logging"
	"github.com/jmercer/concord/internal/models"
	ws "github.com/jmercer/concord/internal/websocket"
)

// ErrNotConnected is returned by sends attempted while the socket is
// down. Joins tolerate it (membership replays on reconnect); typing
// signals surface it.
var ErrNotConnected = errors.New("not connected")

// Connection timing. The server pings on its own schedule; these cover
// the client's outbound pings and the deadline its pongs must beat.
const (
	dialTimeout       = 10 * time.Second
	frameWriteTimeout = 10 * time.Second
	clientPongWait    = 60 * time.Second
	clientPingPeriod  = 30 * time.Second
)

// Reconnect fallbacks for zero-valued configuration.
const (
	defaultReconnectBase = time.Second
	defaultReconnectCap  = 32 * time.Second
)

// State is the connection lifecycle state.
type State int32

// Lifecycle states. Failed is terminal: the configured attempt budget
// was exhausted and the application must decide what to do next.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the state name for logs and displays.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Refetcher pulls authoritative state after a reconnect. *RPC satisfies
// it; tests substitute fakes.
type Refetcher interface {
	IdeaSnapshot(ctx context.Context, ideaID string) (*models.EntitySnapshot, error)
	Thread(ctx context.Context, ideaID string) (*models.ThreadResponse, error)
}

// Conn manages one WebSocket connection to the sync server through its
// whole lifecycle: Disconnected -> Connecting -> Connected, dropping
// into Reconnecting with exponential backoff on failures, and Failed
// once the attempt budget is spent.
//
// Room membership is client-owned: the server never assumes it across a
// disconnect. Conn keeps the set of active entities and, on every
// transition into Connected, re-joins each room and refetches its
// snapshot and thread through the Refetcher. Missed broadcasts are not
// replayed; refetch is the recovery path.
type Conn struct {
	cfg     config.ClientConfig
	token   string
	refetch Refetcher

	state atomic.Int32

	connMu  sync.RWMutex
	conn    *websocket.Conn
	running bool

	writeMu sync.Mutex

	activeMu sync.Mutex
	active   map[string]bool

	callbackMu sync.RWMutex
	onState    func(from, to State)
	onEvent    func(*events.Event)
	onSnapshot func(*models.EntitySnapshot)
	onThread   func(*models.ThreadResponse)
	onFailure  func(error)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConn creates a connection manager. The token authenticates the
// upgrade; refetch may be nil, in which case reconnects rejoin rooms but
// leave refetching to the application.
func NewConn(cfg config.ClientConfig, token string, refetch Refetcher) *Conn {
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.ReconnectCap <= 0 {
		cfg.ReconnectCap = defaultReconnectCap
	}

	return &Conn{
		cfg:     cfg,
		token:   token,
		refetch: refetch,
		active:  make(map[string]bool),
		stopCh:  make(chan struct{}),
	}
}

// SetCallbacks registers the handlers the connection invokes as it runs.
// All are optional; pass nil to ignore a signal. Registration is safe
// for concurrent use with a running connection.
//
//   - onState: every lifecycle transition, with the old and new state
//   - onEvent: every decoded room event
//   - onSnapshot, onThread: refetched state after each (re)connect
//   - onFailure: the terminal error once the reconnect budget is spent
func (c *Conn) SetCallbacks(
	onState func(from, to State),
	onEvent func(*events.Event),
	onSnapshot func(*models.EntitySnapshot),
	onThread func(*models.ThreadResponse),
	onFailure func(error),
) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()

	c.onState = onState
	c.onEvent = onEvent
	c.onSnapshot = onSnapshot
	c.onThread = onThread
	c.onFailure = onFailure
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the socket is currently up.
func (c *Conn) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials the server and starts the read and keepalive loops.
// Returns an error if the initial dial fails; after a successful first
// connect, drops are handled internally by the reconnect path. Calling
// Connect on a running connection is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.running {
		c.connMu.Unlock()
		return nil
	}
	c.running = true
	c.connMu.Unlock()

	c.transition(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.connMu.Lock()
		c.running = false
		c.connMu.Unlock()
		c.transition(StateDisconnected)
		return err
	}
	c.transition(StateConnected)

	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	c.resync(ctx)
	return nil
}

// Close shuts the connection down and waits for its goroutines. Safe to
// call more than once and safe after a terminal failure.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.closeSocket()
	c.wg.Wait()

	c.connMu.Lock()
	c.running = false
	c.connMu.Unlock()

	if c.State() != StateFailed {
		c.transition(StateDisconnected)
	}
	return nil
}

// JoinEntity adds an entity to the active set and joins its room. When
// the socket is down the membership is only recorded; the next
// transition into Connected replays it.
func (c *Conn) JoinEntity(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	c.activeMu.Lock()
	c.active[entityID] = true
	c.activeMu.Unlock()

	if err := c.sendControl(ws.MessageTypeJoin, entityID); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		return err
	}
	return nil
}

// LeaveEntity removes an entity from the active set and leaves its room.
func (c *Conn) LeaveEntity(entityID string) error {
	if entityID == "" {
		return nil
	}

	c.activeMu.Lock()
	delete(c.active, entityID)
	c.activeMu.Unlock()

	if err := c.sendControl(ws.MessageTypeLeave, entityID); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil
		}
		return err
	}
	return nil
}

// Typing announces the user is composing in an entity's room. Callers
// should wrap this in a TypingThrottle rather than calling per
// keystroke.
func (c *Conn) Typing(entityID string) error {
	return c.sendControl(ws.MessageTypeTyping, entityID)
}

// StoppedTyping clears the user's typing indicator in an entity's room.
func (c *Conn) StoppedTyping(entityID string) error {
	return c.sendControl(ws.MessageTypeStoppedTyping, entityID)
}

// ActiveEntities returns the entities with open views, sorted nowhere
// in particular.
func (c *Conn) ActiveEntities() []string {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()

	out := make([]string, 0, len(c.active))
	for id := range c.active {
		out = append(out, id)
	}
	return out
}

// transition swaps the lifecycle state and notifies the state callback.
func (c *Conn) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}

	logging.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("connection state change")

	c.callbackMu.RLock()
	cb := c.onState
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(from, to)
	}
}

// buildURL converts the configured server URL into the authenticated
// WebSocket endpoint. Browsers cannot set headers on upgrade requests,
// so the server accepts the token as a query parameter; this client
// does the same for parity with what the server actually sees.
func (c *Conn) buildURL() (string, error) {
	parsed, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}

	endpoint := url.URL{Scheme: scheme, Host: parsed.Host, Path: "/api/v1/ws"}
	q := endpoint.Query()
	q.Set("token", c.token)
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

// originHeader returns the Origin for the upgrade handshake. The server
// rejects origin-less upgrades, so one is always sent: the configured
// value, or the HTTP form of the server URL when none is set.
func (c *Conn) originHeader() string {
	if c.cfg.Origin != "" {
		return c.cfg.Origin
	}

	parsed, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return c.cfg.ServerURL
	}
	scheme := "http"
	if parsed.Scheme == "https" || parsed.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host
}

// dial establishes the socket and arms the read deadline that pongs
// must keep resetting.
func (c *Conn) dial(ctx context.Context) error {
	wsURL, err := c.buildURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{"Origin": []string{c.originHeader()}}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(clientPongWait)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	logging.Info().Str("url", c.cfg.ServerURL).Msg("sync connection established")
	return nil
}

// current returns the live socket, or nil while disconnected.
func (c *Conn) current() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// closeSocket tears the socket down with a polite close frame.
func (c *Conn) closeSocket() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(time.Second)); err != nil {
		logging.Debug().Err(err).Msg("close frame write failed")
	}
	_ = c.conn.Close()
	c.conn = nil
}

// sendControl writes one typed frame to the server.
func (c *Conn) sendControl(msgType, entityID string) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(ws.ClientMessage{Type: msgType, EntityID: entityID})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", msgType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", msgType, err)
	}
	return nil
}

// resync runs on every transition into Connected: re-join each active
// room first, then refetch its snapshot and thread so nothing broadcast
// during the gap is missed. Errors are logged, not fatal; a failed
// refetch leaves a stale view the next broadcast heals.
func (c *Conn) resync(ctx context.Context) {
	for _, entityID := range c.ActiveEntities() {
		if err := c.sendControl(ws.MessageTypeJoin, entityID); err != nil {
			logging.Warn().Err(err).Str("entity_id", entityID).Msg("room rejoin failed")
			continue
		}

		if c.refetch == nil {
			continue
		}

		snap, err := c.refetch.IdeaSnapshot(ctx, entityID)
		if err != nil {
			logging.Warn().Err(err).Str("entity_id", entityID).Msg("snapshot refetch failed")
		} else {
			c.emitSnapshot(snap)
		}

		thread, err := c.refetch.Thread(ctx, entityID)
		if err != nil {
			logging.Warn().Err(err).Str("entity_id", entityID).Msg("thread refetch failed")
		} else {
			c.emitThread(thread)
		}
	}
}

// readLoop decodes inbound events and owns the reconnect path. A
// malformed frame is logged and dropped, never fatal; a read error
// drops the socket and enters backoff.
func (c *Conn) readLoop(ctx context.Context) {
	defer c.wg.Done()

	attempts := 0
	delay := c.cfg.ReconnectBase

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		conn := c.current()
		if conn == nil {
			c.transition(StateReconnecting)

			if c.cfg.ReconnectMaxAttempts > 0 && attempts >= c.cfg.ReconnectMaxAttempts {
				err := fmt.Errorf("reconnect gave up after %d attempts", attempts)
				logging.Error().Err(err).Msg("sync connection failed")
				c.transition(StateFailed)
				c.emitFailure(err)
				c.stopOnce.Do(func() { close(c.stopCh) })
				return
			}
			attempts++

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			}

			delay *= 2
			if delay > c.cfg.ReconnectCap {
				delay = c.cfg.ReconnectCap
			}

			if err := c.dial(ctx); err != nil {
				logging.Warn().Err(err).Int("attempt", attempts).Msg("reconnect failed")
				continue
			}

			attempts = 0
			delay = c.cfg.ReconnectBase
			c.transition(StateConnected)
			c.resync(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("sync connection closed by server")
			} else {
				logging.Warn().Err(err).Msg("sync connection dropped")
			}

			c.closeSocket()
			c.transition(StateDisconnected)
			continue
		}

		var evt events.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			logging.Warn().Err(err).Msg("dropping malformed server frame")
			continue
		}
		c.emitEvent(&evt)
	}
}

// pingLoop keeps the connection alive. The server answers each ping
// with a pong that resets the read deadline; a missed pong lets the
// deadline expire, which errors the blocked read and enters the
// reconnect path.
func (c *Conn) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(clientPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			conn := c.current()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(frameWriteTimeout)); err != nil {
				logging.Debug().Err(err).Msg("keepalive ping failed")
				c.closeSocket()
			}
		}
	}
}

func (c *Conn) emitEvent(evt *events.Event) {
	c.callbackMu.RLock()
	cb := c.onEvent
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(evt)
	}
}

func (c *Conn) emitSnapshot(snap *models.EntitySnapshot) {
	c.callbackMu.RLock()
	cb := c.onSnapshot
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(snap)
	}
}

func (c *Conn) emitThread(thread *models.ThreadResponse) {
	c.callbackMu.RLock()
	cb := c.onThread
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(thread)
	}
}

func (c *Conn) emitFailure(err error) {
	c.callbackMu.RLock()
	cb := c.onFailure
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}
