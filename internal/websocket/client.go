// Package websocket implements the client for the PashuSagar live messaging
// endpoint: connection lifecycle, heartbeat, typed event dispatch, and
// automatic reconnection with exponential backoff.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pashusagar/pashusagar-cli/internal/wire"
	"github.com/pashusagar/pashusagar-cli/pkg/logger"
)

const (
	// defaultConnectTimeout bounds the connection handshake.
	defaultConnectTimeout = 5 * time.Second
	// defaultHeartbeatInterval is how often a ping event is sent while open.
	// Keeps intermediaries from silently dropping an idle session.
	defaultHeartbeatInterval = 30 * time.Second
	// defaultMaxReconnectAttempts caps the automatic reconnect budget.
	defaultMaxReconnectAttempts = 5
	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 30 * time.Second
	// baseReconnectDelay is the backoff delay before the first reconnect.
	baseReconnectDelay = time.Second
)

var (
	// ErrConnectTimeout is returned when the handshake does not complete
	// within the connect timeout.
	ErrConnectTimeout = errors.New("websocket: connect timed out")
	// ErrClosed is returned when a connect attempt is torn down by a
	// concurrent Disconnect.
	ErrClosed = errors.New("websocket: client closed during connect")
)

// State describes the connection lifecycle.
type State int

const (
	// StateDisconnected means no transport exists and nothing is scheduled.
	StateDisconnected State = iota
	// StateConnecting means a handshake is in flight.
	StateConnecting
	// StateOpen means the transport is live.
	StateOpen
	// StateClosing means a deliberate disconnect is in progress.
	StateClosing
	// StateReconnectPending means an automatic reconnect is scheduled.
	StateReconnectPending
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnectPending:
		return "reconnect-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType keys inbound event dispatch.
type EventType string

const (
	// EventNewMessage fires for inbound chat messages.
	EventNewMessage EventType = wire.TypeNewMessage
	// EventPing fires for inbound heartbeat echoes.
	EventPing EventType = wire.TypePing
	// EventAny is the catch-all key: its handlers receive every inbound
	// event regardless of type.
	EventAny EventType = "message"
)

// Handler receives the raw payload of an inbound event. Handlers run on the
// read loop, in registration order, so they must not block.
type Handler func(data []byte)

// Subscription identifies a registered handler for removal.
type Subscription struct {
	eventType EventType
	id        int
}

type registration struct {
	id int
	fn Handler
}

// transport is the subset of *websocket.Conn the client uses. It exists so
// tests can substitute a fake connection.
type transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, endpoint string) (transport, error)

func gorillaDial(ctx context.Context, endpoint string) (transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// Client maintains at most one live connection to the messaging endpoint.
//
// A Client is constructed once by the composition root and shared by every
// consumer that needs live messaging; it is safe for concurrent use.
type Client struct {
	socketURL string
	token     string

	// Test seams. Production values are set by New.
	dial                 dialFunc
	afterFunc            func(d time.Duration, f func()) *time.Timer
	connectTimeout       time.Duration
	heartbeatInterval    time.Duration
	maxReconnectAttempts int

	// writeMu serializes transport writes; the transport allows only one
	// concurrent writer.
	writeMu sync.Mutex

	mu                sync.Mutex
	state             State
	conn              transport
	gen               int
	reconnectAttempts int
	reconnectTimer    *time.Timer
	heartbeatStop     chan struct{}
	handlers          map[EventType][]registration
	nextSubID         int
	stateListeners    []func(State)
	stateQueue        []State
	notifying         bool
}

// New creates a client for the messaging endpoint under socketURL,
// authenticating with the given bearer token.
func New(socketURL, token string) *Client {
	return &Client{
		socketURL:            socketURL,
		token:                token,
		dial:                 gorillaDial,
		afterFunc:            time.AfterFunc,
		connectTimeout:       defaultConnectTimeout,
		heartbeatInterval:    defaultHeartbeatInterval,
		maxReconnectAttempts: defaultMaxReconnectAttempts,
		handlers:             make(map[EventType][]registration),
	}
}

// endpoint builds the connection URL. The token rides in a query parameter
// because the browser clients of the same backend cannot set handshake
// headers, and the backend only reads the parameter.
func (c *Client) endpoint() string {
	return c.socketURL + "/ws/messages/?token=" + url.QueryEscape(c.token)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// OnStateChange registers a listener invoked on every state transition.
// Transitions are delivered one at a time, in the order they happened.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateListeners = append(c.stateListeners, fn)
}

// On registers a handler for an event type. Multiple handlers per type are
// invoked in registration order; EventAny handlers run after the specific
// handlers for every event.
func (c *Client) On(eventType EventType, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	c.handlers[eventType] = append(c.handlers[eventType], registration{id: c.nextSubID, fn: fn})
	return &Subscription{eventType: eventType, id: c.nextSubID}
}

// Off removes a previously registered handler.
func (c *Client) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	regs := c.handlers[sub.eventType]
	for i, reg := range regs {
		if reg.id == sub.id {
			c.handlers[sub.eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Connect establishes the connection, blocking until the transport is open,
// the handshake fails, or the connect timeout fires. Calling Connect while
// the connection is already open (or a handshake is in flight) is a no-op.
//
// On success the reconnect budget resets and the heartbeat starts.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen, StateConnecting:
		c.mu.Unlock()
		return nil
	}
	// An explicit connect supersedes any scheduled reconnect.
	c.stopReconnectTimerLocked()
	c.setStateLocked(StateConnecting)
	dial := c.dial
	timeout := c.connectTimeout
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(dialCtx, c.endpoint())
	if err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.setStateLocked(StateDisconnected)
		}
		c.mu.Unlock()
		if dialCtx.Err() != nil && ctx.Err() == nil {
			return ErrConnectTimeout
		}
		return fmt.Errorf("dial messaging endpoint: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect won the race; drop the fresh transport.
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	c.reconnectAttempts = 0
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	logger.Debugf("websocket: connected to %s", c.socketURL)
	go c.readLoop(conn, gen)
	go c.heartbeatLoop(stop)
	return nil
}

// Disconnect deliberately tears the connection down: heartbeat stopped, any
// pending reconnect cancelled, transport closed with a normal-closure code.
// Auto-reconnect is suppressed until the next explicit Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopReconnectTimerLocked()
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateClosing)
	c.mu.Unlock()

	if conn != nil {
		// The close frame is best-effort; Close below is authoritative.
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.mu.Lock()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// Send serializes payload and writes it to the transport. It returns false
// without attempting I/O when the connection is not open, and false on any
// serialization or transport error. It never panics and never blocks beyond
// the write itself; nothing is queued for later delivery.
func (c *Client) Send(payload any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warnf("websocket: failed to serialize outbound event: %v", err)
		return false
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		logger.Warnf("websocket: write failed: %v", err)
		return false
	}
	return true
}

func (c *Client) readLoop(conn transport, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, gen, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch parses the event envelope and delivers the payload to handlers in
// transport order. Malformed events are logged and dropped; they never abort
// the read loop.
func (c *Client) dispatch(data []byte) {
	env, err := wire.ParseEnvelope(data)
	if err != nil {
		logger.Warnf("websocket: dropping malformed inbound event: %v", err)
		return
	}

	c.mu.Lock()
	regs := c.handlers[EventType(env.Type)]
	all := c.handlers[EventAny]
	fns := make([]Handler, 0, len(regs)+len(all))
	for _, reg := range regs {
		fns = append(fns, reg.fn)
	}
	for _, reg := range all {
		fns = append(fns, reg.fn)
	}
	c.mu.Unlock()

	logger.Tracef("websocket: event %s -> %d handler(s)", env.Type, len(fns))
	for _, fn := range fns {
		fn(data)
	}
}

func (c *Client) handleReadError(conn transport, gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || c.conn == nil {
		// Deliberate teardown already handled this transport.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.stopHeartbeatLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
	_ = conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Infof("websocket: connection closed by server")
		return
	}

	logger.Warnf("websocket: connection lost: %v", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next reconnect attempt,
// unless the budget is exhausted. A reconnect attempt that fails consumes
// budget and chains the next attempt; errors are logged, not surfaced.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnectAttempts >= c.maxReconnectAttempts {
		c.mu.Unlock()
		logger.Warnf("websocket: giving up after %d reconnect attempts", c.maxReconnectAttempts)
		return
	}
	delay := reconnectDelay(c.reconnectAttempts)
	c.setStateLocked(StateReconnectPending)
	c.reconnectTimer = c.afterFunc(delay, c.runReconnect)
	c.mu.Unlock()

	logger.Infof("websocket: reconnecting in %s", delay)
}

func (c *Client) runReconnect() {
	c.mu.Lock()
	if c.state != StateReconnectPending {
		// Cancelled by Disconnect or superseded by an explicit Connect.
		c.mu.Unlock()
		return
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if err := c.Connect(context.Background()); err != nil {
		logger.Warnf("websocket: reconnect attempt %d failed: %v", attempt, err)
		c.scheduleReconnect()
	}
}

// reconnectDelay returns the backoff delay before attempt number
// attemptsSoFar+1: 1s, 2s, 4s, 8s, 16s, capped at 30s.
func reconnectDelay(attemptsSoFar int) time.Duration {
	delay := baseReconnectDelay << attemptsSoFar
	if delay > maxReconnectDelay || delay <= 0 {
		return maxReconnectDelay
	}
	return delay
}

func (c *Client) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !c.Send(wire.NewPing()) {
				return
			}
		case <-stop:
			return
		}
	}
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.state == StateReconnectPending {
		c.setStateLocked(StateDisconnected)
	}
}

// setStateLocked updates the state and queues a notification. Callers must
// hold c.mu. Listeners run on a single notifier goroutine, so they observe
// transitions in order and may call back into the client.
func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.stateQueue = append(c.stateQueue, s)
	if !c.notifying {
		c.notifying = true
		go c.notifyStateChanges()
	}
}

func (c *Client) notifyStateChanges() {
	for {
		c.mu.Lock()
		if len(c.stateQueue) == 0 {
			c.notifying = false
			c.mu.Unlock()
			return
		}
		s := c.stateQueue[0]
		c.stateQueue = c.stateQueue[1:]
		listeners := append([]func(State){}, c.stateListeners...)
		c.mu.Unlock()

		for _, fn := range listeners {
			fn(s)
		}
	}
}
