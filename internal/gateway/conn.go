package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// Header names carrying the credentials on the upgrade request.
const (
	HeaderRoomID   = "room-id"
	HeaderAPIToken = "api-token"
)

// State is the lifecycle state of a Conn.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
)

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
	case StateReconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Socket is the part of *websocket.Conn the manager relies on.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens sockets to the gateway.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Socket, *http.Response, error)
}

// WebsocketDialer adapts a gorilla dialer to Dialer.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// DialContext implements Dialer.
func (w WebsocketDialer) DialContext(ctx context.Context, url string, header http.Header) (Socket, *http.Response, error) {
	conn, resp, err := w.Dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// ConnConfig holds the connection policy.
type ConnConfig struct {
	// Endpoint is the gateway WebSocket URL.
	Endpoint string
	// ReconnectDelay is the fixed delay before each reconnect attempt.
	ReconnectDelay time.Duration
	// KeepaliveInterval is the heartbeat period; zero disables heartbeats.
	KeepaliveInterval time.Duration
	// HandshakeTimeout bounds reconnect dials.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each socket write; zero means no deadline.
	WriteTimeout time.Duration
}

// Conn owns the gateway socket: dialing with credentials, the read loop,
// heartbeats, and the fixed-delay reconnect policy.
//
// All methods are safe for concurrent use.
type Conn struct {
	cfg    ConnConfig
	dialer Dialer
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	sock         Socket
	token        string
	roomID       string
	epoch        uint64
	attempt      uint64
	detached     bool
	reconnecting bool
	keepalive    *time.Timer
	retry        *time.Timer

	writeMu sync.Mutex

	onMessage func([]byte)
	onState   func(from, to State)
	onDrop    func(error)

	// afterFunc schedules timers; replaced in tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewConn creates a disconnected Conn.
//
// Precondition: dialer and logger must be non-nil; cfg.Endpoint must be non-empty.
func NewConn(cfg ConnConfig, dialer Dialer, logger *zap.Logger) *Conn {
	return &Conn{
		cfg:       cfg,
		dialer:    dialer,
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

// OnMessage sets the sink for every inbound frame. The sink runs on the read
// loop and must not block.
//
// Precondition: Called before Connect.
func (c *Conn) OnMessage(fn func([]byte)) { c.onMessage = fn }

// OnStateChange sets a callback for lifecycle transitions.
//
// Precondition: Called before Connect.
func (c *Conn) OnStateChange(fn func(from, to State)) { c.onState = fn }

// OnDrop sets a callback invoked when the socket is lost or shut down, with
// ErrConnectionLost or ErrClosed respectively.
//
// Precondition: Called before Connect.
func (c *Conn) OnDrop(fn func(error)) { c.onDrop = fn }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect stores the credentials and opens the socket. It is a no-op unless
// the Conn is disconnected.
//
// Precondition: token and roomID must be non-empty.
// Postcondition: Returns nil once open. Returns ErrAuthentication (wrapped) for
// missing credentials or a rejected handshake; any other dial error is returned
// while the Conn keeps retrying in the background until Shutdown.
func (c *Conn) Connect(ctx context.Context, token, roomID string) error {
	if token == "" {
		return fmt.Errorf("%w: token must not be empty", ErrAuthentication)
	}
	if roomID == "" {
		return fmt.Errorf("%w: room id must not be empty", ErrAuthentication)
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		c.logger.Info("already connected, skipping connect", zap.Stringer("state", state))
		return nil
	}
	c.token = token
	c.roomID = roomID
	c.detached = false
	c.state = StateConnecting
	c.attempt++
	gen := c.attempt
	c.mu.Unlock()
	c.notify(StateDisconnected, StateConnecting)

	return c.dial(ctx, gen)
}

// stale reports whether the dial of generation gen was superseded by
// Shutdown or a later Connect.
//
// Precondition: c.mu is held.
func (c *Conn) stale(gen uint64) bool {
	return c.detached || gen != c.attempt
}

// dial opens a socket for attempt generation gen. A dial that completes after
// its generation was superseded closes its socket and returns ErrClosed.
func (c *Conn) dial(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	header := http.Header{}
	header.Set(HeaderRoomID, c.roomID)
	header.Set(HeaderAPIToken, c.token)
	c.mu.Unlock()

	attempt := uuid.NewString()
	start := time.Now()
	sock, resp, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, header)
	if err != nil {
		c.mu.Lock()
		superseded := c.stale(gen)
		c.mu.Unlock()
		if superseded {
			return ErrClosed
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			c.mu.Lock()
			prev := c.state
			c.state = StateDisconnected
			c.mu.Unlock()
			c.notify(prev, StateDisconnected)
			c.logger.Error("gateway rejected credentials",
				zap.String("attempt", attempt),
				zap.Int("status", resp.StatusCode),
			)
			return fmt.Errorf("%w: handshake rejected with status %d", ErrAuthentication, resp.StatusCode)
		}
		c.logger.Warn("dialing gateway failed",
			zap.String("attempt", attempt),
			zap.String("endpoint", c.cfg.Endpoint),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		c.scheduleReconnect(err)
		return fmt.Errorf("dialing gateway: %w", err)
	}

	c.mu.Lock()
	if c.stale(gen) || c.state != StateConnecting {
		c.mu.Unlock()
		_ = sock.Close()
		c.logger.Debug("discarding superseded dial", zap.String("attempt", attempt))
		return ErrClosed
	}
	c.epoch++
	epoch := c.epoch
	c.sock = sock
	c.state = StateOpen
	c.armKeepaliveLocked(epoch)
	c.mu.Unlock()
	c.notify(StateConnecting, StateOpen)

	c.logger.Info("connected to gateway",
		zap.String("attempt", attempt),
		zap.String("endpoint", c.cfg.Endpoint),
		zap.Duration("elapsed", time.Since(start)),
	)

	go c.readLoop(sock, epoch)
	return nil
}

func (c *Conn) readLoop(sock Socket, epoch uint64) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			c.drop(epoch, err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

// drop handles a close or transport error on the socket of the given epoch.
// Signals for a stale epoch, or after Shutdown, are ignored.
func (c *Conn) drop(epoch uint64, cause error) {
	c.mu.Lock()
	if c.detached || epoch != c.epoch || c.sock == nil {
		c.mu.Unlock()
		return
	}
	c.epoch++
	stopTimer(c.keepalive)
	c.keepalive = nil
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	_ = sock.Close()
	c.logClose(cause)
	if c.onDrop != nil {
		c.onDrop(fmt.Errorf("%w: %v", ErrConnectionLost, cause))
	}
	c.scheduleReconnect(cause)
}

// scheduleReconnect arms exactly one reconnect timer; concurrent callers
// while a reconnect is pending are ignored.
func (c *Conn) scheduleReconnect(cause error) {
	c.mu.Lock()
	if c.detached || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	prev := c.state
	c.state = StateReconnecting
	epoch := c.epoch
	delay := c.cfg.ReconnectDelay
	c.retry = c.afterFunc(delay, func() { c.reconnect(epoch) })
	c.mu.Unlock()
	c.notify(prev, StateReconnecting)

	c.logger.Warn("attempting to reconnect",
		zap.Duration("delay", delay),
		zap.NamedError("cause", cause),
	)
}

func (c *Conn) reconnect(epoch uint64) {
	c.mu.Lock()
	if c.detached || epoch != c.epoch || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = false
	c.retry = nil
	c.state = StateConnecting
	gen := c.attempt
	c.mu.Unlock()
	c.notify(StateReconnecting, StateConnecting)

	ctx := context.Background()
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	if err := c.dial(ctx, gen); err != nil && errors.Is(err, ErrAuthentication) {
		c.logger.Error("reconnect abandoned", zap.Error(err))
	}
}

func (c *Conn) armKeepaliveLocked(epoch uint64) {
	if c.cfg.KeepaliveInterval <= 0 {
		return
	}
	c.keepalive = c.afterFunc(c.cfg.KeepaliveInterval, func() { c.heartbeat(epoch) })
}

// heartbeat sends one KeepaliveRequest and re-arms the timer while the same
// socket stays open.
func (c *Conn) heartbeat(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	sock := c.sock
	c.mu.Unlock()

	payload, err := protocol.Encode(&protocol.KeepaliveRequest{}, protocol.NewRID())
	if err != nil {
		c.logger.Error("encoding keepalive", zap.Error(err))
		return
	}
	if err := c.write(context.Background(), sock, payload); err != nil {
		c.logger.Warn("keepalive failed", zap.Error(err))
		c.drop(epoch, err)
		return
	}

	c.mu.Lock()
	if epoch == c.epoch && c.state == StateOpen {
		c.armKeepaliveLocked(epoch)
	}
	c.mu.Unlock()
}

// Send writes one text frame. A failed write is reported to the caller and
// does not tear the connection down.
//
// Postcondition: Returns ErrNotOpen when the socket is not open.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	sock := c.sock
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || sock == nil {
		return ErrNotOpen
	}
	return c.write(ctx, sock, data)
}

func (c *Conn) write(ctx context.Context, sock Socket, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if c.cfg.WriteTimeout > 0 {
		if d := time.Now().Add(c.cfg.WriteTimeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		_ = sock.SetWriteDeadline(deadline)
	} else {
		_ = sock.SetWriteDeadline(time.Time{})
	}
	if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to gateway: %w", err)
	}
	return nil
}

// Shutdown closes the socket without triggering a reconnect. It is safe to
// call in any state and more than once.
//
// Postcondition: State is StateDisconnected and no timers remain armed.
func (c *Conn) Shutdown() {
	c.mu.Lock()
	c.detached = true
	c.reconnecting = false
	stopTimer(c.keepalive)
	stopTimer(c.retry)
	c.keepalive, c.retry = nil, nil
	c.epoch++
	c.attempt++
	sock := c.sock
	c.sock = nil
	prev := c.state
	if prev == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.mu.Unlock()
	c.notify(prev, StateClosing)

	if sock != nil {
		c.writeMu.Lock()
		_ = sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = sock.Close()
	}
	if c.onDrop != nil {
		c.onDrop(ErrClosed)
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.notify(StateClosing, StateDisconnected)
	c.logger.Info("gateway connection shut down")
}

func (c *Conn) notify(from, to State) {
	if from == to {
		return
	}
	c.logger.Debug("connection state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if c.onState != nil {
		c.onState(from, to)
	}
}

// logClose records a dropped socket. The code only selects the log level;
// every drop reconnects the same way.
func (c *Conn) logClose(err error) {
	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	fields := []zap.Field{
		zap.Int("code", code),
		zap.String("meaning", closeMeaning(code)),
		zap.Error(err),
	}
	switch code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway:
		c.logger.Info("connection closed", fields...)
	case websocket.CloseNoStatusReceived:
		c.logger.Warn("connection closed", fields...)
	default:
		c.logger.Error("connection closed", fields...)
	}
}

func closeMeaning(code int) string {
	switch code {
	case websocket.CloseNormalClosure:
		return "normal closure"
	case websocket.CloseGoingAway:
		return "going away"
	case websocket.CloseNoStatusReceived:
		return "no status received"
	case websocket.CloseAbnormalClosure:
		return "abnormal closure"
	case websocket.ClosePolicyViolation:
		return "policy violation"
	case websocket.CloseInternalServerErr:
		return "unexpected condition"
	}
	return "unexpected code"
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
