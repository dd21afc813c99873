package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// DefaultEndpoint is the public gateway URL.
const DefaultEndpoint = "wss://highrise.game/web/webapi"

// Options configures a Client.
type Options struct {
	Endpoint          string
	Intents           protocol.Intents
	ReconnectDelay    time.Duration
	KeepaliveInterval time.Duration
	RequestTimeout    time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	// Dialer overrides the gorilla dialer; nil uses one built from HandshakeTimeout.
	Dialer Dialer
}

// Client composes a Conn, a Router and a Dispatcher into one gateway session.
// Inbound frames go to the Router first; whatever it does not claim is
// published to the Dispatcher.
type Client struct {
	conn       *Conn
	router     *Router
	dispatcher *Dispatcher
	logger     *zap.Logger

	sessionMu sync.RWMutex
	session   *protocol.SessionMetadata

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewClient builds a Client and starts its dispatch goroutine.
//
// Precondition: logger must be non-nil.
// Postcondition: The Client is disconnected; Close releases the dispatch goroutine.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.HandshakeTimeout,
		}}
	}

	conn := NewConn(ConnConfig{
		Endpoint:          opts.Endpoint,
		ReconnectDelay:    opts.ReconnectDelay,
		KeepaliveInterval: opts.KeepaliveInterval,
		HandshakeTimeout:  opts.HandshakeTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}, dialer, logger.Named("conn"))
	router := NewRouter(conn, opts.RequestTimeout, logger.Named("router"))
	dispatcher := NewDispatcher(opts.Intents, logger.Named("dispatch"))

	c := &Client{
		conn:       conn,
		router:     router,
		dispatcher: dispatcher,
		logger:     logger,
		done:       make(chan struct{}),
	}

	conn.OnMessage(func(raw []byte) {
		if !router.Resolve(raw) {
			dispatcher.Publish(raw)
		}
	})
	conn.OnDrop(router.FailAll)

	dispatcher.Subscribe(protocol.EventReady, func(ev protocol.Event) {
		meta, ok := ev.(*protocol.SessionMetadata)
		if !ok {
			return
		}
		c.sessionMu.Lock()
		c.session = meta
		c.sessionMu.Unlock()
		logger.Info("session ready",
			zap.String("user_id", meta.UserID),
			zap.String("room", meta.RoomInfo.RoomName),
			zap.String("connection_id", meta.ConnectionID),
		)
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		defer close(c.done)
		dispatcher.Run(ctx)
	}()
	return c
}

// Connect opens the gateway session. See Conn.Connect.
func (c *Client) Connect(ctx context.Context, token, roomID string) error {
	return c.conn.Connect(ctx, token, roomID)
}

// Shutdown closes the socket; subscriptions are kept and Connect may be called again.
func (c *Client) Shutdown() { c.conn.Shutdown() }

// Close shuts the socket down and stops the dispatch goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		c.conn.Shutdown()
		c.cancel()
		<-c.done
	})
}

// State returns the connection state.
func (c *Client) State() State { return c.conn.State() }

// OnStateChange registers a lifecycle callback.
//
// Precondition: Called before Connect.
func (c *Client) OnStateChange(fn func(from, to State)) { c.conn.OnStateChange(fn) }

// Send encodes msg with a fresh rid and writes it without waiting for a reply.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	raw, err := protocol.Encode(msg, protocol.NewRID())
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, raw)
}

// Call issues a correlated request. See Router.Call.
func (c *Client) Call(ctx context.Context, req protocol.Request) (protocol.Message, error) {
	return c.router.Call(ctx, req)
}

// Subscribe registers h for a public event name.
func (c *Client) Subscribe(event string, h Handler) *Subscription {
	return c.dispatcher.Subscribe(event, h)
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(s *Subscription) { c.dispatcher.Unsubscribe(s) }

// Post runs fn on the dispatch goroutine.
func (c *Client) Post(fn func()) { c.dispatcher.Post(fn) }

// Dispatcher exposes the event dispatcher for collectors.
func (c *Client) Dispatcher() *Dispatcher { return c.dispatcher }

// Intents returns the configured intent set.
func (c *Client) Intents() protocol.Intents { return c.dispatcher.Intents() }

// Pending returns the number of outstanding requests.
func (c *Client) Pending() int { return c.router.Pending() }

// Session returns the metadata from the latest ready event, or nil before the
// first one arrives. It requires the ready intent.
func (c *Client) Session() *protocol.SessionMetadata {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session
}
