package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// maxRIDAttempts bounds regeneration when a fresh rid collides with a live waiter.
const maxRIDAttempts = 16

// Transport is the outbound half of a connection.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	State() State
}

// Caller issues correlated requests.
type Caller interface {
	Call(ctx context.Context, req protocol.Request) (protocol.Message, error)
}

type pendingKey struct {
	tag string
	rid string
}

type result struct {
	msg protocol.Message
	err error
}

type waiter struct {
	key     pendingKey
	request string
	created time.Time
	done    chan result
}

// Router pairs requests with replies by (expected reply tag, rid).
//
// A waiter is completed at most once, by a matching reply, a matching server
// error, FailAll, or the caller's context.
type Router struct {
	transport Transport
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[pendingKey]*waiter
	byRID   map[string]pendingKey

	newRID func() string
}

// NewRouter creates a Router sending through transport. timeout applies to
// calls whose context carries no deadline; zero disables it.
func NewRouter(transport Transport, timeout time.Duration, logger *zap.Logger) *Router {
	return &Router{
		transport: transport,
		logger:    logger,
		timeout:   timeout,
		pending:   make(map[pendingKey]*waiter),
		byRID:     make(map[string]pendingKey),
		newRID:    protocol.NewRID,
	}
}

// Call sends req tagged with a fresh rid and waits for its reply.
//
// Precondition: req must be non-nil.
// Postcondition: Returns the decoded reply, a *ProtocolError when the gateway
// answered with an error, ErrNotOpen when no socket is open, ErrConnectionLost
// or ErrClosed when the socket went away, or the context's error.
func (r *Router) Call(ctx context.Context, req protocol.Request) (protocol.Message, error) {
	if r.transport.State() != StateOpen {
		return nil, ErrNotOpen
	}
	w, err := r.register(req)
	if err != nil {
		return nil, err
	}

	raw, err := protocol.Encode(req, w.key.rid)
	if err != nil {
		r.remove(w)
		return nil, err
	}

	if r.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
	}

	if err := r.transport.Send(ctx, raw); err != nil {
		r.remove(w)
		return nil, err
	}

	select {
	case res := <-w.done:
		return res.msg, res.err
	case <-ctx.Done():
		if r.remove(w) {
			r.logger.Debug("abandoning request",
				zap.String("request", w.request),
				zap.String("rid", w.key.rid),
				zap.Duration("waited", time.Since(w.created)),
			)
		}
		return nil, fmt.Errorf("awaiting %s: %w", w.key.tag, ctx.Err())
	}
}

func (r *Router) register(req protocol.Request) (*waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < maxRIDAttempts; i++ {
		rid := r.newRID()
		if _, taken := r.byRID[rid]; taken {
			continue
		}
		w := &waiter{
			key:     pendingKey{tag: req.ReplyType(), rid: rid},
			request: req.Type(),
			created: time.Now(),
			done:    make(chan result, 1),
		}
		r.pending[w.key] = w
		r.byRID[rid] = w.key
		return w, nil
	}
	return nil, errors.New("no free request id after repeated collisions")
}

// remove drops w if it is still pending and reports whether it was.
func (r *Router) remove(w *waiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[w.key] != w {
		return false
	}
	delete(r.pending, w.key)
	delete(r.byRID, w.key.rid)
	return true
}

// Resolve completes the waiter matching raw, if any. It reports whether raw
// was consumed; unconsumed messages belong to the event dispatcher.
func (r *Router) Resolve(raw []byte) bool {
	rid := protocol.PeekRID(raw)
	if rid == "" {
		return false
	}
	tag := protocol.PeekType(raw)

	r.mu.Lock()
	w, ok := r.pending[pendingKey{tag: tag, rid: rid}]
	if !ok && tag == protocol.TypeError {
		if key, found := r.byRID[rid]; found {
			w, ok = r.pending[key], true
		}
	}
	if ok {
		delete(r.pending, w.key)
		delete(r.byRID, w.key.rid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	if tag == protocol.TypeError {
		var ev protocol.ErrorEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			w.done <- result{err: fmt.Errorf("decoding error reply to %s: %w", w.request, err)}
			return true
		}
		w.done <- result{err: &ProtocolError{Request: w.request, Message: ev.Message}}
		return true
	}

	msg, err := protocol.Decode(raw)
	w.done <- result{msg: msg, err: err}
	return true
}

// FailAll completes every pending waiter with err.
//
// Postcondition: Pending() == 0.
func (r *Router) FailAll(err error) {
	r.mu.Lock()
	waiters := make([]*waiter, 0, len(r.pending))
	for _, w := range r.pending {
		waiters = append(waiters, w)
	}
	r.pending = make(map[pendingKey]*waiter)
	r.byRID = make(map[string]pendingKey)
	r.mu.Unlock()

	if len(waiters) > 0 {
		r.logger.Info("failing pending requests", zap.Int("count", len(waiters)), zap.Error(err))
	}
	for _, w := range waiters {
		w.done <- result{err: err}
	}
}

// Pending returns the number of outstanding requests.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Call issues req through c and asserts the reply type.
func Call[R protocol.Message](ctx context.Context, c Caller, req protocol.Request) (R, error) {
	var zero R
	msg, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}
	reply, ok := msg.(R)
	if !ok {
		return zero, fmt.Errorf("%s answered with unexpected %T", req.Type(), msg)
	}
	return reply, nil
}
