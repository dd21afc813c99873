package gateway

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// Handler receives a decoded event. Handlers run one at a time on the
// dispatch goroutine.
type Handler func(protocol.Event)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	event   string
	handler Handler
	active  atomic.Bool
}

// Event returns the public event name this subscription listens on.
func (s *Subscription) Event() string { return s.event }

type job struct {
	raw []byte
	fn  func()
}

// Dispatcher routes unsolicited messages to subscribers in arrival order.
//
// Publish and Post never block the caller; the queue is unbounded and drained
// by a single goroutine started with Run.
type Dispatcher struct {
	intents protocol.Intents
	logger  *zap.Logger

	subMu sync.Mutex
	subs  map[string][]*Subscription

	qMu   sync.Mutex
	queue []job
	wake  chan struct{}
}

// NewDispatcher creates a Dispatcher delivering only tags allowed by intents.
func NewDispatcher(intents protocol.Intents, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		intents: intents,
		logger:  logger,
		subs:    make(map[string][]*Subscription),
		wake:    make(chan struct{}, 1),
	}
}

// Intents returns the configured intent set.
func (d *Dispatcher) Intents() protocol.Intents { return d.intents }

// Subscribe registers h for the public event name. Handlers for the same
// event run in registration order.
//
// Precondition: h must be non-nil.
func (d *Dispatcher) Subscribe(event string, h Handler) *Subscription {
	s := &Subscription{event: event, handler: h}
	s.active.Store(true)
	d.subMu.Lock()
	d.subs[event] = append(d.subs[event], s)
	d.subMu.Unlock()
	return s
}

// Unsubscribe removes s. Removing an unknown or already removed handle is a no-op.
func (d *Dispatcher) Unsubscribe(s *Subscription) {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	d.subMu.Lock()
	defer d.subMu.Unlock()
	list := d.subs[s.event]
	for i, cur := range list {
		if cur == s {
			d.subs[s.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(d.subs[s.event]) == 0 {
		delete(d.subs, s.event)
	}
}

// Subscribers returns the number of live subscriptions for event.
func (d *Dispatcher) Subscribers(event string) int {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return len(d.subs[event])
}

// Publish enqueues a raw inbound message.
func (d *Dispatcher) Publish(raw []byte) { d.enqueue(job{raw: raw}) }

// Post enqueues fn to run on the dispatch goroutine, ordered with events.
func (d *Dispatcher) Post(fn func()) { d.enqueue(job{fn: fn}) }

func (d *Dispatcher) enqueue(j job) {
	d.qMu.Lock()
	d.queue = append(d.queue, j)
	d.qMu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled.
//
// Precondition: Run is called at most once at a time.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
		for {
			d.qMu.Lock()
			batch := d.queue
			d.queue = nil
			d.qMu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, j := range batch {
				if ctx.Err() != nil {
					return
				}
				d.process(j)
			}
		}
	}
}

func (d *Dispatcher) process(j job) {
	if j.fn != nil {
		d.safely("posted task", func() { j.fn() })
		return
	}

	tag := protocol.PeekType(j.raw)
	required, ok := protocol.RequiredIntents(tag)
	if !ok {
		d.logger.Debug("dropping unroutable message", zap.String("type", tag))
		return
	}
	if !d.intents.Allows(required) {
		return
	}
	ev, err := protocol.DecodeEvent(j.raw)
	if err != nil {
		d.logger.Warn("decoding event", zap.String("type", tag), zap.Error(err))
		return
	}
	d.deliver(ev)
}

// deliver invokes the handlers subscribed to ev at the time of delivery.
func (d *Dispatcher) deliver(ev protocol.Event) {
	name := ev.EventName()
	d.subMu.Lock()
	handlers := append([]*Subscription(nil), d.subs[name]...)
	d.subMu.Unlock()

	for _, s := range handlers {
		if !s.active.Load() {
			continue
		}
		d.safely(name, func() { s.handler(ev) })
	}
}

func (d *Dispatcher) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				zap.String("event", what),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
