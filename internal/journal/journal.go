// Package journal records room events for later inspection.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// appendTimeout bounds each store write.
const appendTimeout = 5 * time.Second

// Entry is one recorded event.
type Entry struct {
	ID           uuid.UUID
	ConnectionID string
	Event        string
	ActorID      string
	Payload      json.RawMessage
	ReceivedAt   time.Time
}

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
}

// Source delivers events to subscribers.
type Source interface {
	Subscribe(event string, h gateway.Handler) *gateway.Subscription
	Unsubscribe(s *gateway.Subscription)
}

// Recorder turns every public event into an Entry and writes it to a Store
// from a single background goroutine. Handlers never wait on the store: when
// the buffer is full the entry is dropped.
type Recorder struct {
	source       Source
	store        Store
	logger       *zap.Logger
	connectionID func() string

	mu      sync.Mutex
	started bool
	closed  bool
	entries chan Entry
	subs    []*gateway.Subscription
	done    chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates a Recorder with room for buffer pending entries.
// connectionID, when non-nil, stamps each entry with the current session.
//
// Precondition: source, store and logger must be non-nil; buffer must be > 0.
func NewRecorder(source Source, store Store, buffer int, connectionID func() string, logger *zap.Logger) *Recorder {
	return &Recorder{
		source:       source,
		store:        store,
		logger:       logger,
		connectionID: connectionID,
		entries:      make(chan Entry, buffer),
		done:         make(chan struct{}),
	}
}

// Start subscribes to every public event and starts the writer.
//
// Precondition: Start is called once.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	for _, name := range protocol.EventNames {
		r.subs = append(r.subs, r.source.Subscribe(name, r.record))
	}
	go r.write()
}

// Stop unsubscribes, then waits for buffered entries to be written. Stopping
// a Recorder that was never started only marks it closed.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, s := range r.subs {
		r.source.Unsubscribe(s)
	}
	close(r.entries)
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	<-r.done
	r.logger.Info("journal stopped",
		zap.Int64("written", r.written.Load()),
		zap.Int64("dropped", r.dropped.Load()),
	)
}

// Dropped returns the number of entries discarded because the buffer was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

func (r *Recorder) record(ev protocol.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Warn("encoding event for journal", zap.String("event", ev.EventName()), zap.Error(err))
		return
	}
	e := Entry{
		ID:         uuid.New(),
		Event:      ev.EventName(),
		ActorID:    ev.Actor(),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	if r.connectionID != nil {
		e.ConnectionID = r.connectionID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.entries <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("journal buffer full, dropping entry", zap.String("event", e.Event))
	}
}

func (r *Recorder) write() {
	defer close(r.done)
	for e := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := r.store.Append(ctx, e)
		cancel()
		if err != nil {
			r.logger.Warn("writing journal entry",
				zap.String("id", e.ID.String()),
				zap.String("event", e.Event),
				zap.Error(err),
			)
			continue
		}
		r.written.Add(1)
	}
}
