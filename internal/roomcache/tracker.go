package roomcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// EventSource is the slice of gateway.Client the tracker needs.
type EventSource interface {
	gateway.Caller
	Subscribe(event string, h gateway.Handler) *gateway.Subscription
	Unsubscribe(s *gateway.Subscription)
	Post(fn func())
	Intents() protocol.Intents
}

// Tracker keeps a Cache current from room events and answers occupant
// lookups. Users seen through join and move events are answered from the
// cache at once; other lookups fetch a snapshot while the cache is not loaded.
type Tracker struct {
	source EventSource
	cache  *Cache
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	subs   []*gateway.Subscription
	once   sync.Once

	loading atomic.Bool
}

// NewTracker wires a tracker to source. With enabled false no handlers are
// registered and every lookup fetches from the gateway.
//
// Precondition: source and logger must be non-nil.
func NewTracker(source EventSource, enabled bool, logger *zap.Logger) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{source: source, logger: logger, ctx: ctx, cancel: cancel}
	if !enabled {
		return t
	}
	t.cache = New()

	intents := source.Intents()
	if intents.Has(protocol.IntentReady) {
		t.subscribe(protocol.EventReady, func(protocol.Event) { t.refresh() })
	}
	if intents.Has(protocol.IntentJoins) {
		t.subscribe(protocol.EventJoin, func(ev protocol.Event) {
			if join, ok := ev.(*protocol.UserJoinedEvent); ok {
				t.cache.UpsertOnJoin(join.User, join.Position)
			}
		})
	}
	if intents.Has(protocol.IntentLeaves) {
		t.subscribe(protocol.EventLeave, func(ev protocol.Event) {
			if left, ok := ev.(*protocol.UserLeftEvent); ok {
				t.cache.RemoveOnLeave(left.User.ID)
			}
		})
	}
	if intents.Has(protocol.IntentMovements) {
		t.subscribe(protocol.EventMove, func(ev protocol.Event) {
			if moved, ok := ev.(*protocol.UserMovedEvent); ok {
				t.cache.UpdatePositionOnMove(moved.User.ID, moved.Position)
			}
		})
	}
	return t
}

func (t *Tracker) subscribe(event string, h gateway.Handler) {
	t.subs = append(t.subs, t.source.Subscribe(event, h))
}

// Cache returns the underlying cache, or nil when caching is disabled.
func (t *Tracker) Cache() *Cache { return t.cache }

// Close removes the tracker's subscriptions and abandons in-flight fetches.
func (t *Tracker) Close() {
	t.once.Do(func() {
		t.cancel()
		for _, s := range t.subs {
			t.source.Unsubscribe(s)
		}
	})
}

// refresh fetches a snapshot off the dispatch goroutine and applies it on it.
func (t *Tracker) refresh() {
	go func() {
		users, err := t.fetch(t.ctx)
		if err != nil {
			t.logger.Warn("fetching room snapshot", zap.Error(err))
			return
		}
		t.source.Post(func() { t.cache.SnapshotLoad(users) })
		t.logger.Debug("room snapshot fetched", zap.Int("occupants", len(users)))
	}()
}

func (t *Tracker) fetch(ctx context.Context) ([]protocol.RoomUser, error) {
	resp, err := gateway.Call[*protocol.GetRoomUsersResponse](ctx, t.source, &protocol.GetRoomUsersRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetching room users: %w", err)
	}
	return resp.Content, nil
}

// occupants answers from the cache when loaded; otherwise it fetches a
// snapshot, schedules one load of it, and answers from the fetched data.
func (t *Tracker) occupants(ctx context.Context) ([]Occupant, error) {
	if t.cache != nil && t.cache.Loaded() {
		return t.cache.All(), nil
	}
	users, err := t.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if t.cache != nil && t.loading.CompareAndSwap(false, true) {
		t.source.Post(func() {
			defer t.loading.Store(false)
			if !t.cache.Loaded() {
				t.cache.SnapshotLoad(users)
			}
		})
	}
	out := toOccupants(users)
	sortOccupants(out)
	return out, nil
}

// Occupants lists everyone in the room.
func (t *Tracker) Occupants(ctx context.Context) ([]Occupant, error) {
	return t.occupants(ctx)
}

// Position returns a user's last known location.
func (t *Tracker) Position(ctx context.Context, userID string) (protocol.Location, bool, error) {
	occ, ok, err := t.byID(ctx, userID)
	return occ.Location, ok, err
}

// Username resolves a user id to a handle.
func (t *Tracker) Username(ctx context.Context, userID string) (string, bool, error) {
	occ, ok, err := t.byID(ctx, userID)
	return occ.Username, ok, err
}

// UserID resolves a handle to a user id, ignoring case. A cached occupant is
// answered without a gateway call even before the first snapshot arrives.
func (t *Tracker) UserID(ctx context.Context, username string) (string, bool, error) {
	if t.cache != nil {
		if occ, ok := t.cache.ByUsername(username); ok || t.cache.Loaded() {
			return occ.UserID, ok, nil
		}
	}
	all, err := t.occupants(ctx)
	if err != nil {
		return "", false, err
	}
	occ, ok := findByUsername(all, username)
	return occ.UserID, ok, nil
}

// byID answers from the cache on a hit. A miss is authoritative only once a
// snapshot has loaded; before that it falls back to a fetch.
func (t *Tracker) byID(ctx context.Context, userID string) (Occupant, bool, error) {
	if t.cache != nil {
		if occ, ok := t.cache.ByID(userID); ok || t.cache.Loaded() {
			return occ, ok, nil
		}
	}
	all, err := t.occupants(ctx)
	if err != nil {
		return Occupant{}, false, err
	}
	occ, ok := lo.Find(all, func(o Occupant) bool { return o.UserID == userID })
	return occ, ok, nil
}
