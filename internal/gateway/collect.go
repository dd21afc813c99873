package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/cory-johannsen/roomlink/internal/protocol"
)

// CollectOptions configures Collect.
type CollectOptions[E protocol.Event] struct {
	// Events are the public event names to listen on.
	Events []string
	// Filter admits an event; nil admits all.
	Filter func(E) bool
	// Max resolves the collection once this many events qualify; zero means no cap.
	Max int
	// Idle resolves the collection when no event qualifies for this long. The
	// window restarts after every qualifying event. Zero disables it.
	Idle time.Duration
	// Unique keeps only the first qualifying event per actor.
	Unique bool
}

// Collect gathers qualifying events until Max is reached, the idle window
// elapses, or ctx ends. Its subscriptions are removed before it returns.
//
// Postcondition: The returned slice is in arrival order and never exceeds Max
// when Max > 0. On ctx cancellation the events gathered so far are returned
// with ctx's error.
func Collect[E protocol.Event](ctx context.Context, d *Dispatcher, opts CollectOptions[E]) ([]E, error) {
	var (
		mu        sync.Mutex
		collected []E
		closed    bool
		seen      = make(map[string]struct{})
		full      = make(chan struct{})
		fullOnce  sync.Once
		qualified = make(chan struct{}, 1)
	)

	handler := func(ev protocol.Event) {
		e, ok := ev.(E)
		if !ok {
			return
		}
		if opts.Filter != nil && !opts.Filter(e) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		if opts.Unique {
			actor := e.Actor()
			if _, dup := seen[actor]; dup {
				return
			}
			seen[actor] = struct{}{}
		}
		collected = append(collected, e)
		select {
		case qualified <- struct{}{}:
		default:
		}
		if opts.Max > 0 && len(collected) >= opts.Max {
			closed = true
			fullOnce.Do(func() { close(full) })
		}
	}

	subs := make([]*Subscription, 0, len(opts.Events))
	for _, name := range opts.Events {
		subs = append(subs, d.Subscribe(name, handler))
	}

	var releaseOnce sync.Once
	release := func() []E {
		releaseOnce.Do(func() {
			for _, s := range subs {
				d.Unsubscribe(s)
			}
			mu.Lock()
			closed = true
			mu.Unlock()
		})
		mu.Lock()
		defer mu.Unlock()
		return append([]E(nil), collected...)
	}

	var idle <-chan time.Time
	var timer *time.Timer
	if opts.Idle > 0 {
		timer = time.NewTimer(opts.Idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-full:
			return release(), nil
		case <-qualified:
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(opts.Idle)
			}
		case <-idle:
			return release(), nil
		case <-ctx.Done():
			return release(), ctx.Err()
		}
	}
}

// AwaitMessages collects chat and whisper events, one per user.
func AwaitMessages(ctx context.Context, d *Dispatcher, filter func(*protocol.ChatEvent) bool, limit int, idle time.Duration) ([]*protocol.ChatEvent, error) {
	return Collect(ctx, d, CollectOptions[*protocol.ChatEvent]{
		Events: []string{protocol.EventChat, protocol.EventWhisper},
		Filter: filter,
		Max:    limit,
		Idle:   idle,
		Unique: true,
	})
}

// AwaitReactions collects reactions, one per reacting user.
func AwaitReactions(ctx context.Context, d *Dispatcher, filter func(*protocol.ReactionEvent) bool, limit int, idle time.Duration) ([]*protocol.ReactionEvent, error) {
	return Collect(ctx, d, CollectOptions[*protocol.ReactionEvent]{
		Events: []string{protocol.EventReaction},
		Filter: filter,
		Max:    limit,
		Idle:   idle,
		Unique: true,
	})
}

// AwaitEmotes collects emotes, one per emoting user.
func AwaitEmotes(ctx context.Context, d *Dispatcher, filter func(*protocol.EmoteEvent) bool, limit int, idle time.Duration) ([]*protocol.EmoteEvent, error) {
	return Collect(ctx, d, CollectOptions[*protocol.EmoteEvent]{
		Events: []string{protocol.EventEmote},
		Filter: filter,
		Max:    limit,
		Idle:   idle,
		Unique: true,
	})
}

// AwaitTips collects tips. Repeat tips from the same sender all count.
func AwaitTips(ctx context.Context, d *Dispatcher, filter func(*protocol.TipReactionEvent) bool, limit int, idle time.Duration) ([]*protocol.TipReactionEvent, error) {
	return Collect(ctx, d, CollectOptions[*protocol.TipReactionEvent]{
		Events: []string{protocol.EventTip},
		Filter: filter,
		Max:    limit,
		Idle:   idle,
	})
}
