// Package bot assembles a room bot from configuration: the gateway client,
// the occupant cache, room actions, and the optional event journal and
// behaviour scripts.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/actions"
	"github.com/cory-johannsen/roomlink/internal/config"
	"github.com/cory-johannsen/roomlink/internal/gateway"
	"github.com/cory-johannsen/roomlink/internal/journal"
	"github.com/cory-johannsen/roomlink/internal/roomcache"
	"github.com/cory-johannsen/roomlink/internal/scripting"
	"github.com/cory-johannsen/roomlink/internal/storage/postgres"
)

// Option customises how New builds a Bot.
type Option func(*options)

type options struct {
	dialer gateway.Dialer
	store  journal.Store
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d gateway.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithJournalStore makes the journal write to store instead of PostgreSQL.
// It has no effect unless journal.enabled is set.
func WithJournalStore(store journal.Store) Option {
	return func(o *options) { o.store = store }
}

// Bot is one connected room participant.
type Bot struct {
	cfg    config.Config
	logger *zap.Logger

	client   *gateway.Client
	tracker  *roomcache.Tracker
	actions  *actions.Actions
	pool     *postgres.Pool
	recorder *journal.Recorder
	engine   *scripting.Engine
	unbind   func()

	closeOnce sync.Once
}

// New builds a Bot from cfg. ctx bounds the database connection when the
// journal is enabled.
//
// Precondition: cfg must have passed Validate; logger must be non-nil.
// Postcondition: Returns a Bot that has not yet connected, or a non-nil error
// with every partially built resource released.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *Bot, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	intents, err := cfg.Bot.IntentSet()
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	b := &Bot{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	b.client = gateway.NewClient(gateway.Options{
		Endpoint:          cfg.Gateway.Endpoint,
		Intents:           intents,
		ReconnectDelay:    cfg.Gateway.ReconnectDelay,
		KeepaliveInterval: cfg.Gateway.KeepaliveInterval,
		RequestTimeout:    cfg.Gateway.RequestTimeout,
		HandshakeTimeout:  cfg.Gateway.HandshakeTimeout,
		WriteTimeout:      cfg.Gateway.WriteTimeout,
		Dialer:            o.dialer,
	}, logger.Named("gateway"))
	b.client.OnStateChange(func(from, to gateway.State) {
		logger.Debug("connection state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	})

	b.tracker = roomcache.NewTracker(b.client, cfg.Bot.Cache, logger.Named("roomcache"))
	b.actions = actions.New(b.client)

	if cfg.Journal.Enabled {
		store := o.store
		if store == nil {
			b.pool, err = postgres.NewPool(ctx, cfg.Database, logger.Named("postgres"))
			if err != nil {
				return nil, fmt.Errorf("bot: opening journal database: %w", err)
			}
			store = postgres.NewEventRepository(b.pool.DB())
		}
		b.recorder = journal.NewRecorder(b.client, store, cfg.Journal.Buffer, b.connectionID, logger.Named("journal"))
	}

	if cfg.Scripting.Dir != "" {
		b.engine = scripting.NewEngine(b.actions, cfg.Scripting.InstructionLimit, logger.Named("scripting"))
		if err = b.engine.LoadDir(cfg.Scripting.Dir); err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
		b.unbind = b.engine.Bind(b.client)
	}

	return b, nil
}

func (b *Bot) connectionID() string {
	if s := b.client.Session(); s != nil {
		return s.ConnectionID
	}
	return ""
}

// Client returns the gateway client.
func (b *Bot) Client() *gateway.Client { return b.client }

// Actions returns the typed room actions.
func (b *Bot) Actions() *actions.Actions { return b.actions }

// Occupants returns the room occupant tracker.
func (b *Bot) Occupants() *roomcache.Tracker { return b.tracker }

// Run connects to the room and blocks until ctx is cancelled, then shuts the
// connection down. Lost connections are re-established in the background.
//
// Postcondition: Returns nil after a clean shutdown, or an error wrapping
// gateway.ErrAuthentication when the gateway rejects the credentials.
func (b *Bot) Run(ctx context.Context) error {
	if b.recorder != nil {
		b.recorder.Start()
	}

	err := b.client.Connect(ctx, b.cfg.Bot.Token, b.cfg.Bot.RoomID)
	switch {
	case errors.Is(err, gateway.ErrAuthentication):
		return fmt.Errorf("bot: connecting to room %s: %w", b.cfg.Bot.RoomID, err)
	case err != nil:
		b.logger.Warn("initial connect failed, retrying",
			zap.String("room_id", b.cfg.Bot.RoomID),
			zap.Duration("delay", b.cfg.Gateway.ReconnectDelay),
			zap.Error(err),
		)
	default:
		b.logger.Info("connected", zap.String("room_id", b.cfg.Bot.RoomID))
	}

	<-ctx.Done()
	b.client.Shutdown()
	return nil
}

// Close releases everything New built. It is safe to call more than once.
func (b *Bot) Close() {
	b.closeOnce.Do(func() {
		if b.unbind != nil {
			b.unbind()
		}
		if b.tracker != nil {
			b.tracker.Close()
		}
		if b.recorder != nil {
			b.recorder.Stop()
		}
		if b.client != nil {
			b.client.Close()
		}
		if b.engine != nil {
			b.engine.Close()
		}
		if b.pool != nil {
			b.pool.Close()
		}
	})
}
