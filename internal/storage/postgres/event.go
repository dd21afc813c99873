package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/roomlink/internal/journal"
)

// ErrEntryExists is returned when an entry id is already stored.
var ErrEntryExists = errors.New("journal entry already exists")

// maxListLimit caps the rows returned by a single read.
const maxListLimit = 1000

// EventRepository persists journal entries in the room_events table.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates an EventRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one entry.
//
// Precondition: e.ID must be set and e.Payload must be valid JSON.
// Postcondition: Returns ErrEntryExists if the id is already stored.
func (r *EventRepository) Append(ctx context.Context, e journal.Entry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO room_events (id, connection_id, event, actor_id, payload, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID.String(), e.ConnectionID, e.Event, e.ActorID, []byte(e.Payload), e.ReceivedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
//
// Precondition: limit must be > 0; larger values are capped.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, connection_id, event, actor_id, payload, received_at
		 FROM room_events
		 ORDER BY received_at DESC, id
		 LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent entries: %w", err)
	}
	return collectEntries(rows)
}

// ByActor returns up to limit entries caused by actorID, newest first.
//
// Precondition: actorID must be non-empty; limit must be > 0.
func (r *EventRepository) ByActor(ctx context.Context, actorID string, limit int) ([]journal.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, connection_id, event, actor_id, payload, received_at
		 FROM room_events
		 WHERE actor_id = $1
		 ORDER BY received_at DESC, id
		 LIMIT $2`,
		actorID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying entries for %s: %w", actorID, err)
	}
	return collectEntries(rows)
}

// Count returns the number of stored entries.
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM room_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func collectEntries(rows pgx.Rows) ([]journal.Entry, error) {
	defer rows.Close()
	var out []journal.Entry
	for rows.Next() {
		var (
			e  journal.Entry
			id string
		)
		if err := rows.Scan(&id, &e.ConnectionID, &e.Event, &e.ActorID, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing entry id %q: %w", id, err)
		}
		e.ID = parsed
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
