package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrEmptyAction signals an append without an action name.
	ErrEmptyAction = errors.New("audit: action required")
	// ErrBookingNotFound signals an append against a booking that does not exist.
	ErrBookingNotFound = errors.New("audit: booking not found")
)

// Repository writes and reads the audit_events hash chain.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// WithClock overrides the timestamp source, used by tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Append inserts a new chained event inside the caller's transaction. The
// booking row is locked FOR UPDATE before the head read: chain heads cannot
// be locked directly (a booking with no events has no row to lock, and a
// blocked head read would re-evaluate against a snapshot that predates the
// winner's insert), so concurrent appends serialize on the parent row and
// read the head afterwards with a fresh statement snapshot.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, params AppendParams) (Event, error) {
	if params.Action == "" {
		return Event{}, ErrEmptyAction
	}

	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("audit: marshal payload: %w", err)
	}
	if params.Payload == nil {
		payload = []byte("{}")
	}

	const lockSQL = `
		SELECT id
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`
	var lockedID string
	if err := tx.QueryRow(ctx, lockSQL, params.BookingID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrBookingNotFound
		}
		return Event{}, fmt.Errorf("audit: lock booking: %w", err)
	}

	const headSQL = `
		SELECT event_hash
		FROM audit_events
		WHERE booking_id = $1
		ORDER BY id DESC
		LIMIT 1
	`
	prev := genesisHash
	if err := tx.QueryRow(ctx, headSQL, params.BookingID).Scan(&prev); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Event{}, fmt.Errorf("audit: read chain head: %w", err)
	}

	createdAt := r.now().UTC()
	ev := Event{
		BookingID:    params.BookingID,
		ActorID:      params.ActorID,
		Action:       params.Action,
		Payload:      payload,
		PreviousHash: prev,
		CreatedAt:    createdAt,
	}
	ev.EventHash = ComputeEventHash(prev, params.BookingID, params.Action, payload, createdAt)

	const insertSQL = `
		INSERT INTO audit_events (booking_id, actor_id, action, payload, event_hash, previous_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if err := tx.QueryRow(ctx, insertSQL,
		ev.BookingID, ev.ActorID, ev.Action, string(ev.Payload), ev.EventHash, ev.PreviousHash, ev.CreatedAt,
	).Scan(&ev.ID); err != nil {
		return Event{}, fmt.Errorf("audit: insert event: %w", err)
	}

	return ev, nil
}

// ListByBooking returns a booking's events in chain (creation) order.
func (r *Repository) ListByBooking(ctx context.Context, bookingID string) ([]Event, error) {
	const query = `
		SELECT id, booking_id, actor_id, action, payload, event_hash, previous_hash, created_at
		FROM audit_events
		WHERE booking_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, 16)
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.BookingID, &ev.ActorID, &ev.Action, &ev.Payload, &ev.EventHash, &ev.PreviousHash, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return out, nil
}
