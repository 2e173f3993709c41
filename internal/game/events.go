package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one analytics fact. Events are written to the outbox inside the
// same transaction as the state change they describe, so an event exists iff
// the change committed.
type Event struct {
	Type       string
	Source     string
	UserID     int64
	Payload    map[string]any
	HappenedAt time.Time
}

// Execer is the slice of Tx the sink needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EventSink records events. The default sink is the SQLite outbox; tests
// swap in a recorder.
type EventSink interface {
	Emit(ctx context.Context, tx Execer, e Event) error
}

// OutboxSink appends events to the analytics_events table.
type OutboxSink struct{}

func (OutboxSink) Emit(ctx context.Context, tx Execer, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encoding event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_events (event_type, source, user_id, payload, happened_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Type, e.Source, nullInt64(e.UserID), string(payload), fmtTime(e.HappenedAt))
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", e.Type, err)
	}
	return nil
}

// StoredEvent is an outbox row awaiting publication.
type StoredEvent struct {
	ID         int64
	Type       string
	Source     string
	UserID     int64
	Payload    string
	HappenedAt time.Time
}

func (s *Store) ListUnpublishedEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, source, user_id, payload, happened_at
		FROM analytics_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unpublished events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var userID sql.NullInt64
		var happenedAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &userID, &e.Payload, &happenedAt); err != nil {
			return nil, err
		}
		e.UserID = userID.Int64
		if e.HappenedAt, err = parseTime(happenedAt); err != nil {
			return nil, fmt.Errorf("parsing happened_at: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) MarkEventsPublished(ctx context.Context, lastID int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analytics_events SET published_at = ?
		WHERE published_at IS NULL AND id <= ?
	`, fmtTime(now), lastID)
	if err != nil {
		return fmt.Errorf("marking events published: %w", err)
	}
	return nil
}

const analyticsStream = "brainduel:analytics"

// Relay drains the outbox into a Redis stream. Publication is at-least-once:
// a crash between XADD and the published_at update re-sends the batch on the
// next pass, and consumers dedupe on the outbox id carried in the message.
type Relay struct {
	store  *Store
	client *redis.Client
	logger *slog.Logger
}

func NewRelay(store *Store, client *redis.Client, logger *slog.Logger) *Relay {
	return &Relay{store: store, client: client, logger: logger}
}

// Run drains the outbox on a fixed cadence until ctx is canceled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("relaying analytics events", "error", err)
			}
		}
	}
}

func (r *Relay) RunOnce(ctx context.Context) error {
	events, err := r.store.ListUnpublishedEvents(ctx, 500)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		err := r.client.XAdd(ctx, &redis.XAddArgs{
			Stream: analyticsStream,
			Values: map[string]any{
				"outbox_id":   e.ID,
				"event_type":  e.Type,
				"source":      e.Source,
				"user_id":     e.UserID,
				"payload":     e.Payload,
				"happened_at": e.HappenedAt.Format(time.RFC3339Nano),
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("publishing event %d: %w", e.ID, err)
		}
	}

	return r.store.MarkEventsPublished(ctx, events[len(events)-1].ID, time.Now())
}
