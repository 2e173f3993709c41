package game

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store wraps the SQLite database. Every duel mutation runs through InTx,
// which opens an IMMEDIATE transaction: SQLite's single-writer model then
// gives the operation the exclusive lock the duel aggregate requires —
// concurrent joins, answers, and reaper passes serialize on it.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only collaborators (health
// checks, the question bank).
func (s *Store) DB() *sql.DB { return s.db }

// Tx is a transaction-scoped view of the store. All row operations hang off
// it so that a forgotten transaction is a compile error, not a data race.
type Tx struct {
	conn *sql.Conn
}

// ExecContext lets tx-scoped collaborators (the event sink) write inside the
// same transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

// InTx runs fn inside a BEGIN IMMEDIATE transaction. The transaction either
// fully commits or fully rolls back; no partial state is ever observable.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&Tx{conn: conn}); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return fmt.Errorf("rolling back after %v: %w", err, rbErr)
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
