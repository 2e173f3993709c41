package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DailyFreeEnergy is the free plays every user gets per local calendar day.
const DailyFreeEnergy = 3

// SQLiteEnergyGate charges energy against the energy_spends ledger: a free
// daily allowance first, then the user's paid balance. Each spend is a
// ledger row keyed by the idempotency key, so replays return the recorded
// outcome.
type SQLiteEnergyGate struct {
	store *Store
	loc   *time.Location
}

func NewSQLiteEnergyGate(store *Store, loc *time.Location) *SQLiteEnergyGate {
	return &SQLiteEnergyGate{store: store, loc: loc}
}

func (g *SQLiteEnergyGate) Consume(ctx context.Context, userID int64, idempotencyKey string, now time.Time) (EnergyResult, error) {
	localDate := now.In(g.loc).Format("2006-01-02")
	var out EnergyResult
	err := g.store.InTx(ctx, func(tx *Tx) error {
		var replayed int
		err := tx.conn.QueryRowContext(ctx, `
			SELECT 1 FROM energy_spends WHERE idempotency_key = ?
		`, idempotencyKey).Scan(&replayed)
		isReplay := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		var freeUsed int
		if err := tx.conn.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM energy_spends
			WHERE user_id = ? AND local_date = ? AND from_paid = 0
		`, userID, localDate).Scan(&freeUsed); err != nil {
			return err
		}
		var paid int
		err = tx.conn.QueryRowContext(ctx, `
			SELECT paid_energy FROM users WHERE id = ?
		`, userID).Scan(&paid)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if isReplay {
			out = EnergyResult{Allowed: true, RemainingFree: max(0, DailyFreeEnergy-freeUsed), RemainingPaid: paid}
			return nil
		}

		switch {
		case freeUsed < DailyFreeEnergy:
			if _, err := tx.conn.ExecContext(ctx, `
				INSERT INTO energy_spends (idempotency_key, user_id, local_date, from_paid, spent_at)
				VALUES (?, ?, ?, 0, ?)
			`, idempotencyKey, userID, localDate, fmtTime(now)); err != nil {
				return fmt.Errorf("recording free spend: %w", err)
			}
			out = EnergyResult{Allowed: true, RemainingFree: DailyFreeEnergy - freeUsed - 1, RemainingPaid: paid}
		case paid > 0:
			if _, err := tx.conn.ExecContext(ctx, `
				UPDATE users SET paid_energy = paid_energy - 1 WHERE id = ? AND paid_energy > 0
			`, userID); err != nil {
				return fmt.Errorf("spending paid energy: %w", err)
			}
			if _, err := tx.conn.ExecContext(ctx, `
				INSERT INTO energy_spends (idempotency_key, user_id, local_date, from_paid, spent_at)
				VALUES (?, ?, ?, 1, ?)
			`, idempotencyKey, userID, localDate, fmtTime(now)); err != nil {
				return fmt.Errorf("recording paid spend: %w", err)
			}
			out = EnergyResult{Allowed: true, RemainingFree: 0, RemainingPaid: paid - 1}
		default:
			out = EnergyResult{Allowed: false, RemainingFree: 0, RemainingPaid: 0}
		}
		return nil
	})
	return out, err
}

// freeModesDefault are playable without any unlock.
var freeModesDefault = map[string]bool{
	"ARTIKEL_SPRINT": true,
	"MIXED":          true,
}

// SQLiteAccessGate answers entitlement questions from the users,
// mode_access, and purchases tables. Read-only.
type SQLiteAccessGate struct {
	db *sql.DB
}

func NewSQLiteAccessGate(db *sql.DB) *SQLiteAccessGate {
	return &SQLiteAccessGate{db: db}
}

func (g *SQLiteAccessGate) PremiumActive(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var until sql.NullString
	err := g.db.QueryRowContext(ctx, `SELECT premium_until FROM users WHERE id = ?`, userID).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, err
	}
	if !until.Valid {
		return false, nil
	}
	t, err := parseTime(until.String)
	if err != nil {
		return false, fmt.Errorf("parsing premium_until: %w", err)
	}
	return t.After(now), nil
}

func (g *SQLiteAccessGate) HasModeAccess(ctx context.Context, userID int64, modeCode string, now time.Time) (bool, error) {
	if freeModesDefault[modeCode] {
		return true, nil
	}
	premium, err := g.PremiumActive(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if premium {
		return true, nil
	}

	var expires sql.NullString
	err = g.db.QueryRowContext(ctx, `
		SELECT expires_at FROM mode_access WHERE user_id = ? AND mode_code = ?
	`, userID, modeCode).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !expires.Valid {
		return true, nil
	}
	t, err := parseTime(expires.String)
	if err != nil {
		return false, fmt.Errorf("parsing mode access expiry: %w", err)
	}
	return t.After(now), nil
}

func (g *SQLiteAccessGate) CreditedTickets(ctx context.Context, userID int64, productCode string) (int, error) {
	var credited int
	err := g.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(credited), 0) FROM purchases
		WHERE user_id = ? AND product_code = ?
	`, userID, productCode).Scan(&credited)
	if err != nil {
		return 0, err
	}
	return credited, nil
}
