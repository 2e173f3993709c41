package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// activeStatuses is the SQL predicate for duels that can still change. The
// legacy value is included so historical rows are reaped like current ones.
const activeStatuses = `('PENDING', 'ACCEPTED', 'CREATOR_DONE', 'OPPONENT_DONE', 'ACTIVE')`

// ListOverdueDuels returns up to limit active duels whose deadline has
// passed, oldest deadline first. Callers re-load each duel inside its own
// transaction before acting; membership in this list is advisory.
func (t *Tx) ListOverdueDuels(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return t.duelIDList(ctx, `
		SELECT id FROM duels
		WHERE status IN `+activeStatuses+` AND expires_at <= ?
		ORDER BY expires_at, id
		LIMIT ?
	`, fmtTime(now), limit)
}

// halfDoneStatuses: duels where one side has finished and the other is
// being waited on. Only these get last-chance reminders.
const halfDoneStatuses = `('CREATOR_DONE', 'OPPONENT_DONE')`

// ListLastChanceDuels returns half-finished duels that expire within the
// warning window and have not been warned yet.
func (t *Tx) ListLastChanceDuels(ctx context.Context, now, windowEnd time.Time, limit int) ([]string, error) {
	return t.duelIDList(ctx, `
		SELECT id FROM duels
		WHERE status IN `+halfDoneStatuses+`
		  AND expires_at > ? AND expires_at <= ?
		  AND last_chance_notified_at IS NULL
		ORDER BY expires_at, id
		LIMIT ?
	`, fmtTime(now), fmtTime(windowEnd), limit)
}

func (t *Tx) duelIDList(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing duels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TournamentMatch is the bracket slot a duel settles into.
type TournamentMatch struct {
	ID           string
	TournamentID string
	RoundNumber  int
	UserA        int64
	UserB        int64
	DuelID       string
	Status       string
	WinnerID     int64
	Deadline     time.Time
}

const matchStatusPending = "PENDING"

func (t *Tx) TournamentMatchByID(ctx context.Context, id string) (*TournamentMatch, error) {
	row := t.conn.QueryRowContext(ctx, `
		SELECT id, tournament_id, round_number, user_a, user_b, duel_id, status, winner_id, deadline
		FROM tournament_matches WHERE id = ?
	`, id)
	return scanMatch(row)
}

func scanMatch(row rowScanner) (*TournamentMatch, error) {
	var m TournamentMatch
	var userB, winner sql.NullInt64
	var duelID sql.NullString
	var deadline string
	err := row.Scan(&m.ID, &m.TournamentID, &m.RoundNumber, &m.UserA, &userB, &duelID, &m.Status, &winner, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tournament match: %w", err)
	}
	m.UserB = userB.Int64
	m.WinnerID = winner.Int64
	m.DuelID = duelID.String
	if m.Deadline, err = parseTime(deadline); err != nil {
		return nil, fmt.Errorf("parsing match deadline: %w", err)
	}
	return &m, nil
}

// AttachDuelToMatch records which duel plays out a match.
func (t *Tx) AttachDuelToMatch(ctx context.Context, matchID, duelID string) error {
	_, err := t.conn.ExecContext(ctx, `
		UPDATE tournament_matches SET duel_id = ? WHERE id = ?
	`, duelID, matchID)
	if err != nil {
		return fmt.Errorf("attaching duel to match %s: %w", matchID, err)
	}
	return nil
}

// SettleMatch moves a PENDING match to its settled status. The WHERE guard
// makes settlement first-writer-wins: a second attempt affects zero rows and
// reports false.
func (t *Tx) SettleMatch(ctx context.Context, matchID, status string, winnerID int64) (bool, error) {
	res, err := t.conn.ExecContext(ctx, `
		UPDATE tournament_matches SET status = ?, winner_id = ?
		WHERE id = ? AND status = ?
	`, status, nullInt64(winnerID), matchID, matchStatusPending)
	if err != nil {
		return false, fmt.Errorf("settling match %s: %w", matchID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddTournamentPoints accumulates a participant's standing.
func (t *Tx) AddTournamentPoints(ctx context.Context, tournamentID string, userID int64, points, tieBreak float64) error {
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO tournament_participants (tournament_id, user_id, score, tie_break_score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tournament_id, user_id) DO UPDATE SET
			score = score + excluded.score,
			tie_break_score = tie_break_score + excluded.tie_break_score
	`, tournamentID, userID, points, tieBreak)
	if err != nil {
		return fmt.Errorf("adding tournament points: %w", err)
	}
	return nil
}

// UserIDByToken resolves an API token to a user id. Read-only, so it runs
// outside the write transaction.
func (s *Store) UserIDByToken(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE api_token = ?`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return id, err
}

func (t *Tx) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := t.conn.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// OverdueDuelRow is the admin view of a duel past its deadline.
type OverdueDuelRow struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	ModeCode  string    `json:"modeCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ListOverdueDuelRows lists active duels past their deadline for the admin
// surface. Read-only.
func (s *Store) ListOverdueDuelRows(ctx context.Context, now time.Time, limit int) ([]OverdueDuelRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, mode_code, expires_at FROM duels
		WHERE status IN `+activeStatuses+` AND expires_at <= ?
		ORDER BY expires_at, id
		LIMIT ?
	`, fmtTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("listing overdue duels: %w", err)
	}
	defer rows.Close()

	var out []OverdueDuelRow
	for rows.Next() {
		var r OverdueDuelRow
		var expiresAt string
		if err := rows.Scan(&r.ID, &r.Status, &r.ModeCode, &expiresAt); err != nil {
			return nil, err
		}
		if r.ExpiresAt, err = parseTime(expiresAt); err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DuelSnapshotByID is the read-only duel lookup used by handlers that do not
// mutate. It still normalizes legacy statuses.
func (s *Store) DuelSnapshotByID(ctx context.Context, id string) (*duel.Duel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+duelColumns+` FROM duels WHERE id = ?`, id)
	return scanDuel(row)
}
