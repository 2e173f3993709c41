package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brainduel/api/internal/quiz"
)

const sessionColumns = `
	id, user_id, mode_code, source, status, question_id, energy_cost,
	duel_id, duel_round, idempotency_key, local_date, started_at`

func (t *Tx) InsertSession(ctx context.Context, s *quiz.Session) error {
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO quiz_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.UserID, s.ModeCode, string(s.Source), string(s.Status), s.QuestionID, s.EnergyCost,
		nullString(s.DuelID), nullInt(s.DuelRound), s.IdempotencyKey, s.LocalDate, fmtTime(s.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", s.ID, err)
	}
	return nil
}

func (t *Tx) SessionByID(ctx context.Context, id string) (*quiz.Session, error) {
	row := t.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (t *Tx) SessionByIdempotencyKey(ctx context.Context, key string) (*quiz.Session, error) {
	row := t.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE idempotency_key = ?`, key)
	return scanSession(row)
}

// SessionSnapshotByKey is the read-only replay probe for session starts. It
// runs on a pooled connection so replays never take the write lock.
func (s *Store) SessionSnapshotByKey(ctx context.Context, key string) (*quiz.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE idempotency_key = ?`, key)
	return scanSession(row)
}

// SessionForDuelRound finds the session that pinned a duel round's question,
// regardless of which player created it.
func (t *Tx) SessionForDuelRound(ctx context.Context, duelID string, round int) (*quiz.Session, error) {
	row := t.conn.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM quiz_sessions
		WHERE duel_id = ? AND duel_round = ?
		ORDER BY started_at
		LIMIT 1
	`, duelID, round)
	return scanSession(row)
}

func (t *Tx) SessionForDuelRoundUser(ctx context.Context, duelID string, round int, userID int64) (*quiz.Session, error) {
	row := t.conn.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM quiz_sessions
		WHERE duel_id = ? AND duel_round = ? AND user_id = ?
	`, duelID, round, userID)
	return scanSession(row)
}

// DuelQuestionIDsBeforeRound lists the question ids already used by earlier
// rounds of a duel, in round order. Append-only data: no lock needed beyond
// the enclosing transaction.
func (t *Tx) DuelQuestionIDsBeforeRound(ctx context.Context, duelID string, beforeRound int) ([]string, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT DISTINCT question_id, duel_round FROM quiz_sessions
		WHERE duel_id = ? AND duel_round < ?
		ORDER BY duel_round
	`, duelID, beforeRound)
	if err != nil {
		return nil, fmt.Errorf("listing duel question ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var round int
		if err := rows.Scan(&id, &round); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *Tx) CompleteSession(ctx context.Context, sessionID string, status quiz.SessionStatus) error {
	res, err := t.conn.ExecContext(ctx, `
		UPDATE quiz_sessions SET status = ? WHERE id = ? AND status = ?
	`, string(status), sessionID, string(quiz.StatusStarted))
	if err != nil {
		return fmt.Errorf("completing session %s: %w", sessionID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// A session transitions away from STARTED at most once.
		return fmt.Errorf("completing session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

func (t *Tx) HasDailySessionOnDate(ctx context.Context, userID int64, localDate string) (bool, error) {
	var one int
	err := t.conn.QueryRowContext(ctx, `
		SELECT 1 FROM quiz_sessions
		WHERE user_id = ? AND source = ? AND local_date = ?
		LIMIT 1
	`, userID, string(quiz.SourceDaily), localDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// RecentQuestionIDs returns the user's most recently answered question ids
// for a mode, newest first, for recent-repeat exclusion.
func (t *Tx) RecentQuestionIDs(ctx context.Context, userID int64, modeCode string, limit int) ([]string, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT a.question_id
		FROM quiz_attempts a
		JOIN quiz_sessions s ON s.id = a.session_id
		WHERE a.user_id = ? AND s.mode_code = ?
		ORDER BY a.answered_at DESC
		LIMIT ?
	`, userID, modeCode, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent questions: %w", err)
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

func (t *Tx) InsertAttempt(ctx context.Context, a *quiz.Attempt) error {
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, session_id, user_id, question_id, is_correct, answered_at, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.UserID, a.QuestionID, boolToInt(a.IsCorrect), fmtTime(a.AnsweredAt), a.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("inserting attempt for session %s: %w", a.SessionID, err)
	}
	return nil
}

func (t *Tx) AttemptByIdempotencyKey(ctx context.Context, key string) (*quiz.Attempt, error) {
	row := t.conn.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, question_id, is_correct, answered_at, idempotency_key
		FROM quiz_attempts WHERE idempotency_key = ?
	`, key)
	return scanAttempt(row)
}

func (t *Tx) LatestAttemptForSession(ctx context.Context, sessionID string) (*quiz.Attempt, error) {
	row := t.conn.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, question_id, is_correct, answered_at, idempotency_key
		FROM quiz_attempts WHERE session_id = ?
		ORDER BY answered_at DESC LIMIT 1
	`, sessionID)
	return scanAttempt(row)
}

func (t *Tx) PreferredLevel(ctx context.Context, userID int64, modeCode string) (quiz.Level, bool, error) {
	var level string
	err := t.conn.QueryRowContext(ctx, `
		SELECT preferred_level FROM mode_progress WHERE user_id = ? AND mode_code = ?
	`, userID, modeCode).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return quiz.Level(level), true, nil
}

func (t *Tx) UpsertPreferredLevel(ctx context.Context, userID int64, modeCode string, level quiz.Level, now time.Time) error {
	_, err := t.conn.ExecContext(ctx, `
		INSERT INTO mode_progress (user_id, mode_code, preferred_level, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, mode_code) DO UPDATE SET preferred_level = excluded.preferred_level, updated_at = excluded.updated_at
	`, userID, modeCode, string(level), fmtTime(now))
	if err != nil {
		return fmt.Errorf("upserting mode progress: %w", err)
	}
	return nil
}

// RecordStreakActivity extends or restarts the user's play streak for the
// given local date. today and yesterday are precomputed date keys.
func (t *Tx) RecordStreakActivity(ctx context.Context, userID int64, today, yesterday string) (quiz.StreakSnapshot, error) {
	var snap quiz.StreakSnapshot
	var lastActive sql.NullString
	err := t.conn.QueryRowContext(ctx, `
		SELECT current_streak, best_streak, last_active_on FROM streaks WHERE user_id = ?
	`, userID).Scan(&snap.Current, &snap.Best, &lastActive)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("loading streak: %w", err)
	}

	switch {
	case lastActive.Valid && lastActive.String == today:
		// Already counted today.
	case lastActive.Valid && lastActive.String == yesterday:
		snap.Current++
	default:
		snap.Current = 1
	}
	if snap.Current > snap.Best {
		snap.Best = snap.Current
	}

	_, err = t.conn.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, best_streak, last_active_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			best_streak = excluded.best_streak,
			last_active_on = excluded.last_active_on
	`, userID, snap.Current, snap.Best, today)
	if err != nil {
		return snap, fmt.Errorf("saving streak: %w", err)
	}
	return snap, nil
}

func (t *Tx) StreakSnapshot(ctx context.Context, userID int64) (quiz.StreakSnapshot, error) {
	var snap quiz.StreakSnapshot
	err := t.conn.QueryRowContext(ctx, `
		SELECT current_streak, best_streak FROM streaks WHERE user_id = ?
	`, userID).Scan(&snap.Current, &snap.Best)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	return snap, err
}

func scanSession(row rowScanner) (*quiz.Session, error) {
	var s quiz.Session
	var duelID sql.NullString
	var duelRound sql.NullInt64
	var source, status, startedAt string
	err := row.Scan(
		&s.ID, &s.UserID, &s.ModeCode, &source, &status, &s.QuestionID, &s.EnergyCost,
		&duelID, &duelRound, &s.IdempotencyKey, &s.LocalDate, &startedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	s.Source = quiz.Source(source)
	s.Status = quiz.SessionStatus(status)
	s.DuelID = duelID.String
	s.DuelRound = int(duelRound.Int64)
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	return &s, nil
}

func scanAttempt(row rowScanner) (*quiz.Attempt, error) {
	var a quiz.Attempt
	var isCorrect int
	var answeredAt string
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &a.QuestionID, &isCorrect, &answeredAt, &a.IdempotencyKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning attempt: %w", err)
	}
	a.IsCorrect = isCorrect != 0
	if a.AnsweredAt, err = parseTime(answeredAt); err != nil {
		return nil, fmt.Errorf("parsing answered_at: %w", err)
	}
	return &a, nil
}

func nullInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
