package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brainduel/api/internal/duel"
)

const duelColumns = `
	id, invite_token, challenge_type, mode_code, access_type, status,
	creator_user_id, opponent_user_id, current_round, total_rounds,
	creator_answered_round, opponent_answered_round, creator_score, opponent_score,
	creator_finished_at, opponent_finished_at, creator_push_count, opponent_push_count,
	winner_user_id, question_ids, series_id, series_game_number, series_best_of,
	tournament_match_id, expires_at, last_chance_notified_at,
	created_at, updated_at, completed_at`

func (t *Tx) InsertDuel(ctx context.Context, d *duel.Duel) error {
	questionIDs, err := marshalQuestionIDs(d.QuestionIDs)
	if err != nil {
		return err
	}
	_, err = t.conn.ExecContext(ctx, `
		INSERT INTO duels (`+duelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.InviteToken, string(d.Type), d.ModeCode, string(d.Access), string(d.Status),
		d.CreatorUserID, nullInt64(d.OpponentUserID), d.CurrentRound, d.TotalRounds,
		d.CreatorAnsweredRound, d.OpponentAnsweredRound, d.CreatorScore, d.OpponentScore,
		fmtTimePtr(d.CreatorFinishedAt), fmtTimePtr(d.OpponentFinishedAt), d.CreatorPushCount, d.OpponentPushCount,
		nullInt64(d.WinnerUserID), questionIDs, nullString(d.SeriesID), d.SeriesGameNumber, d.SeriesBestOf,
		nullString(d.TournamentMatchID), fmtTime(d.ExpiresAt), fmtTimePtr(d.LastChanceNotifiedAt),
		fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt), fmtTimePtr(d.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting duel %s: %w", d.ID, err)
	}
	return nil
}

// UpdateDuel writes back every mutable duel field. Always called with the
// transaction that loaded the row.
func (t *Tx) UpdateDuel(ctx context.Context, d *duel.Duel) error {
	questionIDs, err := marshalQuestionIDs(d.QuestionIDs)
	if err != nil {
		return err
	}
	res, err := t.conn.ExecContext(ctx, `
		UPDATE duels SET
			status = ?, opponent_user_id = ?, current_round = ?,
			creator_answered_round = ?, opponent_answered_round = ?,
			creator_score = ?, opponent_score = ?,
			creator_finished_at = ?, opponent_finished_at = ?,
			creator_push_count = ?, opponent_push_count = ?,
			winner_user_id = ?, question_ids = ?,
			expires_at = ?, last_chance_notified_at = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?
	`,
		string(d.Status), nullInt64(d.OpponentUserID), d.CurrentRound,
		d.CreatorAnsweredRound, d.OpponentAnsweredRound,
		d.CreatorScore, d.OpponentScore,
		fmtTimePtr(d.CreatorFinishedAt), fmtTimePtr(d.OpponentFinishedAt),
		d.CreatorPushCount, d.OpponentPushCount,
		nullInt64(d.WinnerUserID), questionIDs,
		fmtTime(d.ExpiresAt), fmtTimePtr(d.LastChanceNotifiedAt),
		fmtTime(d.UpdatedAt), fmtTimePtr(d.CompletedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating duel %s: %w", d.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("updating duel %s: %w", d.ID, ErrDuelNotFound)
	}
	return nil
}

func (t *Tx) DuelByID(ctx context.Context, id string) (*duel.Duel, error) {
	row := t.conn.QueryRowContext(ctx, `SELECT `+duelColumns+` FROM duels WHERE id = ?`, id)
	return scanDuel(row)
}

func (t *Tx) DuelByInviteToken(ctx context.Context, token string) (*duel.Duel, error) {
	row := t.conn.QueryRowContext(ctx, `SELECT `+duelColumns+` FROM duels WHERE invite_token = ?`, token)
	return scanDuel(row)
}

func (t *Tx) DuelsBySeriesID(ctx context.Context, seriesID string) ([]*duel.Duel, error) {
	rows, err := t.conn.QueryContext(ctx, `
		SELECT `+duelColumns+` FROM duels WHERE series_id = ? ORDER BY series_game_number
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("listing series %s: %w", seriesID, err)
	}
	defer rows.Close()

	var duels []*duel.Duel
	for rows.Next() {
		d, err := scanDuel(rows)
		if err != nil {
			return nil, err
		}
		duels = append(duels, d)
	}
	return duels, rows.Err()
}

func (t *Tx) CountDuelsByCreatorAccess(ctx context.Context, userID int64, access duel.AccessType) (int, error) {
	var count int
	err := t.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM duels WHERE creator_user_id = ? AND access_type = ?
	`, userID, string(access)).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDuel(row rowScanner) (*duel.Duel, error) {
	var d duel.Duel
	var (
		opponent, winner                       sql.NullInt64
		questionIDs, seriesID, tournamentMatch sql.NullString
		creatorFinished, opponentFinished      sql.NullString
		lastChance, completed                  sql.NullString
		expiresAt, createdAt, updatedAt        string
		challengeType, access, status          string
	)
	err := row.Scan(
		&d.ID, &d.InviteToken, &challengeType, &d.ModeCode, &access, &status,
		&d.CreatorUserID, &opponent, &d.CurrentRound, &d.TotalRounds,
		&d.CreatorAnsweredRound, &d.OpponentAnsweredRound, &d.CreatorScore, &d.OpponentScore,
		&creatorFinished, &opponentFinished, &d.CreatorPushCount, &d.OpponentPushCount,
		&winner, &questionIDs, &seriesID, &d.SeriesGameNumber, &d.SeriesBestOf,
		&tournamentMatch, &expiresAt, &lastChance,
		&createdAt, &updatedAt, &completed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDuelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning duel: %w", err)
	}

	d.Type = duel.Type(challengeType)
	d.Access = duel.AccessType(access)
	// Legacy ACTIVE rows are normalized here, at the storage boundary; the
	// state machine itself never sees the legacy value.
	d.OpponentUserID = opponent.Int64
	d.WinnerUserID = winner.Int64
	d.Status = duel.NormalizeStatus(duel.Status(status), d.HasOpponent())
	d.SeriesID = seriesID.String
	d.TournamentMatchID = tournamentMatch.String

	if questionIDs.Valid && questionIDs.String != "" {
		if err := json.Unmarshal([]byte(questionIDs.String), &d.QuestionIDs); err != nil {
			return nil, fmt.Errorf("decoding question plan for %s: %w", d.ID, err)
		}
	}

	if d.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if d.CreatorFinishedAt, err = parseTimePtr(creatorFinished); err != nil {
		return nil, err
	}
	if d.OpponentFinishedAt, err = parseTimePtr(opponentFinished); err != nil {
		return nil, err
	}
	if d.LastChanceNotifiedAt, err = parseTimePtr(lastChance); err != nil {
		return nil, err
	}
	if d.CompletedAt, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	return &d, nil
}

func marshalQuestionIDs(ids []string) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding question plan: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
