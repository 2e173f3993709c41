package game

import (
	"context"
	"fmt"

	"github.com/brainduel/api/internal/duel"
)

// Tournament points per game outcome.
const (
	pointsWin  = 1.0
	pointsDraw = 0.5
)

// settleMatchFromDuel writes a finished duel's result into its bracket
// slot. Settlement is guarded on the match still being PENDING, so exactly
// one of several racing closers (final answer, reaper, snapshot decay)
// performs it; the rest see zero rows and skip the standings update.
func (s *Service) settleMatchFromDuel(ctx context.Context, tx *Tx, d *duel.Duel) error {
	matchStatus := "COMPLETED"
	if d.Status == duel.StatusWalkover || d.Status == duel.StatusExpired {
		matchStatus = "WALKOVER"
	}
	settled, err := tx.SettleMatch(ctx, d.TournamentMatchID, matchStatus, d.WinnerUserID)
	if err != nil {
		return err
	}
	if !settled {
		return nil
	}

	m, err := tx.TournamentMatchByID(ctx, d.TournamentMatchID)
	if err != nil {
		return fmt.Errorf("loading match %s after settle: %w", d.TournamentMatchID, err)
	}

	award := func(userID int64, score int) error {
		if userID == 0 {
			return nil
		}
		points := pointsDraw
		switch d.WinnerUserID {
		case 0:
			// draw, both get half
		case userID:
			points = pointsWin
		default:
			points = 0
		}
		return tx.AddTournamentPoints(ctx, m.TournamentID, userID, points, float64(score))
	}
	if err := award(d.CreatorUserID, d.CreatorScore); err != nil {
		return err
	}
	return award(d.OpponentUserID, d.OpponentScore)
}

// CreateMatchDuel materializes a bracket match as a playable duel: both
// players are seated immediately, the full question plan is pre-selected so
// every round is fixed up front, and the deadline never exceeds the match
// deadline.
func (s *Service) CreateMatchDuel(ctx context.Context, matchID string, totalRounds int) (*duel.Duel, error) {
	rounds, err := duel.ResolveRounds(totalRounds)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var created *duel.Duel
	err = s.store.InTx(ctx, func(tx *Tx) error {
		m, err := tx.TournamentMatchByID(ctx, matchID)
		if err != nil {
			return err
		}
		if m.DuelID != "" {
			created, err = tx.DuelByID(ctx, m.DuelID)
			return err
		}
		if m.UserB == 0 {
			// bye: nothing to play
			return ErrDuelFull
		}

		duelID := newID()
		plan := make([]string, 0, rounds)
		for round := 1; round <= rounds; round++ {
			seed := duelRoundSeed(duelID, round, tournamentMode)
			q, err := s.selector.SelectForMode(ctx, tournamentMode, s.localDate(now), plan, seed, duel.LevelForRound(round))
			if err != nil {
				return err
			}
			plan = append(plan, q.ID)
		}

		expires := now.Add(s.ttls.Accepted)
		if m.Deadline.Before(expires) {
			expires = m.Deadline
		}
		d := &duel.Duel{
			ID:                duelID,
			InviteToken:       newInviteToken(),
			Type:              duel.TypeDirect,
			ModeCode:          tournamentMode,
			Access:            duel.AccessFree,
			Status:            duel.StatusAccepted,
			CreatorUserID:     m.UserA,
			OpponentUserID:    m.UserB,
			CurrentRound:      1,
			TotalRounds:       rounds,
			QuestionIDs:       plan,
			SeriesGameNumber:  1,
			SeriesBestOf:      1,
			TournamentMatchID: matchID,
			ExpiresAt:         expires,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.InsertDuel(ctx, d); err != nil {
			return err
		}
		if err := tx.AttachDuelToMatch(ctx, matchID, duelID); err != nil {
			return err
		}
		created = d
		return s.events.Emit(ctx, tx, Event{
			Type:       "tournament_duel_created",
			Source:     "TOURNAMENT",
			UserID:     m.UserA,
			Payload:    map[string]any{"duel_id": duelID, "match_id": matchID, "tournament_id": m.TournamentID},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// tournamentMode is the question mode tournaments draw from.
const tournamentMode = "MIXED"
