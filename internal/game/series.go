package game

import (
	"context"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// seriesScore aggregates the standing of the series d belongs to. The
// pairing of the first game anchors whose wins count where; later games may
// swap creator and opponent roles.
func (s *Service) seriesScore(ctx context.Context, tx *Tx, d *duel.Duel) (duel.SeriesScore, error) {
	games, err := tx.DuelsBySeriesID(ctx, d.SeriesID)
	if err != nil {
		return duel.SeriesScore{}, err
	}
	if len(games) == 0 {
		games = []*duel.Duel{d}
	}
	first := games[0]
	creatorWins, opponentWins := duel.CountSeriesWins(games, first.CreatorUserID, first.OpponentUserID)
	maxGame := 0
	for _, g := range games {
		if g.SeriesGameNumber > maxGame {
			maxGame = g.SeriesGameNumber
		}
	}
	return duel.SeriesScore{
		CreatorWins:   creatorWins,
		OpponentWins:  opponentWins,
		MaxGameNumber: maxGame,
		BestOf:        first.SeriesBestOf,
	}, nil
}

// CreateSeriesInput describes a new best-of-N series grown out of a
// finished duel.
type CreateSeriesInput struct {
	UserID int64
	DuelID string
	BestOf int
}

// StartSeries turns a finished duel's pairing into game 1 of a best-of-N
// series. The series itself has no row: the shared series id across games
// is the series.
func (s *Service) StartSeries(ctx context.Context, in CreateSeriesInput) (*duel.Duel, error) {
	if in.BestOf != 3 && in.BestOf != 5 {
		in.BestOf = 3
	}
	now := s.now()
	var created *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		prior, err := s.terminalDuel(ctx, tx, in.UserID, in.DuelID, now)
		if err != nil {
			return err
		}
		created, err = s.createFollowUpGame(ctx, tx, in.UserID, prior.OpponentOf(in.UserID),
			prior.ModeCode, prior.TotalRounds, newID(), 1, in.BestOf, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Rematch creates a fresh game against the same opponent from a finished
// duel. Inside an undecided series the rematch is the series' next game;
// otherwise it starts over as a standalone game with the same mode and
// format. The check and the insert share one transaction, so two racing
// rematches cannot both create a game.
func (s *Service) Rematch(ctx context.Context, userID int64, duelID string) (*duel.Duel, error) {
	now := s.now()
	var created *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		prior, err := s.terminalDuel(ctx, tx, userID, duelID, now)
		if err != nil {
			return err
		}
		if prior.SeriesID != "" {
			score, err := s.seriesScore(ctx, tx, prior)
			if err != nil {
				return err
			}
			if !score.Decided() {
				created, err = s.nextSeriesGame(ctx, tx, userID, prior.SeriesID, now)
				return err
			}
		}
		created, err = s.createFollowUpGame(ctx, tx, userID, prior.OpponentOf(userID),
			prior.ModeCode, prior.TotalRounds, "", 1, 1, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SeriesNextGame opens the next game of a series. Rejected once the series
// is decided, and while the current game is still being played. The
// requester becomes the new game's creator, so serve alternates with
// whoever asks first.
func (s *Service) SeriesNextGame(ctx context.Context, userID int64, seriesID string) (*duel.Duel, error) {
	now := s.now()
	var created *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		var err error
		created, err = s.nextSeriesGame(ctx, tx, userID, seriesID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// nextSeriesGame runs the decided/running checks and the insert under one
// write lock. Games the check finds past their deadline are settled and
// written back before the standing is computed.
func (s *Service) nextSeriesGame(ctx context.Context, tx *Tx, userID int64, seriesID string, now time.Time) (*duel.Duel, error) {
	games, err := tx.DuelsBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, ErrDuelNotFound
	}
	first := games[0]
	if !first.IsParticipant(userID) {
		return nil, ErrDuelAccessDenied
	}
	for _, g := range games {
		if g.ExpireIfDue(now) {
			if err := s.settleDuelClose(ctx, tx, g, now); err != nil {
				return nil, err
			}
			if err := tx.UpdateDuel(ctx, g); err != nil {
				return nil, err
			}
		}
		if !g.Status.IsTerminal() {
			return nil, ErrSeriesGameRunning
		}
	}
	score, err := s.seriesScore(ctx, tx, first)
	if err != nil {
		return nil, err
	}
	if score.Decided() {
		return nil, ErrSeriesDecided
	}
	return s.createFollowUpGame(ctx, tx, userID, first.OpponentOf(userID),
		first.ModeCode, first.TotalRounds, seriesID, score.MaxGameNumber+1, first.SeriesBestOf, now)
}

// terminalDuel loads a duel under the write lock and requires it to be over,
// persisting any expiry it applies on the way.
func (s *Service) terminalDuel(ctx context.Context, tx *Tx, userID int64, duelID string, now time.Time) (*duel.Duel, error) {
	d, err := tx.DuelByID(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if !d.IsParticipant(userID) {
		return nil, ErrDuelAccessDenied
	}
	if d.ExpireIfDue(now) {
		if err := s.settleDuelClose(ctx, tx, d, now); err != nil {
			return nil, err
		}
		if err := tx.UpdateDuel(ctx, d); err != nil {
			return nil, err
		}
	}
	if !d.Status.IsTerminal() {
		return nil, ErrSeriesGameRunning
	}
	return d, nil
}

// createFollowUpGame builds a game between two known players: it starts in
// ACCEPTED since both sides already agreed to play when the series (or the
// original duel) was formed.
func (s *Service) createFollowUpGame(ctx context.Context, tx *Tx, creatorID, opponentID int64, modeCode string, totalRounds int, seriesID string, gameNumber, bestOf int, now time.Time) (*duel.Duel, error) {
	rounds, err := duel.ResolveRounds(totalRounds)
	if err != nil {
		return nil, err
	}
	access, err := s.resolveAccessType(ctx, tx, creatorID, now)
	if err != nil {
		return nil, err
	}
	d := &duel.Duel{
		ID:               newID(),
		InviteToken:      newInviteToken(),
		Type:             duel.TypeDirect,
		ModeCode:         modeCode,
		Access:           access,
		Status:           duel.StatusAccepted,
		CreatorUserID:    creatorID,
		OpponentUserID:   opponentID,
		CurrentRound:     1,
		TotalRounds:      rounds,
		SeriesID:         seriesID,
		SeriesGameNumber: gameNumber,
		SeriesBestOf:     bestOf,
		ExpiresAt:        now.Add(s.ttls.Accepted),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opponentID == 0 {
		// Rematch against an open duel that was never joined.
		d.Status = duel.StatusPending
		d.ExpiresAt = now.Add(s.ttls.Pending)
	}
	if err := tx.InsertDuel(ctx, d); err != nil {
		return nil, err
	}
	err = s.events.Emit(ctx, tx, Event{
		Type:       "duel_created",
		Source:     "FRIEND_CHALLENGE",
		UserID:     creatorID,
		Payload:    map[string]any{"duel_id": d.ID, "series_id": seriesID, "game": gameNumber},
		HappenedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SeriesStanding returns the standing plus the snapshots of every game.
func (s *Service) SeriesStanding(ctx context.Context, userID int64, seriesID string) (duel.SeriesScore, []duel.Snapshot, error) {
	var score duel.SeriesScore
	var snaps []duel.Snapshot
	err := s.store.InTx(ctx, func(tx *Tx) error {
		games, err := tx.DuelsBySeriesID(ctx, seriesID)
		if err != nil {
			return err
		}
		if len(games) == 0 {
			return ErrDuelNotFound
		}
		if !games[0].IsParticipant(userID) {
			return ErrDuelAccessDenied
		}
		score, err = s.seriesScore(ctx, tx, games[0])
		if err != nil {
			return err
		}
		for _, g := range games {
			snaps = append(snaps, g.TakeSnapshot())
		}
		return nil
	})
	if err != nil {
		return duel.SeriesScore{}, nil, err
	}
	return score, snaps, nil
}
