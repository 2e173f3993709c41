package game

import (
	"context"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// CreateDuelInput describes a new friend challenge.
type CreateDuelInput struct {
	CreatorID   int64
	Type        duel.Type
	ModeCode    string
	TotalRounds int

	seriesID         string
	seriesGameNumber int
	seriesBestOf     int
}

// CreateDuel creates a PENDING duel and mints its invite token. The
// creator's entitlement (premium, free allowance, ticket) is resolved and
// recorded inside the same transaction that counts earlier creations, so
// the quota cannot be raced past.
func (s *Service) CreateDuel(ctx context.Context, in CreateDuelInput) (*duel.Duel, error) {
	rounds, err := duel.ResolveRounds(in.TotalRounds)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = duel.TypeDirect
	}
	now := s.now()

	var created *duel.Duel
	err = s.store.InTx(ctx, func(tx *Tx) error {
		access, err := s.resolveAccessType(ctx, tx, in.CreatorID, now)
		if err != nil {
			return err
		}

		d := &duel.Duel{
			ID:               newID(),
			InviteToken:      newInviteToken(),
			Type:             in.Type,
			ModeCode:         in.ModeCode,
			Access:           access,
			Status:           duel.StatusPending,
			CreatorUserID:    in.CreatorID,
			CurrentRound:     1,
			TotalRounds:      rounds,
			SeriesID:         in.seriesID,
			SeriesGameNumber: max(1, in.seriesGameNumber),
			SeriesBestOf:     max(1, in.seriesBestOf),
			ExpiresAt:        now.Add(s.ttls.Pending),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.InsertDuel(ctx, d); err != nil {
			return err
		}
		created = d

		return s.events.Emit(ctx, tx, Event{
			Type:       "duel_created",
			Source:     "FRIEND_CHALLENGE",
			UserID:     in.CreatorID,
			Payload:    map[string]any{"duel_id": d.ID, "mode": d.ModeCode, "rounds": d.TotalRounds, "access": string(access)},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// JoinByToken accepts an invitation. The slot is first-joiner-wins: the
// exclusive transaction means a concurrent second joiner observes the filled
// slot and gets ErrDuelFull. The joiner replaying their own accepted join is
// a no-op success.
func (s *Service) JoinByToken(ctx context.Context, userID int64, token string) (*duel.Duel, error) {
	return s.join(ctx, userID, func(tx *Tx) (*duel.Duel, error) {
		return tx.DuelByInviteToken(ctx, token)
	})
}

// JoinByID accepts an invitation addressed by duel id.
func (s *Service) JoinByID(ctx context.Context, userID int64, duelID string) (*duel.Duel, error) {
	return s.join(ctx, userID, func(tx *Tx) (*duel.Duel, error) {
		return tx.DuelByID(ctx, duelID)
	})
}

func (s *Service) join(ctx context.Context, userID int64, load func(tx *Tx) (*duel.Duel, error)) (*duel.Duel, error) {
	now := s.now()
	var joined *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		d, err := load(tx)
		if err != nil {
			return err
		}

		if d.ExpireIfDue(now) {
			if err := s.settleDuelClose(ctx, tx, d, now); err != nil {
				return err
			}
			if err := tx.UpdateDuel(ctx, d); err != nil {
				return err
			}
			return ErrDuelExpired
		}
		if d.Status.IsTerminal() {
			if d.Status == duel.StatusExpired {
				return ErrDuelExpired
			}
			return ErrDuelAlreadyDone
		}
		if userID == d.CreatorUserID {
			return ErrDuelAccessDenied
		}
		if d.HasOpponent() {
			if d.OpponentUserID == userID {
				joined = d
				return nil
			}
			return ErrDuelFull
		}

		d.OpponentUserID = userID
		d.Status = duel.StatusAccepted
		d.ExpiresAt = clampToMatchDeadline(ctx, tx, d, now.Add(s.ttls.Accepted))
		d.UpdatedAt = now
		if err := tx.UpdateDuel(ctx, d); err != nil {
			return err
		}
		joined = d

		return s.events.Emit(ctx, tx, Event{
			Type:       "duel_joined",
			Source:     "FRIEND_CHALLENGE",
			UserID:     userID,
			Payload:    map[string]any{"duel_id": d.ID},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// clampToMatchDeadline keeps a tournament duel's expiry inside its match
// deadline; standalone duels pass through.
func clampToMatchDeadline(ctx context.Context, tx *Tx, d *duel.Duel, proposed time.Time) time.Time {
	if d.TournamentMatchID == "" {
		return proposed
	}
	m, err := tx.TournamentMatchByID(ctx, d.TournamentMatchID)
	if err != nil || m.Deadline.IsZero() {
		return proposed
	}
	if m.Deadline.Before(proposed) {
		return m.Deadline
	}
	return proposed
}

// CancelDuel retires an EXPIRED duel from the creator's list. Only the
// creator may cancel, and only from EXPIRED: live duels decay through the
// deadline machinery instead of being canceled out from under the opponent.
func (s *Service) CancelDuel(ctx context.Context, userID int64, duelID string) (*duel.Duel, error) {
	now := s.now()
	var canceled *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		d, err := tx.DuelByID(ctx, duelID)
		if err != nil {
			return err
		}
		if d.CreatorUserID != userID {
			return ErrDuelAccessDenied
		}
		d.ExpireIfDue(now)
		if d.Status != duel.StatusExpired {
			return ErrDuelAlreadyDone
		}
		d.Status = duel.StatusCanceled
		d.UpdatedAt = now
		if err := tx.UpdateDuel(ctx, d); err != nil {
			return err
		}
		canceled = d
		return s.events.Emit(ctx, tx, Event{
			Type:       "duel_canceled",
			Source:     "FRIEND_CHALLENGE",
			UserID:     userID,
			Payload:    map[string]any{"duel_id": d.ID},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return canceled, nil
}

// RepostAsOpen converts the creator's unanswered direct invitation into an
// open challenge with a fresh token and a fresh deadline.
func (s *Service) RepostAsOpen(ctx context.Context, userID int64, duelID string) (*duel.Duel, error) {
	now := s.now()
	var reposted *duel.Duel
	err := s.store.InTx(ctx, func(tx *Tx) error {
		d, err := tx.DuelByID(ctx, duelID)
		if err != nil {
			return err
		}
		if d.CreatorUserID != userID {
			return ErrDuelAccessDenied
		}
		if d.HasOpponent() || (d.Status != duel.StatusPending && d.Status != duel.StatusExpired) {
			return ErrDuelAlreadyDone
		}

		d.Type = duel.TypeOpen
		d.Status = duel.StatusPending
		d.InviteToken = newInviteToken()
		d.ExpiresAt = now.Add(s.ttls.Pending)
		d.CompletedAt = nil
		d.UpdatedAt = now
		if err := tx.UpdateDuel(ctx, d); err != nil {
			return err
		}
		reposted = d
		return s.events.Emit(ctx, tx, Event{
			Type:       "duel_reposted",
			Source:     "FRIEND_CHALLENGE",
			UserID:     userID,
			Payload:    map[string]any{"duel_id": d.ID},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return reposted, nil
}

// DuelSnapshot returns the participant-facing view of a duel, with the
// series standing attached when the duel belongs to one.
func (s *Service) DuelSnapshot(ctx context.Context, userID int64, duelID string) (*DuelProgress, error) {
	var out DuelProgress
	err := s.store.InTx(ctx, func(tx *Tx) error {
		d, err := tx.DuelByID(ctx, duelID)
		if err != nil {
			return err
		}
		if !d.IsParticipant(userID) {
			return ErrDuelAccessDenied
		}
		// Reads reflect decay: an overdue duel snapshots as terminal.
		if d.ExpireIfDue(s.now()) {
			if err := s.settleDuelClose(ctx, tx, d, s.now()); err != nil {
				return err
			}
			if err := tx.UpdateDuel(ctx, d); err != nil {
				return err
			}
		}
		out.Snapshot = d.TakeSnapshot()
		if d.SeriesID != "" {
			score, err := s.seriesScore(ctx, tx, d)
			if err != nil {
				return err
			}
			out.Series = &score
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
