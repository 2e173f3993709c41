package game

import (
	"context"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// ReaperStats counts what one reaper pass did.
type ReaperStats struct {
	Warned  int
	Expired int
}

// RunReaper sweeps overdue duels on a fixed cadence until ctx is canceled.
func (s *Service) RunReaper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := s.ReapOnce(ctx)
			if err != nil {
				s.logger.Error("reaper pass failed", "error", err)
				continue
			}
			if stats.Warned > 0 || stats.Expired > 0 {
				s.logger.Info("reaper pass", "warned", stats.Warned, "expired", stats.Expired)
			}
		}
	}
}

// ReapOnce runs one bounded sweep: first the last-chance warnings for duels
// close to their deadline, then the expiry of duels past it. Both phases are
// idempotent — duels already warned or already terminal fall out of the
// candidate queries, so a crashed pass simply resumes on the next tick.
func (s *Service) ReapOnce(ctx context.Context) (ReaperStats, error) {
	var stats ReaperStats
	now := s.now()

	warned, err := s.warnLastChance(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.Warned = warned

	expired, err := s.expireOverdue(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.Expired = expired
	return stats, nil
}

func (s *Service) warnLastChance(ctx context.Context, now time.Time) (int, error) {
	var ids []string
	err := s.store.InTx(ctx, func(tx *Tx) error {
		var err error
		ids, err = tx.ListLastChanceDuels(ctx, now, now.Add(s.ttls.LastChance), s.ttls.ReaperBatch)
		return err
	})
	if err != nil {
		return 0, err
	}

	warned := 0
	// One transaction per duel keeps the write lock short.
	for _, id := range ids {
		var notify []func()
		err := s.store.InTx(ctx, func(tx *Tx) error {
			d, err := tx.DuelByID(ctx, id)
			if err != nil {
				return err
			}
			halfDone := d.Status == duel.StatusCreatorDone || d.Status == duel.StatusOpponentDone
			if !halfDone || d.LastChanceNotifiedAt != nil || !d.ExpiresAt.After(now) {
				return nil
			}
			t := now
			d.LastChanceNotifiedAt = &t
			d.UpdatedAt = now

			expiresAt := d.ExpiresAt
			duelID := d.ID
			// Warn only players who still have rounds to answer, and never
			// push the same player twice for one duel.
			if d.CreatorAnsweredRound < d.TotalRounds && d.CreatorPushCount < 1 {
				d.CreatorPushCount++
				creatorID := d.CreatorUserID
				notify = append(notify, func() { s.notify.LastChance(creatorID, duelID, expiresAt) })
			}
			if d.HasOpponent() && d.OpponentAnsweredRound < d.TotalRounds && d.OpponentPushCount < 1 {
				d.OpponentPushCount++
				opponentID := d.OpponentUserID
				notify = append(notify, func() { s.notify.LastChance(opponentID, duelID, expiresAt) })
			}
			warned++
			return tx.UpdateDuel(ctx, d)
		})
		if err != nil {
			s.logger.Error("warning duel", "duel_id", id, "error", err)
			continue
		}
		for _, fn := range notify {
			fn()
		}
	}
	return warned, nil
}

func (s *Service) expireOverdue(ctx context.Context, now time.Time) (int, error) {
	var ids []string
	err := s.store.InTx(ctx, func(tx *Tx) error {
		var err error
		ids, err = tx.ListOverdueDuels(ctx, now, s.ttls.ReaperBatch)
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		var notify []func()
		err := s.store.InTx(ctx, func(tx *Tx) error {
			d, err := tx.DuelByID(ctx, id)
			if err != nil {
				return err
			}
			// Re-check under the lock: the duel may have completed or been
			// expired since the candidate list was taken.
			if !d.ExpireIfDue(now) {
				return nil
			}
			if err := s.settleDuelClose(ctx, tx, d, now); err != nil {
				return err
			}
			if err := tx.UpdateDuel(ctx, d); err != nil {
				return err
			}
			duelID := d.ID
			creatorID, opponentID := d.CreatorUserID, d.OpponentUserID
			notify = append(notify, func() {
				s.notify.DuelFinished(creatorID, duelID)
				if opponentID != 0 {
					s.notify.DuelFinished(opponentID, duelID)
				}
			})
			expired++
			return nil
		})
		if err != nil {
			s.logger.Error("expiring duel", "duel_id", id, "error", err)
			continue
		}
		for _, fn := range notify {
			fn()
		}
	}
	return expired, nil
}
