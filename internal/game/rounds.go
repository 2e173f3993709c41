package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/brainduel/api/internal/duel"
	"github.com/brainduel/api/internal/quiz"
)

// RoundStart is the outcome of asking for the next duel round.
type RoundStart struct {
	// Waiting is true when no round can be played right now: the opponent
	// has not joined yet, or the caller already finished all rounds.
	Waiting bool
	Round   int
	Session *quiz.Session
	// Question is zero-valued while Waiting.
	Question quiz.Question
	Replayed bool
	Snapshot duel.Snapshot
}

// StartDuelRound opens the caller's next round of a duel. The round's
// question is pinned duel-wide: whichever player opens the round first fixes
// the question, and the other player's session reuses it. Retrying the same
// round returns the caller's existing session.
func (s *Service) StartDuelRound(ctx context.Context, userID int64, duelID string) (*RoundStart, error) {
	now := s.now()
	var out RoundStart
	err := s.store.InTx(ctx, func(tx *Tx) error {
		d, err := tx.DuelByID(ctx, duelID)
		if err != nil {
			return err
		}
		if !d.IsParticipant(userID) {
			return ErrDuelAccessDenied
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
		if d.Status == duel.StatusPending {
			// Nobody plays until the invitation is accepted.
			out = RoundStart{Waiting: true, Snapshot: d.TakeSnapshot()}
			return nil
		}

		round := d.AnsweredRound(userID) + 1
		if round > d.TotalRounds {
			out = RoundStart{Waiting: true, Snapshot: d.TakeSnapshot()}
			return nil
		}

		// One session per (duel, round, player): retries land on the
		// caller's own row for this round.
		key := fmt.Sprintf("duel:%s:%d:%d", d.ID, round, userID)
		if existing, err := tx.SessionForDuelRoundUser(ctx, d.ID, round, userID); err == nil {
			q, err := s.selector.SelectByID(ctx, d.ModeCode, existing.QuestionID)
			if err != nil {
				return err
			}
			out = RoundStart{Round: round, Session: existing, Question: q, Replayed: true, Snapshot: d.TakeSnapshot()}
			return nil
		} else if !errors.Is(err, ErrSessionNotFound) {
			return err
		}

		questionID, err := s.pinRoundQuestion(ctx, tx, d, round)
		if err != nil {
			return err
		}

		session := &quiz.Session{
			ID:             newID(),
			UserID:         userID,
			ModeCode:       d.ModeCode,
			Source:         quiz.SourceDuel,
			Status:         quiz.StatusStarted,
			QuestionID:     questionID,
			EnergyCost:     0,
			DuelID:         d.ID,
			DuelRound:      round,
			IdempotencyKey: key,
			LocalDate:      s.localDate(now),
			StartedAt:      now,
		}
		if d.TournamentMatchID != "" {
			session.Source = quiz.SourceTournament
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}

		question, err := s.selector.SelectByID(ctx, d.ModeCode, questionID)
		if err != nil {
			return err
		}
		out = RoundStart{Round: round, Session: session, Question: question, Snapshot: d.TakeSnapshot()}

		return s.events.Emit(ctx, tx, Event{
			Type:       "duel_round_started",
			Source:     string(session.Source),
			UserID:     userID,
			Payload:    map[string]any{"duel_id": d.ID, "round": round, "question_id": questionID},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// pinRoundQuestion resolves the question id for a duel round. Precedence: a
// pre-selected plan entry; a question already pinned by either player's
// session for this round; a fresh seeded selection excluding the duel's
// earlier questions. The seed is a pure function of (duel, round, mode), so
// even two concurrent first-openers would select the same question.
func (s *Service) pinRoundQuestion(ctx context.Context, tx *Tx, d *duel.Duel, round int) (string, error) {
	if len(d.QuestionIDs) >= round {
		return d.QuestionIDs[round-1], nil
	}

	if pinned, err := tx.SessionForDuelRound(ctx, d.ID, round); err == nil {
		return pinned.QuestionID, nil
	} else if !errors.Is(err, ErrSessionNotFound) {
		return "", err
	}

	used, err := tx.DuelQuestionIDsBeforeRound(ctx, d.ID, round)
	if err != nil {
		return "", err
	}
	seed := duelRoundSeed(d.ID, round, d.ModeCode)
	level := duel.LevelForRound(round)
	question, err := s.selector.SelectForMode(ctx, d.ModeCode, s.localDate(s.now()), used, seed, level)
	if err != nil {
		return "", err
	}
	return question.ID, nil
}
