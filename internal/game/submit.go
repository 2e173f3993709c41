package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/brainduel/api/internal/duel"
	"github.com/brainduel/api/internal/quiz"
)

// SubmitAnswerInput describes one answer submission.
type SubmitAnswerInput struct {
	UserID         int64
	SessionID      string
	OptionIndex    int
	IdempotencyKey string
}

// DuelProgress reports how an answer moved its duel.
type DuelProgress struct {
	Snapshot duel.Snapshot
	Outcome  duel.AnswerOutcome
	Series   *duel.SeriesScore
}

// AnswerResult is the outcome of an answer submission.
type AnswerResult struct {
	Correct       bool
	CorrectOption int
	Replayed      bool
	Streak        quiz.StreakSnapshot
	// NextLevel is set for adaptive modes: the preferred level after this
	// answer.
	NextLevel quiz.Level
	// Duel is set when the session belongs to a friend challenge round.
	Duel *DuelProgress
}

// SubmitAnswer records the answer for a session and completes it. Retried
// submissions (same idempotency key, or any submission against an already
// completed session) replay the recorded outcome without changing state.
// Duel sessions additionally advance the duel's state machine inside the
// same transaction.
func (s *Service) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*AnswerResult, error) {
	now := s.now()
	var out AnswerResult
	var notify []func()

	err := s.store.InTx(ctx, func(tx *Tx) error {
		if in.IdempotencyKey != "" {
			prior, err := tx.AttemptByIdempotencyKey(ctx, in.IdempotencyKey)
			if err == nil {
				return s.replayAnswer(ctx, tx, prior, in.UserID, &out)
			}
			if !errors.Is(err, ErrSessionNotFound) {
				return err
			}
		}

		session, err := tx.SessionByID(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if session.UserID != in.UserID {
			return ErrSessionNotFound
		}
		if session.Status != quiz.StatusStarted {
			prior, err := tx.LatestAttemptForSession(ctx, session.ID)
			if err != nil {
				return err
			}
			return s.replayAnswer(ctx, tx, prior, in.UserID, &out)
		}

		question, err := s.selector.SelectByID(ctx, session.ModeCode, session.QuestionID)
		if err != nil {
			return err
		}
		if in.OptionIndex < 0 || in.OptionIndex >= len(question.Options) {
			return ErrInvalidAnswerOption
		}
		correct := in.OptionIndex == question.CorrectOption

		key := in.IdempotencyKey
		if key == "" {
			key = "attempt:" + uuid.NewString()
		}
		attempt := &quiz.Attempt{
			ID:             newID(),
			SessionID:      session.ID,
			UserID:         in.UserID,
			QuestionID:     question.ID,
			IsCorrect:      correct,
			AnsweredAt:     now,
			IdempotencyKey: key,
		}
		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}
		if err := tx.CompleteSession(ctx, session.ID, quiz.StatusCompleted); err != nil {
			return err
		}

		out = AnswerResult{Correct: correct, CorrectOption: question.CorrectOption}

		if quiz.IsPersistentAdaptiveMode(session.ModeCode) {
			next := quiz.NextPreferredLevel(question.Level, correct, session.ModeCode)
			if next != "" {
				if err := tx.UpsertPreferredLevel(ctx, in.UserID, session.ModeCode, next, now); err != nil {
					return err
				}
				out.NextLevel = next
			}
		}

		today := s.localDate(now)
		yesterday := s.localDate(now.AddDate(0, 0, -1))
		if out.Streak, err = tx.RecordStreakActivity(ctx, in.UserID, today, yesterday); err != nil {
			return err
		}

		if session.DuelID != "" {
			progress, fns, err := s.applyDuelAnswer(ctx, tx, session, correct, now)
			if err != nil {
				return err
			}
			out.Duel = progress
			notify = fns
		}

		return s.events.Emit(ctx, tx, Event{
			Type:       "answer_submitted",
			Source:     string(session.Source),
			UserID:     in.UserID,
			Payload:    map[string]any{"session_id": session.ID, "question_id": question.ID, "correct": correct},
			HappenedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, fn := range notify {
		fn()
	}
	return &out, nil
}

// replayAnswer rebuilds the response for a previously recorded attempt.
func (s *Service) replayAnswer(ctx context.Context, tx *Tx, attempt *quiz.Attempt, userID int64, out *AnswerResult) error {
	if attempt.UserID != userID {
		return ErrSessionNotFound
	}
	session, err := tx.SessionByID(ctx, attempt.SessionID)
	if err != nil {
		return err
	}
	question, err := s.selector.SelectByID(ctx, session.ModeCode, attempt.QuestionID)
	if err != nil {
		return err
	}
	*out = AnswerResult{
		Correct:       attempt.IsCorrect,
		CorrectOption: question.CorrectOption,
		Replayed:      true,
	}
	if out.Streak, err = tx.StreakSnapshot(ctx, userID); err != nil {
		return err
	}
	if session.DuelID != "" {
		d, err := tx.DuelByID(ctx, session.DuelID)
		if err != nil {
			return err
		}
		out.Duel = &DuelProgress{Snapshot: d.TakeSnapshot()}
	}
	return nil
}

// applyDuelAnswer advances the duel for an answered round. An overdue duel
// is expired in place; the answer still stands as a session attempt but no
// longer counts toward the duel.
func (s *Service) applyDuelAnswer(ctx context.Context, tx *Tx, session *quiz.Session, correct bool, now time.Time) (*DuelProgress, []func(), error) {
	d, err := tx.DuelByID(ctx, session.DuelID)
	if err != nil {
		return nil, nil, err
	}
	if !d.IsParticipant(session.UserID) {
		return nil, nil, ErrDuelAccessDenied
	}

	var notify []func()
	if d.ExpireIfDue(now) {
		if err := s.settleDuelClose(ctx, tx, d, now); err != nil {
			return nil, nil, err
		}
		if err := tx.UpdateDuel(ctx, d); err != nil {
			return nil, nil, err
		}
		return &DuelProgress{Snapshot: d.TakeSnapshot()}, nil, nil
	}

	outcome := d.ApplyAnswer(session.UserID, session.DuelRound, correct, now)
	if outcome.CompletedNow {
		if err := s.settleDuelClose(ctx, tx, d, now); err != nil {
			return nil, nil, err
		}
		creatorID, opponentID := d.CreatorUserID, d.OpponentUserID
		duelID := d.ID
		notify = append(notify, func() {
			s.notify.DuelFinished(creatorID, duelID)
			if opponentID != 0 {
				s.notify.DuelFinished(opponentID, duelID)
			}
		})
	}
	if err := tx.UpdateDuel(ctx, d); err != nil {
		return nil, nil, err
	}

	progress := &DuelProgress{Snapshot: d.TakeSnapshot(), Outcome: outcome}
	if d.SeriesID != "" && outcome.CompletedNow {
		score, err := s.seriesScore(ctx, tx, d)
		if err != nil {
			return nil, nil, err
		}
		progress.Series = &score
	}
	return progress, notify, nil
}

// settleDuelClose runs the side effects of a duel reaching a terminal
// state: the completion event and, for tournament duels, match settlement.
func (s *Service) settleDuelClose(ctx context.Context, tx *Tx, d *duel.Duel, now time.Time) error {
	if d.TournamentMatchID != "" {
		if err := s.settleMatchFromDuel(ctx, tx, d); err != nil {
			return err
		}
	}
	return s.events.Emit(ctx, tx, Event{
		Type:   "duel_closed",
		Source: string(quiz.SourceDuel),
		UserID: d.CreatorUserID,
		Payload: map[string]any{
			"duel_id": d.ID, "status": string(d.Status),
			"winner_user_id": d.WinnerUserID,
			"creator_score":  d.CreatorScore, "opponent_score": d.OpponentScore,
		},
		HappenedAt: now,
	})
}
