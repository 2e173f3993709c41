package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brainduel/api/internal/quiz"
)

// StartSessionInput describes a session start request.
type StartSessionInput struct {
	UserID         int64
	ModeCode       string
	Source         quiz.Source
	IdempotencyKey string

	// QuestionID forces a specific question (duel round pinning, tournament
	// plans). Empty means the selector picks.
	QuestionID string

	duelID    string
	duelRound int
}

// StartedSession is the outcome of a session start.
type StartedSession struct {
	Session  *quiz.Session
	Question quiz.Question
	Replayed bool
	Energy   EnergyResult
}

// StartSession starts (or replays) one quiz session. Replaying the same
// idempotency key returns the original session and question without charging
// again or re-running any guard.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartedSession, error) {
	if in.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key required")
	}
	now := s.now()
	localDate := s.localDate(now)

	// Replays short-circuit before any gate: retrying a key returns the
	// original session without re-running guards.
	if existing, err := s.store.SessionSnapshotByKey(ctx, in.IdempotencyKey); err == nil {
		return s.replaySession(ctx, existing, in.UserID, now)
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	// The access gate runs before the energy spend: a rejected start must
	// not have charged anything.
	unlocked, err := s.access.HasModeAccess(ctx, in.UserID, in.ModeCode, now)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, ErrModeLocked
	}

	// The energy gate commits its own transaction before the session one.
	// The two are tied by the shared idempotency key: a retry after a crash
	// between them replays the spend instead of double-charging.
	var energy EnergyResult
	if !in.Source.ZeroCost() {
		energy, err = s.energy.Consume(ctx, in.UserID, "energy:"+in.IdempotencyKey, now)
		if err != nil {
			return nil, err
		}
		if !energy.Allowed {
			return nil, ErrEnergyInsufficient
		}
	}

	var out StartedSession
	err = s.store.InTx(ctx, func(tx *Tx) error {
		// Re-check under the write lock: a concurrent holder of the same
		// key may have inserted since the read-only probe.
		existing, err := tx.SessionByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			if existing.UserID != in.UserID {
				return ErrSessionNotFound
			}
			q, err := s.selector.SelectByID(ctx, existing.ModeCode, existing.QuestionID)
			if err != nil {
				return err
			}
			out = StartedSession{Session: existing, Question: q, Replayed: true, Energy: energy}
			return nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}

		if in.Source == quiz.SourceDaily {
			played, err := tx.HasDailySessionOnDate(ctx, in.UserID, localDate)
			if err != nil {
				return err
			}
			if played {
				return ErrDailyAlreadyPlayed
			}
		}

		sessionID := newID()
		question, err := s.pickQuestion(ctx, tx, in, sessionID, localDate)
		if err != nil {
			return err
		}

		cost := 0
		if !in.Source.ZeroCost() {
			cost = 1
		}
		session := &quiz.Session{
			ID:             sessionID,
			UserID:         in.UserID,
			ModeCode:       in.ModeCode,
			Source:         in.Source,
			Status:         quiz.StatusStarted,
			QuestionID:     question.ID,
			EnergyCost:     cost,
			DuelID:         in.duelID,
			DuelRound:      in.duelRound,
			IdempotencyKey: in.IdempotencyKey,
			LocalDate:      localDate,
			StartedAt:      now,
		}
		if err := tx.InsertSession(ctx, session); err != nil {
			return err
		}

		if err := s.events.Emit(ctx, tx, Event{
			Type:       "session_started",
			Source:     string(in.Source),
			UserID:     in.UserID,
			Payload:    map[string]any{"session_id": session.ID, "mode": in.ModeCode, "question_id": question.ID},
			HappenedAt: now,
		}); err != nil {
			return err
		}

		out = StartedSession{Session: session, Question: question, Energy: energy}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// replaySession rebuilds the response for an already-started session. A
// cost-bearing session replays its energy spend through the ledger so the
// reported balance matches the first response; nothing is charged again.
func (s *Service) replaySession(ctx context.Context, existing *quiz.Session, userID int64, now time.Time) (*StartedSession, error) {
	if existing.UserID != userID {
		return nil, ErrSessionNotFound
	}
	q, err := s.selector.SelectByID(ctx, existing.ModeCode, existing.QuestionID)
	if err != nil {
		return nil, err
	}
	out := &StartedSession{Session: existing, Question: q, Replayed: true}
	if existing.EnergyCost > 0 {
		out.Energy, err = s.energy.Consume(ctx, existing.UserID, "energy:"+existing.IdempotencyKey, now)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// pickQuestion resolves the question for a new session: a forced id wins;
// otherwise the selector picks with a seed that makes the choice stable for
// retries. Daily challenge shares one seed per calendar date so every player
// faces the question of the day.
func (s *Service) pickQuestion(ctx context.Context, tx *Tx, in StartSessionInput, sessionID, localDate string) (quiz.Question, error) {
	if in.QuestionID != "" {
		return s.selector.SelectByID(ctx, in.ModeCode, in.QuestionID)
	}

	var levelHint quiz.Level
	if quiz.IsPersistentAdaptiveMode(in.ModeCode) {
		level, ok, err := tx.PreferredLevel(ctx, in.UserID, in.ModeCode)
		if err != nil {
			return quiz.Question{}, err
		}
		if !ok {
			level = ""
		}
		levelHint = quiz.ClampLevelForMode(in.ModeCode, level)
	}

	var seed string
	var exclusions []string
	switch in.Source {
	case quiz.SourceDaily:
		seed = fmt.Sprintf("daily:%s:%s", localDate, in.ModeCode)
	default:
		seed = fmt.Sprintf("menu:%s", sessionID)
		var err error
		exclusions, err = tx.RecentQuestionIDs(ctx, in.UserID, in.ModeCode, 50)
		if err != nil {
			return quiz.Question{}, err
		}
	}
	return s.selector.SelectForMode(ctx, in.ModeCode, localDate, exclusions, seed, levelHint)
}
