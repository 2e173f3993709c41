package game

import (
	"context"
	"time"

	"github.com/brainduel/api/internal/quiz"
)

// EnergyResult reports the outcome of an energy spend.
type EnergyResult struct {
	Allowed       bool
	RemainingFree int
	RemainingPaid int
}

// EnergyGate charges a user one energy for a cost-bearing session start.
// Consume is idempotent per key: replaying a key returns the original
// outcome without spending again.
type EnergyGate interface {
	Consume(ctx context.Context, userID int64, idempotencyKey string, now time.Time) (EnergyResult, error)
}

// AccessGate answers entitlement questions: premium state, per-mode unlock,
// and how many duel tickets a user has been credited.
type AccessGate interface {
	PremiumActive(ctx context.Context, userID int64, now time.Time) (bool, error)
	HasModeAccess(ctx context.Context, userID int64, modeCode string, now time.Time) (bool, error)
	CreditedTickets(ctx context.Context, userID int64, productCode string) (int, error)
}

// QuestionSelector serves questions from the bank. SelectForMode must be
// deterministic in (bank state, seed, exclusions, level hint).
type QuestionSelector interface {
	SelectForMode(ctx context.Context, modeCode, dateKey string, exclusions []string, seed string, levelHint quiz.Level) (quiz.Question, error)
	SelectByID(ctx context.Context, modeCode, questionID string) (quiz.Question, error)
}
