package game

import "errors"

// The closed set of recoverable, user-facing failures. Callers dispatch with
// errors.Is; the HTTP layer maps each to a status code. Anything outside
// this set is an internal fault that rolled the operation back.
var (
	ErrDuelNotFound        = errors.New("duel not found")
	ErrDuelAccessDenied    = errors.New("not a participant of this duel")
	ErrDuelFull            = errors.New("duel already has two players")
	ErrDuelAlreadyDone     = errors.New("duel already finished")
	ErrDuelExpired         = errors.New("duel expired")
	ErrDuelPaymentRequired = errors.New("duel creation quota exhausted")
	ErrSeriesDecided       = errors.New("series already decided")
	ErrSeriesGameRunning   = errors.New("series game still in progress")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidAnswerOption = errors.New("answer option out of range")
	ErrEnergyInsufficient  = errors.New("not enough energy")
	ErrModeLocked          = errors.New("mode not unlocked")
	ErrDailyAlreadyPlayed  = errors.New("daily challenge already played today")
	ErrUserNotFound        = errors.New("user not found")
)
