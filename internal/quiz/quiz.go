// Package quiz defines the core session domain types. It has zero external
// dependencies — everything here is pure Go.
package quiz

import "time"

// Source identifies where a quiz session was started from.
type Source string

const (
	SourceMenu       Source = "MENU"
	SourceDaily      Source = "DAILY_CHALLENGE"
	SourceDuel       Source = "FRIEND_CHALLENGE"
	SourceTournament Source = "TOURNAMENT"
)

// ZeroCost reports whether sessions from this source skip the energy gate.
func (s Source) ZeroCost() bool {
	switch s {
	case SourceDaily, SourceDuel, SourceTournament:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a session. A session leaves
// StatusStarted at most once.
type SessionStatus string

const (
	StatusStarted   SessionStatus = "STARTED"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusAbandoned SessionStatus = "ABANDONED"
	StatusCanceled  SessionStatus = "CANCELED"
)

// Session is one question instance shown to one user.
type Session struct {
	ID             string
	UserID         int64
	ModeCode       string
	Source         Source
	Status         SessionStatus
	QuestionID     string
	EnergyCost     int
	DuelID         string // empty unless Source == SourceDuel
	DuelRound      int
	IdempotencyKey string
	LocalDate      string // YYYY-MM-DD in the service timezone
	StartedAt      time.Time
}

// Attempt is the recorded answer for a session. Append-only: an attempt is
// immutable once created.
type Attempt struct {
	ID             string
	SessionID      string
	UserID         int64
	QuestionID     string
	IsCorrect      bool
	AnsweredAt     time.Time
	IdempotencyKey string
}

// Question is a single-choice question served to a session.
type Question struct {
	ID            string
	ModeCode      string
	Text          string
	Options       []string
	CorrectOption int
	Level         Level
	Category      string
}

// StreakSnapshot is the play-streak state returned alongside answers.
type StreakSnapshot struct {
	Current int
	Best    int
}
