// Package duel holds the pure two-player challenge domain: the status
// machine, expiry/walkover computation, per-round score accounting, series
// bookkeeping, and the round difficulty plan. It has zero external
// dependencies — everything here is pure Go.
package duel

import (
	"fmt"
	"time"
)

// Type distinguishes invitations. A DIRECT duel has one fixed opponent; an
// OPEN duel accepts the first joiner and then behaves as direct.
type Type string

const (
	TypeDirect Type = "DIRECT"
	TypeOpen   Type = "OPEN"
)

// AccessType records which entitlement paid for the duel's creation.
type AccessType string

const (
	AccessFree       AccessType = "FREE"
	AccessPaidTicket AccessType = "PAID_TICKET"
	AccessPremium    AccessType = "PREMIUM"
)

const (
	// DefaultRounds is the standard duel format.
	DefaultRounds = 12
	// FreeCreates is how many duels a non-premium user may create for free.
	FreeCreates = 2
	// TicketProductCode is the purchase product that credits duel tickets.
	TicketProductCode = "FRIEND_CHALLENGE_5"
)

// formatRounds is the closed set of supported duel formats.
var formatRounds = map[int]bool{5: true, 12: true}

// ResolveRounds validates a requested format against the supported set.
func ResolveRounds(totalRounds int) (int, error) {
	if !formatRounds[totalRounds] {
		return 0, fmt.Errorf("unsupported duel format %d", totalRounds)
	}
	return totalRounds, nil
}

// Duel is the two-player challenge aggregate. The row is the unit of locking
// and mutation; every mutating operation loads it inside an exclusive
// transaction and writes it back before committing.
type Duel struct {
	ID          string
	InviteToken string
	Type        Type
	ModeCode    string
	Access      AccessType
	Status      Status

	CreatorUserID  int64
	OpponentUserID int64 // 0 until an opponent joins

	CurrentRound          int
	TotalRounds           int
	CreatorAnsweredRound  int
	OpponentAnsweredRound int
	CreatorScore          int
	OpponentScore         int
	CreatorFinishedAt     *time.Time
	OpponentFinishedAt    *time.Time
	CreatorPushCount      int
	OpponentPushCount     int
	WinnerUserID          int64 // 0 means no winner (undecided or draw)

	// QuestionIDs is the optional pre-selected question plan, one id per
	// round. Tournament duels are created with a full plan; standalone duels
	// pin questions lazily as rounds are started.
	QuestionIDs []string

	SeriesID         string
	SeriesGameNumber int
	SeriesBestOf     int

	TournamentMatchID string

	ExpiresAt             time.Time
	LastChanceNotifiedAt  *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// HasOpponent reports whether the opponent slot is filled.
func (d *Duel) HasOpponent() bool { return d.OpponentUserID != 0 }

// IsParticipant reports whether userID plays in this duel.
func (d *Duel) IsParticipant(userID int64) bool {
	return userID == d.CreatorUserID || (d.HasOpponent() && userID == d.OpponentUserID)
}

// OpponentOf returns the other participant's id, or 0 when the slot is open.
func (d *Duel) OpponentOf(userID int64) int64 {
	if userID == d.CreatorUserID {
		return d.OpponentUserID
	}
	return d.CreatorUserID
}

// AnsweredRound returns the given participant's answered-round counter.
func (d *Duel) AnsweredRound(userID int64) int {
	if userID == d.CreatorUserID {
		return d.CreatorAnsweredRound
	}
	return d.OpponentAnsweredRound
}

// Snapshot is the read-only view of a duel exposed to callers.
type Snapshot struct {
	ID               string     `json:"id"`
	InviteToken      string     `json:"inviteToken"`
	Type             Type       `json:"type"`
	ModeCode         string     `json:"modeCode"`
	Access           AccessType `json:"accessType"`
	Status           Status     `json:"status"`
	CreatorUserID    int64      `json:"creatorUserId"`
	OpponentUserID   int64      `json:"opponentUserId,omitempty"`
	CurrentRound     int        `json:"currentRound"`
	TotalRounds      int        `json:"totalRounds"`
	CreatorScore     int        `json:"creatorScore"`
	OpponentScore    int        `json:"opponentScore"`
	WinnerUserID     int64      `json:"winnerUserId,omitempty"`
	SeriesID         string     `json:"seriesId,omitempty"`
	SeriesGameNumber int        `json:"seriesGameNumber"`
	SeriesBestOf     int        `json:"seriesBestOf"`
	ExpiresAt        time.Time  `json:"expiresAt"`
}

// TakeSnapshot builds the caller-facing view of the duel.
func (d *Duel) TakeSnapshot() Snapshot {
	return Snapshot{
		ID:               d.ID,
		InviteToken:      d.InviteToken,
		Type:             d.Type,
		ModeCode:         d.ModeCode,
		Access:           d.Access,
		Status:           d.Status,
		CreatorUserID:    d.CreatorUserID,
		OpponentUserID:   d.OpponentUserID,
		CurrentRound:     d.CurrentRound,
		TotalRounds:      d.TotalRounds,
		CreatorScore:     d.CreatorScore,
		OpponentScore:    d.OpponentScore,
		WinnerUserID:     d.WinnerUserID,
		SeriesID:         d.SeriesID,
		SeriesGameNumber: d.SeriesGameNumber,
		SeriesBestOf:     d.SeriesBestOf,
		ExpiresAt:        d.ExpiresAt,
	}
}
