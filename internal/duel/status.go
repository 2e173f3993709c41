package duel

// Status is the duel lifecycle state. Transitions are monotonic: once a duel
// reaches a terminal status it never leaves it (CANCELED from EXPIRED is the
// one sanctioned exception, and both are terminal).
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusAccepted     Status = "ACCEPTED"
	StatusCreatorDone  Status = "CREATOR_DONE"
	StatusOpponentDone Status = "OPPONENT_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusExpired      Status = "EXPIRED"
	StatusCanceled     Status = "CANCELED"
	StatusWalkover     Status = "WALKOVER"

	// statusLegacyActive is the unlabeled pre-v2 status still present on
	// historical rows. It never enters the transition table: NormalizeStatus
	// maps it away at load time.
	statusLegacyActive Status = "ACTIVE"
)

// NormalizeStatus is the migration-compatibility adapter for legacy rows:
// the old ACTIVE status resolves to ACCEPTED or PENDING depending on whether
// an opponent had joined. Canonical statuses pass through unchanged.
func NormalizeStatus(status Status, hasOpponent bool) Status {
	if status != statusLegacyActive {
		return status
	}
	if hasOpponent {
		return StatusAccepted
	}
	return StatusPending
}

// IsActive reports whether the duel can still change through play or decay.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCreatorDone, StatusOpponentDone, statusLegacyActive:
		return true
	}
	return false
}

// IsPlayable reports whether answers may still be recorded.
func (s Status) IsPlayable() bool {
	switch s {
	case StatusAccepted, StatusCreatorDone, StatusOpponentDone, statusLegacyActive:
		return true
	}
	return false
}

// IsTerminal reports whether the duel has reached one of the immutable end
// states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusExpired, StatusCanceled, StatusWalkover:
		return true
	}
	return false
}
