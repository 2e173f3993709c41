package duel

import "time"

// ExpireIfDue transitions a duel whose deadline has passed into its terminal
// state and reports whether a transition happened. PENDING duels expire with
// nothing to score. Joined duels resolve as a walkover: a side that finished
// all rounds beats a side that did not (the unfinished side's partial score
// is discarded); when neither side finished, both scores are discarded and
// the walkover is a draw. Already-terminal duels and duels still inside
// their deadline are untouched.
func (d *Duel) ExpireIfDue(now time.Time) bool {
	d.Status = NormalizeStatus(d.Status, d.HasOpponent())
	if !d.Status.IsActive() {
		return false
	}
	if d.ExpiresAt.After(now) {
		return false
	}

	if d.Status == StatusPending {
		d.Status = StatusExpired
		d.WinnerUserID = 0
		d.markClosed(now)
		return true
	}

	creatorDone := d.CreatorFinishedAt != nil || d.CreatorAnsweredRound >= d.TotalRounds
	opponentDone := d.OpponentFinishedAt != nil || d.OpponentAnsweredRound >= d.TotalRounds
	switch {
	case creatorDone && !opponentDone:
		d.WinnerUserID = d.CreatorUserID
		d.OpponentScore = 0
	case opponentDone && !creatorDone:
		d.WinnerUserID = d.OpponentUserID
		d.CreatorScore = 0
	default:
		// No credit for incomplete play on either side.
		d.WinnerUserID = 0
		d.CreatorScore = 0
		d.OpponentScore = 0
	}
	d.Status = StatusWalkover
	d.markClosed(now)
	return true
}

func (d *Duel) markClosed(now time.Time) {
	t := now
	d.CompletedAt = &t
	d.UpdatedAt = now
}
