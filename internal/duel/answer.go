package duel

import "time"

// AnswerOutcome describes what an applied answer changed.
type AnswerOutcome struct {
	// RoundCompleted is true once both players have answered the round the
	// answer belongs to (or the duel completed with this answer).
	RoundCompleted bool
	// WaitingForOpponent is true when the duel stays playable and the other
	// side has not reached this round yet.
	WaitingForOpponent bool
	// CompletedNow is true when this answer was the duel's final transition
	// to COMPLETED. Winner computation happens exactly once, on that edge.
	CompletedNow bool
}

// ApplyAnswer records one player's answer for the given round: it advances
// only that player's answered-round counter, adds to their score when
// correct, recomputes currentRound, and performs the DONE/COMPLETED
// transitions. Replayed rounds (counter already past the round) change
// nothing — idempotent by construction. The caller must hold the duel's
// exclusive lock and have applied ExpireIfDue first.
func (d *Duel) ApplyAnswer(userID int64, round int, isCorrect bool, now time.Time) AnswerOutcome {
	var out AnswerOutcome
	if !d.Status.IsPlayable() {
		d.UpdatedAt = now
		return out
	}

	isCreator := userID == d.CreatorUserID
	if isCreator {
		if d.CreatorAnsweredRound < round {
			if isCorrect {
				d.CreatorScore++
			}
			d.CreatorAnsweredRound = round
		}
	} else {
		if d.OpponentAnsweredRound < round {
			if isCorrect {
				d.OpponentScore++
			}
			d.OpponentAnsweredRound = round
		}
	}

	if d.HasOpponent() && d.CreatorAnsweredRound >= round && d.OpponentAnsweredRound >= round {
		out.RoundCompleted = true
	}

	maxAnswered := d.CreatorAnsweredRound
	if d.OpponentAnsweredRound > maxAnswered {
		maxAnswered = d.OpponentAnsweredRound
	}
	d.CurrentRound = min(d.TotalRounds, maxAnswered+1)

	if d.CreatorAnsweredRound >= d.TotalRounds && d.CreatorFinishedAt == nil {
		t := now
		d.CreatorFinishedAt = &t
	}
	if d.OpponentAnsweredRound >= d.TotalRounds && d.OpponentFinishedAt == nil {
		t := now
		d.OpponentFinishedAt = &t
	}

	switch {
	case d.CreatorFinishedAt != nil && d.OpponentFinishedAt != nil:
		out.RoundCompleted = true
		out.CompletedNow = true
		d.CurrentRound = d.TotalRounds
		d.Status = StatusCompleted
		t := now
		d.CompletedAt = &t
		switch {
		case d.CreatorScore > d.OpponentScore:
			d.WinnerUserID = d.CreatorUserID
		case d.OpponentScore > d.CreatorScore && d.HasOpponent():
			d.WinnerUserID = d.OpponentUserID
		default:
			d.WinnerUserID = 0
		}
	case d.CreatorFinishedAt != nil:
		d.Status = StatusCreatorDone
	case d.OpponentFinishedAt != nil:
		d.Status = StatusOpponentDone
	default:
		d.Status = StatusAccepted
	}

	if d.Status.IsPlayable() {
		other := d.OpponentAnsweredRound
		if !isCreator {
			other = d.CreatorAnsweredRound
		}
		out.WaitingForOpponent = !d.HasOpponent() || other < round
	}

	d.UpdatedAt = now
	return out
}
