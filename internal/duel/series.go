package duel

// SeriesScore is the derived state of a best-of-N series. A series has no
// storage row of its own: it is computed by aggregating the duels that share
// a series id.
type SeriesScore struct {
	CreatorWins   int
	OpponentWins  int
	MaxGameNumber int
	BestOf        int
}

// CountSeriesWins tallies terminal-state wins per player across the games of
// one series. creatorUserID/opponentUserID are the pairing of the reference
// game; later games may swap creator and opponent roles, so wins are counted
// by winner id, not by row column.
func CountSeriesWins(games []*Duel, creatorUserID, opponentUserID int64) (creatorWins, opponentWins int) {
	for _, g := range games {
		if !g.Status.IsTerminal() || g.WinnerUserID == 0 {
			continue
		}
		switch g.WinnerUserID {
		case creatorUserID:
			creatorWins++
		case opponentUserID:
			opponentWins++
		}
	}
	return creatorWins, opponentWins
}

// WinsNeeded is the win count that decides a best-of-N series.
func WinsNeeded(bestOf int) int {
	if bestOf < 1 {
		bestOf = 1
	}
	return bestOf/2 + 1
}

// Decided reports whether the series can accept no further games: either a
// player has the wins needed or every game has been played.
func (s SeriesScore) Decided() bool {
	needed := WinsNeeded(s.BestOf)
	if s.CreatorWins >= needed || s.OpponentWins >= needed {
		return true
	}
	return s.MaxGameNumber >= s.BestOf
}
