package duel

import "testing"

func terminalGame(winner int64) *Duel {
	return &Duel{Status: StatusCompleted, WinnerUserID: winner}
}

func TestCountSeriesWins(t *testing.T) {
	games := []*Duel{
		terminalGame(1),
		terminalGame(2),
		terminalGame(0),                              // draw: no win for anyone
		{Status: StatusAccepted, WinnerUserID: 1},    // not terminal, ignored
		{Status: StatusWalkover, WinnerUserID: 2},    // walkover win counts
	}
	creator, opponent := CountSeriesWins(games, 1, 2)
	if creator != 1 || opponent != 2 {
		t.Errorf("wins = %d/%d, want 1/2", creator, opponent)
	}
}

func TestWinsNeeded(t *testing.T) {
	tests := []struct{ bestOf, want int }{{1, 1}, {3, 2}, {5, 3}, {0, 1}}
	for _, tt := range tests {
		if got := WinsNeeded(tt.bestOf); got != tt.want {
			t.Errorf("WinsNeeded(%d) = %d, want %d", tt.bestOf, got, tt.want)
		}
	}
}

func TestSeriesDecided(t *testing.T) {
	tests := []struct {
		name  string
		score SeriesScore
		want  bool
	}{
		{"one-one in best of three", SeriesScore{CreatorWins: 1, OpponentWins: 1, MaxGameNumber: 2, BestOf: 3}, false},
		{"two wins in best of three", SeriesScore{CreatorWins: 2, OpponentWins: 0, MaxGameNumber: 2, BestOf: 3}, true},
		{"all games played", SeriesScore{CreatorWins: 1, OpponentWins: 1, MaxGameNumber: 3, BestOf: 3}, true},
		{"fresh series", SeriesScore{MaxGameNumber: 1, BestOf: 3}, false},
	}
	for _, tt := range tests {
		if got := tt.score.Decided(); got != tt.want {
			t.Errorf("%s: Decided() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLevelForRound(t *testing.T) {
	if got := LevelForRound(1); got != "A1" {
		t.Errorf("round 1 level = %s, want A1", got)
	}
	if got := LevelForRound(10); got != "B1" {
		t.Errorf("round 10 level = %s, want B1", got)
	}
	if got := LevelForRound(40); got != "B1" {
		t.Errorf("past-plan round level = %s, want B1", got)
	}
	if got := LevelForRound(0); got != "" {
		t.Errorf("round 0 level = %q, want empty", got)
	}
}
