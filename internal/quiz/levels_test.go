package quiz

import "testing"

func TestNextPreferredLevel(t *testing.T) {
	tests := []struct {
		level   Level
		correct bool
		mode    string
		want    Level
	}{
		{LevelA1, true, "", LevelA2},
		{LevelA1, false, "", LevelA1},
		{LevelC2, true, "", LevelC2}, // top of the ladder stays
		{LevelB2, true, "ARTIKEL_SPRINT", LevelB2}, // clamped by mode bound
		{"a1", true, "", LevelA2},                  // normalized
		{"", true, "", ""},
		{"XX", true, "", ""},
	}
	for _, tt := range tests {
		if got := NextPreferredLevel(tt.level, tt.correct, tt.mode); got != tt.want {
			t.Errorf("NextPreferredLevel(%q, %v, %q) = %q, want %q",
				tt.level, tt.correct, tt.mode, got, tt.want)
		}
	}
}

func TestClampLevelForMode(t *testing.T) {
	if got := ClampLevelForMode("ARTIKEL_SPRINT", LevelC2); got != LevelB2 {
		t.Errorf("clamp above bound = %s, want B2", got)
	}
	if got := ClampLevelForMode("ARTIKEL_SPRINT", ""); got != LevelA1 {
		t.Errorf("clamp unknown = %s, want A1", got)
	}
	if got := ClampLevelForMode("OTHER_MODE", LevelC2); got != LevelC2 {
		t.Errorf("unbounded mode = %s, want C2", got)
	}
}

func TestSourceZeroCost(t *testing.T) {
	if SourceMenu.ZeroCost() {
		t.Error("menu sessions cost energy")
	}
	for _, s := range []Source{SourceDaily, SourceDuel, SourceTournament} {
		if !s.ZeroCost() {
			t.Errorf("%s should be zero-cost", s)
		}
	}
}
