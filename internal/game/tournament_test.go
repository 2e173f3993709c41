package game

import (
	"context"
	"testing"
	"time"

	"github.com/brainduel/api/internal/duel"
)

func seedMatch(t *testing.T, env *testEnv, matchID string, userA, userB int64, deadline time.Time) {
	t.Helper()
	_, err := env.db.Exec(`
		INSERT INTO tournament_matches (id, tournament_id, round_number, user_a, user_b, deadline)
		VALUES (?, 'tour-1', 1, ?, ?, ?)
	`, matchID, userA, userB, fmtTime(deadline))
	if err != nil {
		t.Fatalf("seeding match: %v", err)
	}
}

func participantScore(t *testing.T, env *testEnv, userID int64) (score, tieBreak float64) {
	t.Helper()
	err := env.db.QueryRow(`
		SELECT score, tie_break_score FROM tournament_participants
		WHERE tournament_id = 'tour-1' AND user_id = ?
	`, userID).Scan(&score, &tieBreak)
	if err != nil {
		t.Fatalf("loading participant %d: %v", userID, err)
	}
	return score, tieBreak
}

func TestMatchDuelPlanAndDeadline(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 12)
	ctx := context.Background()

	// Match deadline closer than the standard duel TTL.
	deadline := env.clock.Now().Add(6 * time.Hour)
	seedMatch(t, env, "m-1", 1, 2, deadline)

	d, err := env.svc.CreateMatchDuel(ctx, "m-1", 5)
	if err != nil {
		t.Fatalf("creating match duel: %v", err)
	}
	if d.Status != duel.StatusAccepted {
		t.Fatalf("status %s, want ACCEPTED", d.Status)
	}
	if len(d.QuestionIDs) != 5 {
		t.Fatalf("plan has %d questions, want 5", len(d.QuestionIDs))
	}
	if !d.ExpiresAt.Equal(deadline) {
		t.Fatalf("expiry %v not clamped to match deadline %v", d.ExpiresAt, deadline)
	}

	// Creating again returns the existing duel.
	again, err := env.svc.CreateMatchDuel(ctx, "m-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != d.ID {
		t.Fatalf("second create made a new duel %s, want %s", again.ID, d.ID)
	}

	// Rounds follow the plan in order for both players.
	startA, err := env.svc.StartDuelRound(ctx, 1, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if startA.Question.ID != d.QuestionIDs[0] {
		t.Fatalf("round 1 question %s, want plan entry %s", startA.Question.ID, d.QuestionIDs[0])
	}
}

func TestMatchSettlementOnCompletion(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 12)
	ctx := context.Background()

	seedMatch(t, env, "m-1", 1, 2, env.clock.Now().Add(48*time.Hour))
	d, err := env.svc.CreateMatchDuel(ctx, "m-1", 5)
	if err != nil {
		t.Fatal(err)
	}

	playOutDuel(t, env, d, 4, 1)

	var status string
	var winner int64
	if err := env.db.QueryRow(`SELECT status, winner_id FROM tournament_matches WHERE id = 'm-1'`).Scan(&status, &winner); err != nil {
		t.Fatal(err)
	}
	if status != "COMPLETED" {
		t.Fatalf("match status %s, want COMPLETED", status)
	}
	if winner != 1 {
		t.Fatalf("match winner %d, want 1", winner)
	}

	score, tieBreak := participantScore(t, env, 1)
	if score != 1 || tieBreak != 4 {
		t.Fatalf("winner standing %v/%v, want 1/4", score, tieBreak)
	}
	score, tieBreak = participantScore(t, env, 2)
	if score != 0 || tieBreak != 1 {
		t.Fatalf("loser standing %v/%v, want 0/1", score, tieBreak)
	}
}

func TestMatchSettlementDrawSplitsPoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 12)
	ctx := context.Background()

	seedMatch(t, env, "m-1", 1, 2, env.clock.Now().Add(48*time.Hour))
	d, err := env.svc.CreateMatchDuel(ctx, "m-1", 5)
	if err != nil {
		t.Fatal(err)
	}

	playOutDuel(t, env, d, 3, 3)

	score1, _ := participantScore(t, env, 1)
	score2, _ := participantScore(t, env, 2)
	if score1 != 0.5 || score2 != 0.5 {
		t.Fatalf("draw standings %v/%v, want 0.5 each", score1, score2)
	}
}

func TestMatchSettlementViaReaperWalkover(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 12)
	ctx := context.Background()

	seedMatch(t, env, "m-1", 1, 2, env.clock.Now().Add(6*time.Hour))
	d, err := env.svc.CreateMatchDuel(ctx, "m-1", 5)
	if err != nil {
		t.Fatal(err)
	}

	// Only player 1 finishes before the match deadline.
	for round := 0; round < 5; round++ {
		env.playRound(t, 1, d.ID, true)
	}

	env.clock.Advance(7 * time.Hour)
	if _, err := env.svc.ReapOnce(ctx); err != nil {
		t.Fatal(err)
	}

	var status string
	var winner int64
	if err := env.db.QueryRow(`SELECT status, winner_id FROM tournament_matches WHERE id = 'm-1'`).Scan(&status, &winner); err != nil {
		t.Fatal(err)
	}
	if status != "WALKOVER" {
		t.Fatalf("match status %s, want WALKOVER", status)
	}
	if winner != 1 {
		t.Fatalf("match winner %d, want 1", winner)
	}

	// Settlement happened exactly once: the finished side holds one win.
	score, _ := participantScore(t, env, 1)
	if score != 1 {
		t.Fatalf("winner score %v, want 1", score)
	}
}
