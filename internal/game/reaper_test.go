package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brainduel/api/internal/duel"
)

// captureNotifier records notifications instead of delivering them.
type captureNotifier struct {
	mu         sync.Mutex
	lastChance map[int64]int
	finished   map[int64]int
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{lastChance: map[int64]int{}, finished: map[int64]int{}}
}

func (n *captureNotifier) LastChance(userID int64, duelID string, expiresAt time.Time) {
	n.mu.Lock()
	n.lastChance[userID]++
	n.mu.Unlock()
}

func (n *captureNotifier) DuelFinished(userID int64, duelID string) {
	n.mu.Lock()
	n.finished[userID]++
	n.mu.Unlock()
}

func TestReaperExpiresPendingDuel(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	ctx := context.Background()

	d, err := env.svc.CreateDuel(ctx, CreateDuelInput{CreatorID: 1, ModeCode: testMode, TotalRounds: 5})
	if err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(DefaultTTLs.Pending + time.Minute)
	stats, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Expired != 1 {
		t.Fatalf("expired %d, want 1", stats.Expired)
	}

	snap, err := env.store.DuelSnapshotByID(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != duel.StatusExpired {
		t.Fatalf("status %s, want EXPIRED", snap.Status)
	}
	if snap.WinnerUserID != 0 {
		t.Fatalf("pending expiry produced winner %d", snap.WinnerUserID)
	}
}

func TestReaperWalkoverFinishedSideWins(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 10)
	notifier := newCaptureNotifier()
	env.svc.WithNotifier(notifier)
	ctx := context.Background()

	d := createJoinedDuel(t, env, 1, 2, 5)

	// Creator finishes all rounds, opponent plays only two.
	for round := 0; round < 5; round++ {
		env.playRound(t, 1, d.ID, true)
	}
	env.playRound(t, 2, d.ID, true)
	env.playRound(t, 2, d.ID, true)

	env.clock.Advance(DefaultTTLs.Accepted + time.Minute)
	stats, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Expired != 1 {
		t.Fatalf("expired %d, want 1", stats.Expired)
	}

	snap, err := env.store.DuelSnapshotByID(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != duel.StatusWalkover {
		t.Fatalf("status %s, want WALKOVER", snap.Status)
	}
	if snap.WinnerUserID != 1 {
		t.Fatalf("winner %d, want creator", snap.WinnerUserID)
	}
	if snap.OpponentScore != 0 {
		t.Fatalf("unfinished side kept score %d, want 0", snap.OpponentScore)
	}
	if snap.CreatorScore != 5 {
		t.Fatalf("finished side score %d, want 5", snap.CreatorScore)
	}
	if notifier.finished[1] == 0 || notifier.finished[2] == 0 {
		t.Fatal("both players should be notified of the walkover")
	}
}

func TestReaperWalkoverBothUnfinishedIsScorelessDraw(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 10)
	ctx := context.Background()

	d := createJoinedDuel(t, env, 1, 2, 5)

	// 2:2 after two rounds each, then both walk away.
	for round := 0; round < 2; round++ {
		env.playRound(t, 1, d.ID, true)
		env.playRound(t, 2, d.ID, true)
	}

	env.clock.Advance(DefaultTTLs.Accepted + time.Minute)
	if _, err := env.svc.ReapOnce(ctx); err != nil {
		t.Fatal(err)
	}

	snap, err := env.store.DuelSnapshotByID(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != duel.StatusWalkover {
		t.Fatalf("status %s, want WALKOVER", snap.Status)
	}
	if snap.WinnerUserID != 0 {
		t.Fatalf("double forfeit produced winner %d", snap.WinnerUserID)
	}
	if snap.CreatorScore != 0 || snap.OpponentScore != 0 {
		t.Fatalf("scores %d:%d, want 0:0 (no credit for incomplete play)", snap.CreatorScore, snap.OpponentScore)
	}
}

func TestReaperIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	ctx := context.Background()

	if _, err := env.svc.CreateDuel(ctx, CreateDuelInput{CreatorID: 1, ModeCode: testMode, TotalRounds: 5}); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(DefaultTTLs.Pending + time.Minute)
	first, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Expired != 1 {
		t.Fatalf("first pass expired %d, want 1", first.Expired)
	}

	second, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Expired != 0 || second.Warned != 0 {
		t.Fatalf("second pass did work: %+v", second)
	}
}

func TestReaperLastChanceWarnsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 10)
	notifier := newCaptureNotifier()
	env.svc.WithNotifier(notifier)
	ctx := context.Background()

	d := createJoinedDuel(t, env, 1, 2, 5)

	// Creator already finished; only the opponent should be nudged.
	for round := 0; round < 5; round++ {
		env.playRound(t, 1, d.ID, true)
	}

	env.clock.Advance(DefaultTTLs.Accepted - DefaultTTLs.LastChance + time.Minute)
	stats, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Warned != 1 {
		t.Fatalf("warned %d duels, want 1", stats.Warned)
	}
	if notifier.lastChance[2] != 1 {
		t.Fatalf("opponent warnings %d, want 1", notifier.lastChance[2])
	}
	if notifier.lastChance[1] != 0 {
		t.Fatalf("finished creator was warned %d times", notifier.lastChance[1])
	}

	// A second sweep inside the window stays quiet.
	stats, err = env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Warned != 0 {
		t.Fatalf("second sweep warned %d, want 0", stats.Warned)
	}
	if notifier.lastChance[2] != 1 {
		t.Fatalf("opponent warned again: %d", notifier.lastChance[2])
	}
}

func TestReaperLastChanceSkipsDuelsNobodyFinished(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 10)
	notifier := newCaptureNotifier()
	env.svc.WithNotifier(notifier)
	ctx := context.Background()

	// Joined but neither side finished: no reminder, even inside the window.
	d := createJoinedDuel(t, env, 1, 2, 5)
	env.playRound(t, 1, d.ID, true)

	env.clock.Advance(DefaultTTLs.Accepted - DefaultTTLs.LastChance + time.Minute)
	stats, err := env.svc.ReapOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Warned != 0 {
		t.Fatalf("warned %d duels, want 0", stats.Warned)
	}
	if len(notifier.lastChance) != 0 {
		t.Fatalf("unexpected reminders: %v", notifier.lastChance)
	}
}

func TestAnswerOnOverdueDuelExpiresIt(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, 1, 0)
	env.seedUser(t, 2, 0)
	env.seedQuestions(t, 10)
	ctx := context.Background()

	d := createJoinedDuel(t, env, 1, 2, 5)

	start, err := env.svc.StartDuelRound(ctx, 1, d.ID)
	if err != nil {
		t.Fatal(err)
	}

	// The deadline passes while the question is on screen.
	env.clock.Advance(DefaultTTLs.Accepted + time.Minute)
	result, err := env.svc.SubmitAnswer(ctx, SubmitAnswerInput{
		UserID: 1, SessionID: start.Session.ID, OptionIndex: start.Question.CorrectOption,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Duel.Snapshot.Status != duel.StatusWalkover {
		t.Fatalf("status %s, want WALKOVER", result.Duel.Snapshot.Status)
	}
	// The late answer does not count toward the duel.
	if result.Duel.Snapshot.CreatorScore != 0 {
		t.Fatalf("late answer scored: %d", result.Duel.Snapshot.CreatorScore)
	}

	if _, err := env.svc.StartDuelRound(ctx, 1, d.ID); !errors.Is(err, ErrDuelAlreadyDone) && !errors.Is(err, ErrDuelExpired) {
		t.Fatalf("round on closed duel: got %v", err)
	}
}
