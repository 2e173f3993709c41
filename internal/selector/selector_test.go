package selector

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/brainduel/api/internal/database"
	"github.com/brainduel/api/internal/migrations"
	"github.com/brainduel/api/internal/quiz"
)

func testBank(t *testing.T) (*Bank, *sql.DB) {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return NewBank(db), db
}

func seedQuestions(t *testing.T, db *sql.DB, n int, level, category string) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("q-%s-%s-%03d", level, category, i)
		_, err := db.Exec(`
			INSERT INTO questions (id, mode_code, text, options, correct_option, level, category)
			VALUES (?, 'ARTIKEL_SPRINT', 'Frage?', '["der","die","das","den"]', 1, ?, ?)
		`, id, level, category)
		if err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

func TestSelectForModeDeterministic(t *testing.T) {
	bank, db := testBank(t)
	seedQuestions(t, db, 20, "A1", "articles")

	ctx := context.Background()
	first, err := bank.SelectForMode(ctx, "ARTIKEL_SPRINT", "2025-06-01", nil, "friend:d1:1:ARTIKEL_SPRINT", quiz.LevelA1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := bank.SelectForMode(ctx, "ARTIKEL_SPRINT", "2025-06-01", nil, "friend:d1:1:ARTIKEL_SPRINT", quiz.LevelA1)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if again.ID != first.ID {
			t.Fatalf("same seed picked %s then %s", first.ID, again.ID)
		}
	}

	other, err := bank.SelectForMode(ctx, "ARTIKEL_SPRINT", "2025-06-01", nil, "friend:d1:2:ARTIKEL_SPRINT", quiz.LevelA1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if other.ID == first.ID {
		t.Log("different seeds may collide on small banks, but 20 candidates should split")
	}
}

func TestSelectForModeHonorsExclusions(t *testing.T) {
	bank, db := testBank(t)
	seedQuestions(t, db, 6, "A1", "articles")

	ctx := context.Background()
	var used []string
	for round := 1; round <= 6; round++ {
		seed := fmt.Sprintf("friend:d2:%d", round)
		q, err := bank.SelectForMode(ctx, "ARTIKEL_SPRINT", "2025-06-01", used, seed, quiz.LevelA1)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		for _, id := range used {
			if id == q.ID {
				t.Fatalf("round %d repeated question %s", round, q.ID)
			}
		}
		used = append(used, q.ID)
	}
}

func TestSelectForModeLevelFallback(t *testing.T) {
	bank, db := testBank(t)
	seedQuestions(t, db, 3, "B1", "grammar")

	// No A1 questions exist; the hint must fall back rather than fail.
	q, err := bank.SelectForMode(context.Background(), "ARTIKEL_SPRINT", "2025-06-01", nil, "s", quiz.LevelA1)
	if err != nil {
		t.Fatalf("select with missing level: %v", err)
	}
	if q.Level != quiz.LevelB1 {
		t.Errorf("fallback level = %s, want B1", q.Level)
	}
}

func TestSelectForModePrefersLeastUsedCategory(t *testing.T) {
	bank, db := testBank(t)
	seedQuestions(t, db, 3, "A1", "articles")
	seedQuestions(t, db, 3, "A1", "plurals")

	used := []string{"q-A1-articles-000", "q-A1-articles-001"}
	q, err := bank.SelectForMode(context.Background(), "ARTIKEL_SPRINT", "2025-06-01", used, "seed", quiz.LevelA1)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if q.Category != "plurals" {
		t.Errorf("category = %s, want least-used plurals", q.Category)
	}
}

func TestSelectByIDMissing(t *testing.T) {
	bank, _ := testBank(t)
	if _, err := bank.SelectByID(context.Background(), "ARTIKEL_SPRINT", "nope"); err != ErrNoQuestion {
		t.Errorf("err = %v, want ErrNoQuestion", err)
	}
}

func TestStableIndexBounds(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100} {
		for _, seed := range []string{"", "a", "friend:x:1"} {
			idx := stableIndex(seed, n)
			if idx < 0 || idx >= n {
				t.Errorf("stableIndex(%q, %d) = %d out of range", seed, n, idx)
			}
		}
	}
}
