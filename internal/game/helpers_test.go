package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/brainduel/api/internal/database"
	"github.com/brainduel/api/internal/migrations"
	"github.com/brainduel/api/internal/selector"
)

const testMode = "MIXED"

// testClock is a controllable time source shared by a test's service.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *testClock) Set(t time.Time)         { c.now = t }

// recordSink keeps emitted events in memory alongside the outbox write.
type recordSink struct {
	events []Event
}

func (r *recordSink) Emit(ctx context.Context, tx Execer, e Event) error {
	r.events = append(r.events, e)
	return OutboxSink{}.Emit(ctx, tx, e)
}

func (r *recordSink) typesSeen() []string {
	var types []string
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	db    *sql.DB
	store *Store
	svc   *Service
	clock *testClock
	sink  *recordSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	// A file-backed database: the engine's transactions and the question
	// bank's reads use separate pooled connections, which an in-memory
	// database would not share.
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sink := &recordSink{}
	store := NewStore(db)
	bank := selector.NewBank(db)
	energy := NewSQLiteEnergyGate(store, time.UTC)
	access := NewSQLiteAccessGate(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := New(store, bank, energy, access, sink, logger, time.UTC)
	svc.now = clock.Now

	return &testEnv{db: db, store: store, svc: svc, clock: clock, sink: sink}
}

func (e *testEnv) seedUser(t *testing.T, id int64, paidEnergy int) {
	t.Helper()
	_, err := e.db.Exec(`
		INSERT INTO users (id, display_name, api_token, paid_energy)
		VALUES (?, ?, ?, ?)
	`, id, fmt.Sprintf("user-%d", id), fmt.Sprintf("token-%d", id), paidEnergy)
	if err != nil {
		t.Fatalf("seeding user %d: %v", id, err)
	}
}

func (e *testEnv) seedPremiumUser(t *testing.T, id int64) {
	t.Helper()
	e.seedUser(t, id, 0)
	until := e.clock.Now().Add(365 * 24 * time.Hour)
	_, err := e.db.Exec(`UPDATE users SET premium_until = ? WHERE id = ?`, fmtTime(until), id)
	if err != nil {
		t.Fatalf("granting premium: %v", err)
	}
}

// seedQuestions inserts n questions into the bank, cycling levels A1/A2/B1
// and categories, all with correct option 0.
func (e *testEnv) seedQuestions(t *testing.T, n int) {
	t.Helper()
	levels := []string{"A1", "A2", "B1"}
	categories := []string{"grammar", "vocab"}
	options, _ := json.Marshal([]string{"right", "wrong", "also wrong"})
	for i := 0; i < n; i++ {
		_, err := e.db.Exec(`
			INSERT INTO questions (id, mode_code, text, options, correct_option, level, category)
			VALUES (?, ?, ?, ?, 0, ?, ?)
		`, fmt.Sprintf("q-%03d", i), testMode, fmt.Sprintf("question %d", i),
			string(options), levels[i%len(levels)], categories[i%len(categories)])
		if err != nil {
			t.Fatalf("seeding question %d: %v", i, err)
		}
	}
}

func (e *testEnv) grantTickets(t *testing.T, userID int64, n int) {
	t.Helper()
	_, err := e.db.Exec(`
		INSERT INTO purchases (id, user_id, product_code, credited)
		VALUES (?, ?, 'FRIEND_CHALLENGE_5', ?)
	`, fmt.Sprintf("purchase-%d-%d", userID, n), userID, n)
	if err != nil {
		t.Fatalf("granting tickets: %v", err)
	}
}

// playRound opens the caller's next duel round and answers it. Returns the
// round result; correct answers pick the winning option, wrong ones do not.
func (e *testEnv) playRound(t *testing.T, userID int64, duelID string, correct bool) *AnswerResult {
	t.Helper()
	ctx := context.Background()

	start, err := e.svc.StartDuelRound(ctx, userID, duelID)
	if err != nil {
		t.Fatalf("starting round for user %d: %v", userID, err)
	}
	if start.Waiting {
		t.Fatalf("unexpected waiting state for user %d in duel %s", userID, duelID)
	}

	option := start.Question.CorrectOption
	if !correct {
		option = start.Question.CorrectOption + 1
	}
	result, err := e.svc.SubmitAnswer(ctx, SubmitAnswerInput{
		UserID:      userID,
		SessionID:   start.Session.ID,
		OptionIndex: option,
	})
	if err != nil {
		t.Fatalf("submitting answer for user %d round %d: %v", userID, start.Round, err)
	}
	return result
}
