// Package game implements the quiz engine: session lifecycle, the duel
// state machine's orchestration, series and tournament settlement, and the
// expiry reaper. All mutations run inside exclusive store transactions; the
// pure state math lives in internal/duel and internal/quiz.
package game

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TTLs tunes the duel deadlines and the reaper.
type TTLs struct {
	// Pending is how long an unjoined invitation stays open.
	Pending time.Duration
	// Accepted is how long a joined duel may run before walkover.
	Accepted time.Duration
	// LastChance is how close to the deadline the warning fires.
	LastChance time.Duration
	// ReaperBatch bounds how many duels one reaper pass touches per phase.
	ReaperBatch int
}

// DefaultTTLs are the production deadlines.
var DefaultTTLs = TTLs{
	Pending:     24 * time.Hour,
	Accepted:    72 * time.Hour,
	LastChance:  3 * time.Hour,
	ReaperBatch: 100,
}

// Notifier delivers out-of-band nudges to players. The engine calls it
// after commit; delivery failures are logged, never propagated.
type Notifier interface {
	LastChance(userID int64, duelID string, expiresAt time.Time)
	DuelFinished(userID int64, duelID string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) LastChance(int64, string, time.Time) {}
func (NopNotifier) DuelFinished(int64, string)          {}

// Service is the engine facade the HTTP layer calls.
type Service struct {
	store    *Store
	selector QuestionSelector
	energy   EnergyGate
	access   AccessGate
	events   EventSink
	notify   Notifier
	logger   *slog.Logger
	loc      *time.Location
	ttls     TTLs

	now func() time.Time
}

func New(store *Store, sel QuestionSelector, energy EnergyGate, access AccessGate, events EventSink, logger *slog.Logger, loc *time.Location) *Service {
	return &Service{
		store:    store,
		selector: sel,
		energy:   energy,
		access:   access,
		events:   events,
		notify:   NopNotifier{},
		logger:   logger,
		loc:      loc,
		ttls:     DefaultTTLs,
		now:      time.Now,
	}
}

// WithTTLs overrides the deadline tuning.
func (s *Service) WithTTLs(ttls TTLs) *Service {
	s.ttls = ttls
	return s
}

// WithNotifier installs a push delivery channel.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

// localDate formats t as the service-timezone calendar date.
func (s *Service) localDate(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

func newID() string {
	return uuid.NewString()
}

// newInviteToken mints the shareable join token. Distinct from the duel id
// so the id can appear in logs without granting join rights.
func newInviteToken() string {
	return uuid.NewString()
}

// duelRoundSeed is the deterministic selection seed for a duel round. Both
// players derive the same seed, so both see the same question.
func duelRoundSeed(duelID string, round int, modeCode string) string {
	return fmt.Sprintf("friend:%s:%d:%s", duelID, round, modeCode)
}
