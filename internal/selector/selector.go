// Package selector picks questions from the bank. Selection is seeded and
// deterministic: the same seed, exclusion set, and bank state always yield
// the same question, which is what lets two duel players replay a selection
// and land on the identical prompt.
package selector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/brainduel/api/internal/quiz"
)

var ErrNoQuestion = errors.New("no question available")

type Bank struct {
	db *sql.DB
}

func NewBank(db *sql.DB) *Bank {
	return &Bank{db: db}
}

// SelectByID loads one question by exact id within a mode.
func (b *Bank) SelectByID(ctx context.Context, modeCode, questionID string) (quiz.Question, error) {
	var q quiz.Question
	var optionsJSON string
	var level sql.NullString
	err := b.db.QueryRowContext(ctx, `
		SELECT id, mode_code, text, options, correct_option, COALESCE(level, ''), category
		FROM questions
		WHERE id = ? AND mode_code = ? AND active = 1
	`, questionID, modeCode).Scan(&q.ID, &q.ModeCode, &q.Text, &optionsJSON, &q.CorrectOption, &level, &q.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrNoQuestion
	}
	if err != nil {
		return q, fmt.Errorf("loading question %s: %w", questionID, err)
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return q, fmt.Errorf("decoding options for %s: %w", questionID, err)
	}
	q.Level = quiz.Level(level.String)
	return q, nil
}

// SelectForMode picks a question for a mode, preferring the hinted level and
// avoiding the excluded ids. The fallback ladder relaxes exclusions first,
// then the level hint, so a sparse bank still serves something. Among the
// final candidates the question whose category is least used by the
// exclusion set wins, with a seed-stable index breaking ties.
func (b *Bank) SelectForMode(ctx context.Context, modeCode, dateKey string, exclusions []string, seed string, levelHint quiz.Level) (quiz.Question, error) {
	attempts := []struct {
		exclude []string
		level   quiz.Level
	}{
		{exclusions, levelHint},
		{nil, levelHint},
		{exclusions, ""},
		{nil, ""},
	}

	for _, a := range attempts {
		ids, err := b.candidateIDs(ctx, modeCode, a.exclude, a.level)
		if err != nil {
			return quiz.Question{}, err
		}
		if len(ids) == 0 {
			continue
		}
		id, err := b.pickLeastUsedCategory(ctx, ids, exclusions, seed)
		if err != nil {
			return quiz.Question{}, err
		}
		return b.SelectByID(ctx, modeCode, id)
	}
	return quiz.Question{}, ErrNoQuestion
}

func (b *Bank) candidateIDs(ctx context.Context, modeCode string, exclude []string, level quiz.Level) ([]string, error) {
	query := `SELECT id FROM questions WHERE mode_code = ? AND active = 1`
	args := []any{modeCode}
	if level != "" {
		query += ` AND level = ?`
		args = append(args, string(level))
	}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(",?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pickLeastUsedCategory balances categories across a duel: among the
// candidates, keep those whose category appears fewest times in the already
// used set, then pick by stable seeded index.
func (b *Bank) pickLeastUsedCategory(ctx context.Context, candidateIDs, usedIDs []string, seed string) (string, error) {
	candidateCats, err := b.categories(ctx, candidateIDs)
	if err != nil {
		return "", err
	}
	usedCats, err := b.categories(ctx, usedIDs)
	if err != nil {
		return "", err
	}

	usedCount := make(map[string]int, len(usedCats))
	for _, cat := range usedCats {
		usedCount[cat]++
	}

	minCount := -1
	for _, id := range candidateIDs {
		c := usedCount[candidateCats[id]]
		if minCount < 0 || c < minCount {
			minCount = c
		}
	}
	var leastUsed []string
	for _, id := range candidateIDs {
		if usedCount[candidateCats[id]] == minCount {
			leastUsed = append(leastUsed, id)
		}
	}
	sort.Strings(leastUsed)
	return leastUsed[stableIndex(seed, len(leastUsed))], nil
}

func (b *Bank) categories(ctx context.Context, ids []string) (map[string]string, error) {
	cats := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return cats, nil
	}
	query := `SELECT id, category FROM questions WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, cat string
		if err := rows.Scan(&id, &cat); err != nil {
			return nil, err
		}
		cats[id] = cat
	}
	return cats, rows.Err()
}

// stableIndex hashes a seed into [0, n).
func stableIndex(seed string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(seed))
	return int(h.Sum64() % uint64(n))
}
