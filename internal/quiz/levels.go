package quiz

import "strings"

// Level is a question difficulty tier on the CEFR-like ladder.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// LevelOrder is the ladder from easiest to hardest.
var LevelOrder = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// adaptiveModeBounds limits the persistent adaptive ladder per mode.
var adaptiveModeBounds = map[string][2]Level{
	"ARTIKEL_SPRINT": {LevelA1, LevelB2},
}

// NormalizeLevel uppercases and trims a level string; empty stays empty.
func NormalizeLevel(level Level) Level {
	return Level(strings.ToUpper(strings.TrimSpace(string(level))))
}

func levelIndex(level Level) int {
	for i, l := range LevelOrder {
		if l == level {
			return i
		}
	}
	return -1
}

// IsPersistentAdaptiveMode reports whether the mode keeps a per-user
// preferred level that advances with correct answers.
func IsPersistentAdaptiveMode(modeCode string) bool {
	_, ok := adaptiveModeBounds[modeCode]
	return ok
}

// ClampLevelForMode keeps a level inside the mode's adaptive bounds. Modes
// without bounds pass through untouched; an unknown level snaps to the
// mode's minimum.
func ClampLevelForMode(modeCode string, level Level) Level {
	normalized := NormalizeLevel(level)
	bounds, ok := adaptiveModeBounds[modeCode]
	if !ok {
		return normalized
	}
	minIdx := levelIndex(bounds[0])
	maxIdx := levelIndex(bounds[1])
	idx := levelIndex(normalized)
	if idx < 0 {
		return LevelOrder[minIdx]
	}
	if idx < minIdx {
		idx = minIdx
	}
	if idx > maxIdx {
		idx = maxIdx
	}
	return LevelOrder[idx]
}

// NextPreferredLevel computes the adaptive tier after an answer: a correct
// answer advances one step up the ladder, an incorrect one stays.
func NextPreferredLevel(questionLevel Level, isCorrect bool, modeCode string) Level {
	normalized := NormalizeLevel(questionLevel)
	idx := levelIndex(normalized)
	if idx < 0 {
		return ""
	}
	next := normalized
	if isCorrect && idx < len(LevelOrder)-1 {
		next = LevelOrder[idx+1]
	}
	if modeCode == "" {
		return next
	}
	return ClampLevelForMode(modeCode, next)
}
