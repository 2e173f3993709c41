package duel

import "github.com/brainduel/api/internal/quiz"

// levelSequence is the fixed difficulty mix per round index: early rounds
// easier, later rounds harder. It is purely a function of the round number
// and never depends on player history, so both players always face the same
// target level.
var levelSequence = []quiz.Level{
	quiz.LevelA1, quiz.LevelA1, quiz.LevelA1,
	quiz.LevelA2, quiz.LevelA2, quiz.LevelA2, quiz.LevelA2, quiz.LevelA2, quiz.LevelA2,
	quiz.LevelB1, quiz.LevelB1, quiz.LevelB1,
}

// LevelForRound returns the target level for a round, 1-based. Rounds past
// the sequence stay at the hardest planned level.
func LevelForRound(round int) quiz.Level {
	if round <= 0 {
		return ""
	}
	if round <= len(levelSequence) {
		return levelSequence[round-1]
	}
	return levelSequence[len(levelSequence)-1]
}
