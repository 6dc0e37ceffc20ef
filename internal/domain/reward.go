package domain

import "github.com/shopspring/decimal"

const (
	// ParticipationStars is paid for a failed, non-replay attempt.
	ParticipationStars = 1
	// PassBaseStars is the reward floor for a passing attempt before bonus and multiplier.
	PassBaseStars = 5
)

var difficultyMultipliers = map[Difficulty]decimal.Decimal{
	DifficultyEasy:   decimal.NewFromInt(1),
	DifficultyMedium: decimal.RequireFromString("1.5"),
	DifficultyHard:   decimal.NewFromInt(2),
}

// Multiplier returns the reward multiplier for d. Unknown tiers pay like EASY.
func (d Difficulty) Multiplier() decimal.Decimal {
	if m, ok := difficultyMultipliers[d]; ok {
		return m
	}
	return difficultyMultipliers[DifficultyEasy]
}

// Reward computes the stars earned for a graded attempt.
// A replay earns nothing, a fail earns the participation star, and a pass earns
// (5 + one per full 10 points above the threshold) scaled by difficulty,
// rounded half away from zero.
func Reward(score, passingScore int, difficulty Difficulty, replay bool) int {
	if replay {
		return 0
	}
	if score < passingScore {
		return ParticipationStars
	}
	bonus := (score - passingScore) / 10
	stars := decimal.NewFromInt(int64(PassBaseStars + bonus)).Mul(difficulty.Multiplier())
	return int(stars.Round(0).IntPart())
}
