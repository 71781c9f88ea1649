package app

import (
	"math"

	"aiquiz-service/internal/domain"
)

const (
	// BasePoints is awarded for every correct answer.
	BasePoints = 500
	// MaxSpeedBonus is earned by answering correctly at elapsed time zero.
	MaxSpeedBonus = 500
)

// Score grades a submission: 500 plus a linear speed bonus for a correct
// answer, nothing for a wrong one.
func Score(q domain.Question, value string, elapsedSeconds float64) (bool, int) {
	if value != q.CorrectAnswer {
		return false, 0
	}
	return true, BasePoints + speedBonus(elapsedSeconds, q.TimeLimitSeconds)
}

// speedBonus is floor(500 * (1 - t/L)) clamped to [0, 500], computed as
// floor(500 * (L - t) / L) so whole-second inputs stay exact. Elapsed time
// comes from the client and is clamped to [0, L] first.
func speedBonus(elapsed float64, limit int) int {
	if limit <= 0 || math.IsNaN(elapsed) {
		return 0
	}
	l := float64(limit)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= l {
		return 0
	}
	bonus := math.Floor(MaxSpeedBonus * (l - elapsed) / l)
	if bonus <= 0 {
		return 0
	}
	return int(bonus)
}
