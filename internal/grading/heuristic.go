package grading

import (
	"math"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

var baseScores = map[models.QuestionType]float64{
	models.SingleChoice:   3,
	models.TrueFalse:      3,
	models.MultipleChoice: 5,
	models.FillBlank:      5,
	models.Essay:          20,
}

const defaultBaseScore = 5

// DefaultScore is the point value used when a generation strategy does not supply one.
func DefaultScore(qt models.QuestionType, difficulty int) int {
	base, ok := baseScores[qt]
	if !ok {
		base = defaultBaseScore
	}
	return int(math.Round(base * difficultyMultiplier(difficulty)))
}

func difficultyMultiplier(level int) float64 {
	switch level {
	case 1, 2:
		return 0.8
	case 3:
		return 1.0
	case 4, 5:
		return 1.2
	default:
		return 1.0
	}
}
