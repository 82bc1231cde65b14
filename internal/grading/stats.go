package grading

import "github.com/SAP-F-2025/exam-service/internal/models"

// GroupStats is the finalized breakdown for one group of questions.
type GroupStats struct {
	TotalQuestions    int     `json:"total_questions"`
	AnsweredQuestions int     `json:"answered_questions"`
	CorrectQuestions  int     `json:"correct_questions"`
	TotalScore        int     `json:"total_score"`
	MaxScore          int     `json:"max_score"`
	CorrectRate       float64 `json:"correct_rate"`
	AnswerRate        float64 `json:"answer_rate"`
	ScoreRate         float64 `json:"score_rate"`
}

// GroupAccumulator collects per-question outcomes keyed by K and derives rates once.
type GroupAccumulator[K comparable] struct {
	order  []K
	groups map[K]*GroupStats
}

func NewGroupAccumulator[K comparable]() *GroupAccumulator[K] {
	return &GroupAccumulator[K]{groups: make(map[K]*GroupStats)}
}

// Add records one question's outcome under key.
func (a *GroupAccumulator[K]) Add(key K, answered, correct bool, awarded, maxScore int) {
	g, ok := a.groups[key]
	if !ok {
		g = &GroupStats{}
		a.groups[key] = g
		a.order = append(a.order, key)
	}
	g.TotalQuestions++
	if answered {
		g.AnsweredQuestions++
	}
	if correct {
		g.CorrectQuestions++
	}
	g.TotalScore += awarded
	g.MaxScore += maxScore
}

// Keys returns group keys in first-seen order.
func (a *GroupAccumulator[K]) Keys() []K {
	return append([]K(nil), a.order...)
}

// Finalize computes the derived rates and returns the groups.
func (a *GroupAccumulator[K]) Finalize() map[K]*GroupStats {
	out := make(map[K]*GroupStats, len(a.groups))
	for k, g := range a.groups {
		s := *g
		s.CorrectRate = Percent(s.CorrectQuestions, s.TotalQuestions)
		s.AnswerRate = Percent(s.AnsweredQuestions, s.TotalQuestions)
		s.ScoreRate = Percent(s.TotalScore, s.MaxScore)
		out[k] = &s
	}
	return out
}

// Percent is part/whole as a percentage rounded to 2 decimals, 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return models.Round2(float64(part) / float64(whole) * 100)
}
