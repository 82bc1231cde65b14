package grading

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ErrAnswerKindMismatch is returned when an answer's kind does not fit the question type.
var ErrAnswerKindMismatch = errors.New("answer kind does not match question type")

// ExpectedKind returns the answer kind a question type accepts.
func ExpectedKind(qt models.QuestionType) (models.AnswerKind, bool) {
	switch qt {
	case models.SingleChoice, models.TrueFalse:
		return models.AnswerSingle, true
	case models.MultipleChoice:
		return models.AnswerMultiple, true
	case models.FillBlank, models.Essay:
		return models.AnswerText, true
	default:
		return "", false
	}
}

// CheckAnswerKind rejects an answered value whose kind the question type cannot grade.
// Unanswered values and unknown question types always pass.
func CheckAnswerKind(qt models.QuestionType, a models.Answer) error {
	if !a.IsAnswered() {
		return nil
	}
	want, ok := ExpectedKind(qt)
	if !ok || want == a.Kind {
		return nil
	}
	return fmt.Errorf("%w: %s question got %s answer", ErrAnswerKindMismatch, qt, a.Kind)
}

// CorrectAnswers returns the authoritative answer key: the override's when present,
// otherwise the bank question's own.
func CorrectAnswers(q *models.Question, override *models.CustomOptions) []string {
	if override != nil && override.CorrectAnswer != nil {
		return override.CorrectAnswer
	}
	return q.CorrectAnswers
}

// Evaluate judges a single answer. Unanswered values are never correct. Essay and
// unknown types always evaluate to false and need manual grading.
func Evaluate(q *models.Question, a models.Answer, override *models.CustomOptions) (bool, error) {
	if q == nil {
		return false, errors.New("question is required")
	}
	if !a.IsAnswered() {
		return false, nil
	}
	if err := CheckAnswerKind(q.Type, a); err != nil {
		return false, err
	}

	correct := CorrectAnswers(q, override)

	switch q.Type {
	case models.SingleChoice, models.TrueFalse:
		return slices.Contains(correct, a.Choice), nil
	case models.MultipleChoice:
		return sameSet(correct, a.Choices), nil
	case models.FillBlank:
		submitted := normalize(a.Text)
		for _, accepted := range correct {
			if normalize(accepted) == submitted {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}

func sameSet(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	w := slices.Clone(want)
	g := slices.Clone(got)
	slices.Sort(w)
	slices.Sort(g)
	return slices.Equal(w, g)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
