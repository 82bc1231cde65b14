package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type scoringService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewScoringService(repo repositories.Repository, logger *slog.Logger) ScoringService {
	return &scoringService{
		repo:   repo,
		logger: logger,
	}
}

func (s *scoringService) CalculateScore(ctx context.Context, session *models.Session) (int, error) {
	pqs, err := s.paperQuestions(ctx, session)
	if err != nil {
		return 0, err
	}
	return calculateScore(session, pqs, s.logger), nil
}

func (s *scoringService) GetDetailedResults(ctx context.Context, session *models.Session) (*DetailedResults, error) {
	pqs, err := s.paperQuestions(ctx, session)
	if err != nil {
		return nil, err
	}

	results := gradeSession(session, pqs, s.logger)
	summary := ResultSummary{TotalCount: len(results)}
	for _, r := range results {
		summary.TotalScore += r.AwardedScore
		summary.MaxScore += r.MaxScore
		if r.IsCorrect {
			summary.CorrectCount++
		}
	}
	if session.TotalScore != nil {
		summary.MaxScore = *session.TotalScore
	}
	summary.CorrectRate = grading.Percent(summary.CorrectCount, summary.TotalCount)

	return &DetailedResults{
		SessionID: session.ID,
		Results:   results,
		Summary:   summary,
	}, nil
}

func (s *scoringService) GetScoreByType(ctx context.Context, session *models.Session) (map[models.QuestionType]*grading.GroupStats, error) {
	pqs, err := s.paperQuestions(ctx, session)
	if err != nil {
		return nil, err
	}
	return scoreByType(session, pqs, s.logger), nil
}

func (s *scoringService) GetScoreByDifficulty(ctx context.Context, session *models.Session) (map[int]*grading.GroupStats, error) {
	pqs, err := s.paperQuestions(ctx, session)
	if err != nil {
		return nil, err
	}

	acc := grading.NewGroupAccumulator[int]()
	for _, r := range gradeSession(session, pqs, s.logger) {
		acc.Add(r.Difficulty, r.WasAnswered, r.IsCorrect, r.AwardedScore, r.MaxScore)
	}
	return acc.Finalize(), nil
}

func (s *scoringService) paperQuestions(ctx context.Context, session *models.Session) ([]*models.PaperQuestion, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	pqs, err := s.repo.PaperQuestion().ListByPaper(ctx, session.PaperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper questions: %w", err)
	}
	return pqs, nil
}

// ===== GRADING HELPERS =====

// gradeSession evaluates every paper question, in sort order, against the session's
// stored answers. A stored answer that cannot be graded counts as incorrect.
func gradeSession(session *models.Session, pqs []*models.PaperQuestion, logger *slog.Logger) []QuestionResult {
	results := make([]QuestionResult, 0, len(pqs))
	for _, pq := range pqs {
		r := QuestionResult{
			PaperQuestionID: pq.ID,
			QuestionID:      pq.QuestionID,
			QuestionType:    pq.QuestionType(),
			SortOrder:       pq.SortOrder,
			MaxScore:        pq.Score,
		}
		if pq.Question != nil {
			r.Difficulty = pq.Question.Difficulty
		}

		if answer, ok := session.Answer(pq.QuestionID); ok {
			r.WasAnswered = true
			r.SubmittedAnswer = &answer

			if pq.Question != nil {
				correct, err := grading.Evaluate(pq.Question, answer, pq.CustomOptions)
				if err != nil {
					logger.Warn("Stored answer could not be graded",
						"session_id", session.ID, "question_id", pq.QuestionID, "error", err)
				}
				r.IsCorrect = correct
			}
		}
		if r.IsCorrect {
			r.AwardedScore = pq.Score
		}
		results = append(results, r)
	}
	return results
}

func calculateScore(session *models.Session, pqs []*models.PaperQuestion, logger *slog.Logger) int {
	score := 0
	for _, r := range gradeSession(session, pqs, logger) {
		score += r.AwardedScore
	}
	return score
}

func scoreByType(session *models.Session, pqs []*models.PaperQuestion, logger *slog.Logger) map[models.QuestionType]*grading.GroupStats {
	acc := grading.NewGroupAccumulator[models.QuestionType]()
	for _, r := range gradeSession(session, pqs, logger) {
		acc.Add(r.QuestionType, r.WasAnswered, r.IsCorrect, r.AwardedScore, r.MaxScore)
	}
	return acc.Finalize()
}
