package services

import (
	"context"
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredFixture(t *testing.T) (*fakeRepository, ScoringService, *models.Session) {
	t.Helper()
	repo := newFakeRepository(sampleBank()...)
	paper := repo.seedPaper(models.Paper{Title: "Scoring", Status: models.PaperPublished, PassScore: 20},
		map[uint]int{1: 10, 2: 20, 3: 5, 4: 10, 5: 15}, 1, 2, 3, 4, 5)

	session := repo.seedSession(models.Session{
		PaperID:       paper.ID,
		UserID:        "alice",
		Status:        models.SessionCompleted,
		TotalScore:    intPtr(60),
		AttemptNumber: 1,
		Answers: map[uint]models.Answer{
			1: models.SingleAnswer("B"),
			2: models.MultipleAnswer("A"),
			4: models.TextAnswer("PARIS"),
			5: models.TextAnswer("essay body"),
		},
	})
	return repo, NewScoringService(repo, discardLogger()), session
}

func TestScoringService_CalculateScore(t *testing.T) {
	ctx := context.Background()
	_, service, session := scoredFixture(t)

	score, err := service.CalculateScore(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 20, score)

	_, err = service.CalculateScore(ctx, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestScoringService_CustomOptionsOverrideKey(t *testing.T) {
	ctx := context.Background()
	repo, service, session := scoredFixture(t)

	repo.mu.Lock()
	for id, pq := range repo.pqs {
		if pq.PaperID == session.PaperID && pq.QuestionID == 1 {
			q := repo.questions.bank[1]
			pq.CustomOptions = &models.CustomOptions{
				Options:       []models.Option{q.Options[2], q.Options[0], q.Options[1], q.Options[3]},
				CorrectAnswer: []string{"C"},
			}
			repo.pqs[id] = pq
		}
	}
	repo.mu.Unlock()

	score, err := service.CalculateScore(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 10, score, "B no longer points at the correct option")

	session.SetAnswer(1, models.SingleAnswer("C"))
	score, err = service.CalculateScore(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 20, score)
}

func TestScoringService_GetDetailedResults(t *testing.T) {
	ctx := context.Background()
	_, service, session := scoredFixture(t)

	results, err := service.GetDetailedResults(ctx, session)
	require.NoError(t, err)
	require.Len(t, results.Results, 5)

	first := results.Results[0]
	assert.Equal(t, uint(1), first.QuestionID)
	assert.True(t, first.WasAnswered)
	assert.True(t, first.IsCorrect)
	assert.Equal(t, 10, first.AwardedScore)
	require.NotNil(t, first.SubmittedAnswer)
	assert.Equal(t, "B", first.SubmittedAnswer.String())

	partial := results.Results[1]
	assert.True(t, partial.WasAnswered)
	assert.False(t, partial.IsCorrect, "multiple choice needs the exact set")
	assert.Equal(t, 0, partial.AwardedScore)

	skipped := results.Results[2]
	assert.False(t, skipped.WasAnswered)
	assert.Nil(t, skipped.SubmittedAnswer)

	essay := results.Results[4]
	assert.True(t, essay.WasAnswered)
	assert.False(t, essay.IsCorrect)

	assert.Equal(t, 20, results.Summary.TotalScore)
	assert.Equal(t, 60, results.Summary.MaxScore)
	assert.Equal(t, 2, results.Summary.CorrectCount)
	assert.Equal(t, 5, results.Summary.TotalCount)
	assert.Equal(t, 40.0, results.Summary.CorrectRate)
}

func TestScoringService_Breakdowns(t *testing.T) {
	ctx := context.Background()
	_, service, session := scoredFixture(t)

	t.Run("ByType", func(t *testing.T) {
		byType, err := service.GetScoreByType(ctx, session)
		require.NoError(t, err)
		require.Len(t, byType, 5)

		multiple := byType[models.MultipleChoice]
		assert.Equal(t, 1, multiple.TotalQuestions)
		assert.Equal(t, 1, multiple.AnsweredQuestions)
		assert.Equal(t, 0, multiple.CorrectQuestions)
		assert.Equal(t, 20, multiple.MaxScore)
		assert.Equal(t, 100.0, multiple.AnswerRate)
		assert.Equal(t, 0.0, multiple.ScoreRate)

		trueFalse := byType[models.TrueFalse]
		assert.Equal(t, 0.0, trueFalse.AnswerRate)
	})

	t.Run("ByDifficulty", func(t *testing.T) {
		byDifficulty, err := service.GetScoreByDifficulty(ctx, session)
		require.NoError(t, err)

		// Questions 1 and 4 are difficulty 3, both answered correctly.
		medium := byDifficulty[3]
		require.NotNil(t, medium)
		assert.Equal(t, 2, medium.TotalQuestions)
		assert.Equal(t, 2, medium.CorrectQuestions)
		assert.Equal(t, 20, medium.TotalScore)
		assert.Equal(t, 100.0, medium.ScoreRate)

		hard := byDifficulty[5]
		require.NotNil(t, hard)
		assert.Equal(t, 0, hard.TotalScore)
		assert.Equal(t, 15, hard.MaxScore)
	})
}

func TestGradeSession_StoredAnswerOfWrongKind(t *testing.T) {
	q := sampleBank()[0]
	pqs := []*models.PaperQuestion{{ID: 1, QuestionID: q.ID, SortOrder: 1, Score: 10, Question: q}}
	session := &models.Session{ID: 1, Answers: map[uint]models.Answer{q.ID: models.TextAnswer("B")}}

	results := gradeSession(session, pqs, discardLogger())
	require.Len(t, results, 1)
	assert.True(t, results[0].WasAnswered)
	assert.False(t, results[0].IsCorrect)
	assert.Equal(t, 0, calculateScore(session, pqs, discardLogger()))
}
