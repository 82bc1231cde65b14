package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaperService(repo *fakeRepository) (PaperService, *events.MockEventPublisher) {
	now := testNow
	publisher := events.NewMockEventPublisher(discardLogger())
	service := NewPaperService(repo, publisher, discardLogger(), validator.New(),
		WithClock(fixedClock(&now)),
		WithRandomizer(grading.NewRandomizer(42)),
	)
	return service, publisher
}

func assertStatisticsInStep(t *testing.T, repo *fakeRepository, paperID uint) {
	t.Helper()
	stored := repo.storedPaper(paperID)
	total, count := 0, 0
	for _, pq := range repo.listPaperQuestions(paperID) {
		total += pq.Score
		count++
	}
	assert.Equal(t, total, stored.TotalScore, "total score")
	assert.Equal(t, count, stored.QuestionCount, "question count")
}

func TestPaperService_CreatePaper(t *testing.T) {
	ctx := context.Background()

	t.Run("WithQuestions", func(t *testing.T) {
		repo := newFakeRepository(sampleBank()...)
		service, _ := newTestPaperService(repo)

		paper, err := service.CreatePaper(ctx, &CreatePaperRequest{
			Title:     "Geography",
			TimeLimit: intPtr(1800),
			Questions: []QuestionScore{{QuestionID: 1, Score: 10}, {QuestionID: 2}},
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaperDraft, paper.Status)
		assert.Equal(t, models.GenerationManual, paper.GenerationType)
		assert.Equal(t, models.DefaultPassScore, paper.PassScore)
		assert.True(t, paper.AllowRetake)
		assert.Equal(t, 2, paper.QuestionCount)
		assert.Equal(t, 16, paper.TotalScore)
		require.Len(t, paper.Questions, 2)
		assert.Equal(t, 1, paper.Questions[0].SortOrder)
		assert.Equal(t, 2, paper.Questions[1].SortOrder)
		assert.Equal(t, 6, paper.Questions[1].Score)
		assertStatisticsInStep(t, repo, paper.ID)
	})

	t.Run("DuplicateTitle", func(t *testing.T) {
		repo := newFakeRepository(sampleBank()...)
		service, _ := newTestPaperService(repo)
		repo.seedPaper(models.Paper{Title: "Geography", Status: models.PaperDraft}, nil)

		_, err := service.CreatePaper(ctx, &CreatePaperRequest{Title: "Geography"})
		assert.ErrorIs(t, err, ErrPaperDuplicateTitle)
		assert.True(t, IsConflict(err))
		assert.True(t, IsBusinessRule(err))
	})

	t.Run("MissingTitle", func(t *testing.T) {
		service, _ := newTestPaperService(newFakeRepository())

		_, err := service.CreatePaper(ctx, &CreatePaperRequest{})
		assert.True(t, IsValidation(err))
	})

	t.Run("UnknownQuestionRollsBack", func(t *testing.T) {
		repo := newFakeRepository(sampleBank()...)
		service, _ := newTestPaperService(repo)

		_, err := service.CreatePaper(ctx, &CreatePaperRequest{
			Title:     "Broken",
			Questions: []QuestionScore{{QuestionID: 1}, {QuestionID: 99}},
		})
		assert.ErrorIs(t, err, ErrQuestionNotFound)

		exists, err := repo.Paper().ExistsByTitle(ctx, "Broken")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestPaperService_AddQuestion(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Mixed", Status: models.PaperDraft}, map[uint]int{1: 10}, 1)

	t.Run("AppendsAfterLastQuestion", func(t *testing.T) {
		pq, err := service.AddQuestion(ctx, paper.ID, 3, 4, 0)
		require.NoError(t, err)

		assert.Equal(t, 2, pq.SortOrder)
		assert.Equal(t, 4, pq.Score)
		stored := repo.storedPaper(paper.ID)
		assert.Equal(t, 14, stored.TotalScore)
		assert.Equal(t, 2, stored.QuestionCount)
		assertStatisticsInStep(t, repo, paper.ID)
	})

	t.Run("DerivesScoreWhenZero", func(t *testing.T) {
		pq, err := service.AddQuestion(ctx, paper.ID, 5, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 24, pq.Score)
		assertStatisticsInStep(t, repo, paper.ID)
	})

	t.Run("ExplicitSortOrder", func(t *testing.T) {
		pq, err := service.AddQuestion(ctx, paper.ID, 4, 5, 40)
		require.NoError(t, err)
		assert.Equal(t, 40, pq.SortOrder)

		stored, err := repo.PaperQuestion().GetByID(ctx, pq.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, stored.SortOrder)
	})

	t.Run("AlreadyInPaper", func(t *testing.T) {
		before := repo.storedPaper(paper.ID)

		_, err := service.AddQuestion(ctx, paper.ID, 1, 10, 0)
		assert.ErrorIs(t, err, ErrQuestionAlreadyInPaper)
		assert.True(t, IsConflict(err))
		assert.Equal(t, before.TotalScore, repo.storedPaper(paper.ID).TotalScore)
	})

	t.Run("UnknownQuestion", func(t *testing.T) {
		_, err := service.AddQuestion(ctx, paper.ID, 99, 1, 0)
		assert.ErrorIs(t, err, ErrQuestionNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("UnknownPaper", func(t *testing.T) {
		_, err := service.AddQuestion(ctx, 9999, 2, 1, 0)
		assert.ErrorIs(t, err, ErrPaperNotFound)
	})

	t.Run("NegativeScore", func(t *testing.T) {
		_, err := service.AddQuestion(ctx, paper.ID, 2, -1, 0)
		assert.True(t, IsValidation(err))
	})
}

func TestPaperService_AddQuestions(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Batch", Status: models.PaperDraft}, map[uint]int{1: 10}, 1)

	updated, err := service.AddQuestions(ctx, paper.ID, []QuestionScore{
		{QuestionID: 1, Score: 10},
		{QuestionID: 2, Score: 8},
		{QuestionID: 3, Score: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, updated.QuestionCount)
	assert.Equal(t, 20, updated.TotalScore)
	for i, pq := range updated.Questions {
		assert.Equal(t, i+1, pq.SortOrder)
	}
	assertStatisticsInStep(t, repo, paper.ID)
}

func TestPaperService_RemoveQuestion(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Removal", Status: models.PaperDraft},
		map[uint]int{1: 10, 2: 5, 3: 3}, 1, 2, 3)
	other := repo.seedPaper(models.Paper{Title: "Other", Status: models.PaperDraft}, map[uint]int{4: 5}, 4)

	loaded, err := service.GetPaper(ctx, paper.ID)
	require.NoError(t, err)
	middle := loaded.Questions[1]

	t.Run("ResequencesRemaining", func(t *testing.T) {
		require.NoError(t, service.RemoveQuestion(ctx, paper.ID, middle.ID))

		remaining, err := service.GetPaper(ctx, paper.ID)
		require.NoError(t, err)
		require.Len(t, remaining.Questions, 2)
		assert.Equal(t, uint(1), remaining.Questions[0].QuestionID)
		assert.Equal(t, 1, remaining.Questions[0].SortOrder)
		assert.Equal(t, uint(3), remaining.Questions[1].QuestionID)
		assert.Equal(t, 2, remaining.Questions[1].SortOrder)
		assert.Equal(t, 13, remaining.TotalScore)
		assertStatisticsInStep(t, repo, paper.ID)
	})

	t.Run("NotOwned", func(t *testing.T) {
		otherPaper, err := service.GetPaper(ctx, other.ID)
		require.NoError(t, err)

		err = service.RemoveQuestion(ctx, paper.ID, otherPaper.Questions[0].ID)
		assert.ErrorIs(t, err, ErrPaperQuestionNotOwned)
		assert.True(t, IsNotFound(err))
		assertStatisticsInStep(t, repo, other.ID)
	})

	t.Run("Unknown", func(t *testing.T) {
		err := service.RemoveQuestion(ctx, paper.ID, 9999)
		assert.ErrorIs(t, err, ErrPaperQuestionNotFound)
	})
}

func TestPaperService_Ordering(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Ordering", Status: models.PaperDraft},
		map[uint]int{1: 1, 2: 2, 3: 3}, 1, 2, 3)

	loaded, err := service.GetPaper(ctx, paper.ID)
	require.NoError(t, err)
	ids := []uint{loaded.Questions[0].ID, loaded.Questions[1].ID, loaded.Questions[2].ID}

	t.Run("UpdateQuestionOrder", func(t *testing.T) {
		updated, err := service.UpdateQuestionOrder(ctx, paper.ID, map[uint]int{ids[0]: 30, ids[1]: 10, ids[2]: 20, 9999: 1})
		require.NoError(t, err)

		got := []uint{updated.Questions[0].QuestionID, updated.Questions[1].QuestionID, updated.Questions[2].QuestionID}
		assert.Equal(t, []uint{2, 3, 1}, got)
	})

	t.Run("ResequenceKeepsOrder", func(t *testing.T) {
		updated, err := service.ResequenceQuestions(ctx, paper.ID)
		require.NoError(t, err)

		for i, pq := range updated.Questions {
			assert.Equal(t, i+1, pq.SortOrder)
		}
		assert.Equal(t, uint(2), updated.Questions[0].QuestionID)

		stored, err := service.GetPaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Questions[0].SortOrder)
		assert.Equal(t, uint(2), stored.Questions[0].QuestionID)
	})

	t.Run("NegativeOrder", func(t *testing.T) {
		_, err := service.UpdateQuestionOrder(ctx, paper.ID, map[uint]int{ids[0]: -1})
		assert.True(t, IsValidation(err))
	})
}

func TestPaperService_ShuffleQuestions(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Shuffle", Status: models.PaperDraft},
		map[uint]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}, 1, 2, 3, 4, 5)

	shuffled, err := service.ShuffleQuestions(ctx, paper.ID)
	require.NoError(t, err)

	seen := make(map[uint]bool)
	for i, pq := range shuffled.Questions {
		assert.Equal(t, i+1, pq.SortOrder)
		seen[pq.QuestionID] = true
	}
	assert.Len(t, seen, 5)
	assert.True(t, repo.storedPaper(paper.ID).RandomizeQuestions)
	assert.Equal(t, 15, repo.storedPaper(paper.ID).TotalScore)
}

func TestPaperService_ShuffleOptions(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Options", Status: models.PaperDraft},
		map[uint]int{1: 5, 2: 5, 3: 5, 6: 5}, 1, 2, 3, 6)

	shuffled, err := service.ShuffleOptions(ctx, paper.ID)
	require.NoError(t, err)
	assert.True(t, repo.storedPaper(paper.ID).RandomizeOptions)

	stored, err := service.GetPaper(ctx, paper.ID)
	require.NoError(t, err)

	t.Run("SingleChoiceKeyFollowsOption", func(t *testing.T) {
		pq := stored.FindByQuestionID(1)
		require.NotNil(t, pq.CustomOptions)
		require.Len(t, pq.CustomOptions.Options, 4)
		require.Len(t, pq.CustomOptions.CorrectAnswer, 1)

		idx := models.MarkerIndex(pq.CustomOptions.CorrectAnswer[0])
		assert.Equal(t, uint(12), pq.CustomOptions.Options[idx].ID)

		correct, err := grading.Evaluate(pq.Question, models.SingleAnswer(pq.CustomOptions.CorrectAnswer[0]), pq.CustomOptions)
		require.NoError(t, err)
		assert.True(t, correct)
	})

	t.Run("MultipleChoiceKeyFollowsOptions", func(t *testing.T) {
		pq := stored.FindByQuestionID(2)
		require.NotNil(t, pq.CustomOptions)

		var ids []uint
		for _, marker := range pq.CustomOptions.CorrectAnswer {
			ids = append(ids, pq.CustomOptions.Options[models.MarkerIndex(marker)].ID)
		}
		assert.ElementsMatch(t, []uint{21, 23}, ids)
	})

	t.Run("SkipsQuestionsWithoutOptions", func(t *testing.T) {
		assert.Nil(t, stored.FindByQuestionID(3).CustomOptions)
	})

	t.Run("LeavesBrokenKeyUnshuffled", func(t *testing.T) {
		assert.Nil(t, stored.FindByQuestionID(6).CustomOptions)
	})

	t.Run("BankQuestionUntouched", func(t *testing.T) {
		q, err := repo.Question().GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint(11), q.Options[0].ID)
		assert.Equal(t, []string{"B"}, []string(q.CorrectAnswers))
		assert.Len(t, shuffled.Questions, 4)
	})
}

func TestPaperService_DuplicatePaper(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	src := repo.seedPaper(models.Paper{
		Title:       "Finals",
		Status:      models.PaperPublished,
		PassScore:   12,
		TimeLimit:   intPtr(600),
		AllowRetake: true,
	}, map[uint]int{1: 10, 4: 5}, 1, 4)

	t.Run("DefaultTitle", func(t *testing.T) {
		dup, err := service.DuplicatePaper(ctx, src.ID, "")
		require.NoError(t, err)

		assert.Equal(t, "Finals (Copy)", dup.Title)
		assert.Equal(t, models.PaperDraft, dup.Status)
		assert.Equal(t, 15, dup.TotalScore)
		assert.Equal(t, 2, dup.QuestionCount)
		assert.Equal(t, 12, dup.PassScore)
		assertStatisticsInStep(t, repo, dup.ID)
	})

	t.Run("DefaultTitleTaken", func(t *testing.T) {
		dup, err := service.DuplicatePaper(ctx, src.ID, "")
		require.NoError(t, err)

		assert.NotEqual(t, "Finals (Copy)", dup.Title)
		assert.Contains(t, dup.Title, "Finals (Copy) ")
		assertStatisticsInStep(t, repo, dup.ID)
	})

	t.Run("ExplicitTitleTaken", func(t *testing.T) {
		_, err := service.DuplicatePaper(ctx, src.ID, "Finals")
		assert.ErrorIs(t, err, ErrPaperDuplicateTitle)
	})

	t.Run("UnknownPaper", func(t *testing.T) {
		_, err := service.DuplicatePaper(ctx, 9999, "")
		assert.ErrorIs(t, err, ErrPaperNotFound)
	})
}

func TestPaperService_StatusChanges(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, publisher := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Lifecycle", Status: models.PaperDraft}, map[uint]int{1: 10}, 1)
	empty := repo.seedPaper(models.Paper{Title: "Empty", Status: models.PaperDraft}, nil)

	t.Run("PublishEmpty", func(t *testing.T) {
		_, err := service.PublishPaper(ctx, empty.ID)
		assert.ErrorIs(t, err, ErrPaperEmpty)
		assert.True(t, IsState(err))
	})

	t.Run("ArchiveDraft", func(t *testing.T) {
		_, err := service.ArchivePaper(ctx, paper.ID)
		assert.ErrorIs(t, err, ErrPaperInvalidStatus)
	})

	t.Run("Publish", func(t *testing.T) {
		published, err := service.PublishPaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaperPublished, published.Status)
		assert.Equal(t, models.PaperPublished, repo.storedPaper(paper.ID).Status)

		evts := publisher.EventsOfType(events.EventPaperPublished)
		require.Len(t, evts, 1)
		data, ok := evts[0].Data.(events.PaperStatusEvent)
		require.True(t, ok)
		assert.Equal(t, paper.ID, data.PaperID)
		assert.Equal(t, 10, data.TotalScore)
	})

	t.Run("PublishTwice", func(t *testing.T) {
		_, err := service.PublishPaper(ctx, paper.ID)
		assert.ErrorIs(t, err, ErrPaperInvalidStatus)
		assert.Len(t, publisher.EventsOfType(events.EventPaperPublished), 1)
	})

	t.Run("Archive", func(t *testing.T) {
		archived, err := service.ArchivePaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaperArchived, archived.Status)
		assert.Len(t, publisher.EventsOfType(events.EventPaperArchived), 1)
	})

	t.Run("UnknownPaper", func(t *testing.T) {
		_, err := service.PublishPaper(ctx, 9999)
		assert.ErrorIs(t, err, ErrPaperNotFound)
	})
}

func TestPaperService_DeletePaper(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Gone", Status: models.PaperDraft}, map[uint]int{1: 10}, 1)

	require.NoError(t, service.DeletePaper(ctx, paper.ID))
	assert.Empty(t, repo.listPaperQuestions(paper.ID))

	assert.ErrorIs(t, service.DeletePaper(ctx, paper.ID), ErrPaperNotFound)
}

func TestPaperService_GetPaperStatistics(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository(sampleBank()...)
	service, _ := newTestPaperService(repo)
	paper := repo.seedPaper(models.Paper{Title: "Stats", Status: models.PaperPublished, PassScore: 60}, nil)
	repo.mu.Lock()
	stored := repo.papers[paper.ID]
	stored.TotalScore = 100
	repo.papers[paper.ID] = stored
	repo.mu.Unlock()

	finished := testNow.Add(-time.Hour)
	for i, score := range []int{95, 85, 65, 40} {
		repo.seedSession(models.Session{
			PaperID:       paper.ID,
			UserID:        "user-" + string(rune('a'+i)),
			Status:        models.SessionCompleted,
			EndTime:       &finished,
			Score:         intPtr(score),
			TotalScore:    intPtr(100),
			Passed:        score >= 60,
			AttemptNumber: 1,
		})
	}
	repo.seedSession(models.Session{PaperID: paper.ID, UserID: "user-z", Status: models.SessionInProgress, AttemptNumber: 1})

	stats, err := service.GetPaperStatistics(ctx, paper.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalSessions)
	assert.Equal(t, 4, stats.CompletedSessions)
	assert.Equal(t, 71.25, stats.AverageScore)
	assert.Equal(t, 95, stats.HighestScore)
	assert.Equal(t, 40, stats.LowestScore)
	assert.Equal(t, 75.0, stats.PassRate)
	assert.Equal(t, ScoreBands{Excellent: 1, Good: 1, Pass: 1, Fail: 1}, stats.ScoreBands)

	_, err = service.GetPaperStatistics(ctx, 9999)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}
