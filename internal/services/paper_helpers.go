package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/google/uuid"
)

const maxTitleLength = 120

// paperCandidate is a bank question selected for a paper. A zero score is derived
// from the question's type and difficulty.
type paperCandidate struct {
	question *models.Question
	score    int
}

func loadPaper(ctx context.Context, repo repositories.Repository, id uint) (*models.Paper, error) {
	paper, err := repo.Paper().GetByIDWithQuestions(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrPaperNotFound)
	}
	return paper, nil
}

// savePaper recalculates the paper's statistics from its question set and stores them.
func savePaper(ctx context.Context, tx repositories.Repository, paper *models.Paper) error {
	paper.RecalculateStatistics()
	if err := tx.Paper().Update(ctx, paper); err != nil {
		return fmt.Errorf("failed to save paper: %w", err)
	}
	return nil
}

// attachQuestions appends candidates after the paper's highest sort order. Questions the
// paper already holds, and repeats within candidates, are skipped.
func attachQuestions(ctx context.Context, tx repositories.Repository, paper *models.Paper, candidates []paperCandidate) (int, error) {
	seen := make(map[uint]bool, len(paper.Questions)+len(candidates))
	for _, pq := range paper.Questions {
		seen[pq.QuestionID] = true
	}

	next := paper.NextSortOrder()
	items := make([]*models.PaperQuestion, 0, len(candidates))
	for _, c := range candidates {
		if c.question == nil || seen[c.question.ID] {
			continue
		}
		seen[c.question.ID] = true

		score := c.score
		if score <= 0 {
			score = grading.DefaultScore(c.question.Type, c.question.Difficulty)
		}
		items = append(items, &models.PaperQuestion{
			PaperID:    paper.ID,
			QuestionID: c.question.ID,
			SortOrder:  next,
			Score:      score,
			IsRequired: true,
			Question:   c.question,
		})
		next++
	}

	if err := tx.PaperQuestion().CreateBatch(ctx, items); err != nil {
		return 0, err
	}
	for _, item := range items {
		paper.Questions = append(paper.Questions, *item)
	}
	return len(items), savePaper(ctx, tx, paper)
}

// questionPointers returns pointers into paper.Questions for batch updates.
func questionPointers(paper *models.Paper) []*models.PaperQuestion {
	items := make([]*models.PaperQuestion, len(paper.Questions))
	for i := range paper.Questions {
		items[i] = &paper.Questions[i]
	}
	return items
}

func shuffleQuestionOrder(ctx context.Context, tx repositories.Repository, paper *models.Paper, rnd *grading.Randomizer) error {
	shuffled := make([]models.PaperQuestion, len(paper.Questions))
	for i, j := range rnd.Perm(len(paper.Questions)) {
		shuffled[i] = paper.Questions[j]
		shuffled[i].SortOrder = i + 1
	}
	paper.Questions = shuffled
	paper.RandomizeQuestions = true

	if err := tx.PaperQuestion().UpdateBatch(ctx, questionPointers(paper)); err != nil {
		return err
	}
	return savePaper(ctx, tx, paper)
}

// shufflePaperOptions attaches a shuffled option override to every eligible question.
// A question whose answer key cannot be relocated keeps its original order.
func shufflePaperOptions(ctx context.Context, tx repositories.Repository, paper *models.Paper, rnd *grading.Randomizer, logger *slog.Logger) (int, error) {
	var changed []*models.PaperQuestion
	for i := range paper.Questions {
		pq := &paper.Questions[i]
		custom, err := rnd.ShuffleOptions(pq.Question)
		if errors.Is(err, grading.ErrCorrectOptionLost) {
			logger.Warn("Leaving question options unshuffled",
				"paper_id", paper.ID, "question_id", pq.QuestionID, "error", err)
			continue
		}
		if err != nil {
			return 0, err
		}
		if custom == nil {
			continue
		}
		pq.CustomOptions = custom
		changed = append(changed, pq)
	}
	paper.RandomizeOptions = true

	if err := tx.PaperQuestion().UpdateBatch(ctx, changed); err != nil {
		return 0, err
	}
	return len(changed), savePaper(ctx, tx, paper)
}

// uniqueTitle returns title, or title with a short random suffix when it is taken.
func uniqueTitle(ctx context.Context, repo repositories.Repository, title string) (string, error) {
	exists, err := repo.Paper().ExistsByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if !exists {
		return title, nil
	}

	suffix := uuid.NewString()[:8]
	if runes := []rune(title); len(runes)+len(suffix)+1 > maxTitleLength {
		title = string(runes[:maxTitleLength-len(suffix)-1])
	}
	return title + " " + suffix, nil
}
