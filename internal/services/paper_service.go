package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type paperService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    eventEmitter
	opts      options
}

func NewPaperService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, opts ...Option) PaperService {
	return &paperService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    eventEmitter{publisher: publisher, logger: logger},
		opts:      newOptions(opts),
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *paperService) CreatePaper(ctx context.Context, req *CreatePaperRequest) (*models.Paper, error) {
	s.logger.Info("Creating paper", "title", req.Title)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exists, err := s.repo.Paper().ExistsByTitle(ctx, req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to check title: %w", err)
	}
	if exists {
		return nil, NewBusinessRuleError(ErrPaperDuplicateTitle, "unique_title", map[string]interface{}{"title": req.Title})
	}

	paper := &models.Paper{
		Title:          req.Title,
		Description:    req.Description,
		Status:         models.PaperDraft,
		GenerationType: models.GenerationManual,
		PassScore:      models.DefaultPassScore,
		TimeLimit:      req.TimeLimit,
		AllowRetake:    true,
		MaxAttempts:    req.MaxAttempts,
	}
	if req.PassScore != nil {
		paper.PassScore = *req.PassScore
	}
	if req.AllowRetake != nil {
		paper.AllowRetake = *req.AllowRetake
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Paper().Create(ctx, paper); err != nil {
			return err
		}

		candidates, err := lookupCandidates(ctx, tx, req.Questions)
		if err != nil {
			return err
		}
		if _, err := attachQuestions(ctx, tx, paper, candidates); err != nil {
			return fmt.Errorf("failed to add questions: %w", err)
		}

		if req.RandomizeQuestions {
			if err := shuffleQuestionOrder(ctx, tx, paper, s.opts.randomizer); err != nil {
				return err
			}
		}
		if req.RandomizeOptions {
			if _, err := shufflePaperOptions(ctx, tx, paper, s.opts.randomizer, s.logger); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Paper created successfully", "paper_id", paper.ID, "question_count", paper.QuestionCount)
	return paper, nil
}

func (s *paperService) GetPaper(ctx context.Context, id uint) (*models.Paper, error) {
	return loadPaper(ctx, s.repo, id)
}

func (s *paperService) DeletePaper(ctx context.Context, id uint) error {
	s.logger.Info("Deleting paper", "paper_id", id)

	if err := s.repo.Paper().Delete(ctx, id); err != nil {
		return translateNotFound(err, ErrPaperNotFound)
	}
	return nil
}

// ===== QUESTION MANAGEMENT =====

func (s *paperService) AddQuestion(ctx context.Context, paperID, questionID uint, score, sortOrder int) (*models.PaperQuestion, error) {
	if score < 0 || sortOrder < 0 {
		return nil, fmt.Errorf("%w: score and sort order must not be negative", ErrValidationFailed)
	}

	var added *models.PaperQuestion
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		paper, err := loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}
		if paper.ContainsQuestion(questionID) {
			return NewBusinessRuleError(ErrQuestionAlreadyInPaper, "unique_question", map[string]interface{}{
				"paper_id":    paperID,
				"question_id": questionID,
			})
		}

		candidates, err := lookupCandidates(ctx, tx, []QuestionScore{{QuestionID: questionID, Score: score}})
		if err != nil {
			return err
		}
		if _, err := attachQuestions(ctx, tx, paper, candidates); err != nil {
			return fmt.Errorf("failed to add question: %w", err)
		}

		added = paper.FindByQuestionID(questionID)
		if sortOrder > 0 && added.SortOrder != sortOrder {
			added.SortOrder = sortOrder
			if err := tx.PaperQuestion().UpdateBatch(ctx, []*models.PaperQuestion{added}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question added to paper", "paper_id", paperID, "question_id", questionID, "score", added.Score)
	return added, nil
}

func (s *paperService) AddQuestions(ctx context.Context, paperID uint, questions []QuestionScore) (*models.Paper, error) {
	for _, q := range questions {
		if err := s.validator.Validate(q); err != nil {
			return nil, err
		}
	}

	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}

		pending := make([]QuestionScore, 0, len(questions))
		for _, q := range questions {
			if !paper.ContainsQuestion(q.QuestionID) {
				pending = append(pending, q)
			}
		}
		candidates, err := lookupCandidates(ctx, tx, pending)
		if err != nil {
			return err
		}

		added, err := attachQuestions(ctx, tx, paper, candidates)
		if err != nil {
			return fmt.Errorf("failed to add questions: %w", err)
		}
		s.logger.Info("Questions added to paper", "paper_id", paperID, "requested", len(questions), "added", added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (s *paperService) RemoveQuestion(ctx context.Context, paperID, paperQuestionID uint) error {
	return s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		pq, err := tx.PaperQuestion().GetByID(ctx, paperQuestionID)
		if err != nil {
			return translateNotFound(err, ErrPaperQuestionNotFound)
		}
		if pq.PaperID != paperID {
			return NewBusinessRuleError(ErrPaperQuestionNotOwned, "question_ownership", map[string]interface{}{
				"paper_id":          paperID,
				"paper_question_id": paperQuestionID,
			})
		}

		if err := tx.PaperQuestion().Delete(ctx, paperQuestionID); err != nil {
			return fmt.Errorf("failed to remove question: %w", err)
		}

		paper, err := loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}
		paper.Resequence()
		if err := tx.PaperQuestion().UpdateBatch(ctx, questionPointers(paper)); err != nil {
			return err
		}
		return savePaper(ctx, tx, paper)
	})
}

// UpdateQuestionOrder applies explicit sort orders keyed by paper question id. Ids that
// do not belong to the paper are ignored.
func (s *paperService) UpdateQuestionOrder(ctx context.Context, paperID uint, order map[uint]int) (*models.Paper, error) {
	for id, pos := range order {
		if pos < 0 {
			return nil, fmt.Errorf("%w: negative sort order for paper question %d", ErrValidationFailed, id)
		}
	}

	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}

		var changed []*models.PaperQuestion
		for i := range paper.Questions {
			pq := &paper.Questions[i]
			if pos, ok := order[pq.ID]; ok && pos != pq.SortOrder {
				pq.SortOrder = pos
				changed = append(changed, pq)
			}
		}
		if err := tx.PaperQuestion().UpdateBatch(ctx, changed); err != nil {
			return err
		}
		paper.SortQuestions()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (s *paperService) ResequenceQuestions(ctx context.Context, paperID uint) (*models.Paper, error) {
	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}
		paper.Resequence()
		return tx.PaperQuestion().UpdateBatch(ctx, questionPointers(paper))
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (s *paperService) ShuffleQuestions(ctx context.Context, paperID uint) (*models.Paper, error) {
	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}
		return shuffleQuestionOrder(ctx, tx, paper, s.opts.randomizer)
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (s *paperService) ShuffleOptions(ctx context.Context, paperID uint) (*models.Paper, error) {
	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}
		shuffled, err := shufflePaperOptions(ctx, tx, paper, s.opts.randomizer, s.logger)
		if err != nil {
			return err
		}
		s.logger.Info("Shuffled paper options", "paper_id", paperID, "questions", shuffled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

// DuplicatePaper copies a paper and its questions into a new draft. An empty title
// becomes "<title> (Copy)", suffixed when that is taken.
func (s *paperService) DuplicatePaper(ctx context.Context, paperID uint, title string) (*models.Paper, error) {
	var dup *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		src, err := loadPaper(ctx, tx, paperID)
		if err != nil {
			return err
		}

		if title == "" {
			title, err = uniqueTitle(ctx, tx, src.Title+" (Copy)")
			if err != nil {
				return err
			}
		} else if exists, err := tx.Paper().ExistsByTitle(ctx, title); err != nil {
			return err
		} else if exists {
			return NewBusinessRuleError(ErrPaperDuplicateTitle, "unique_title", map[string]interface{}{"title": title})
		}

		dup = &models.Paper{
			Title:              title,
			Description:        src.Description,
			Status:             models.PaperDraft,
			GenerationType:     src.GenerationType,
			PassScore:          src.PassScore,
			TimeLimit:          src.TimeLimit,
			RandomizeQuestions: src.RandomizeQuestions,
			RandomizeOptions:   src.RandomizeOptions,
			AllowRetake:        src.AllowRetake,
			MaxAttempts:        src.MaxAttempts,
		}
		if err := tx.Paper().Create(ctx, dup); err != nil {
			return err
		}

		items := make([]*models.PaperQuestion, 0, len(src.Questions))
		for _, pq := range src.Questions {
			items = append(items, &models.PaperQuestion{
				PaperID:       dup.ID,
				QuestionID:    pq.QuestionID,
				SortOrder:     pq.SortOrder,
				Score:         pq.Score,
				IsRequired:    pq.IsRequired,
				CustomOptions: pq.CustomOptions,
				Remark:        pq.Remark,
				Question:      pq.Question,
			})
		}
		if err := tx.PaperQuestion().CreateBatch(ctx, items); err != nil {
			return fmt.Errorf("failed to copy questions: %w", err)
		}
		for _, item := range items {
			dup.Questions = append(dup.Questions, *item)
		}
		return savePaper(ctx, tx, dup)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Paper duplicated", "source_paper_id", paperID, "paper_id", dup.ID)
	return dup, nil
}

// ===== STATUS MANAGEMENT =====

func (s *paperService) PublishPaper(ctx context.Context, id uint) (*models.Paper, error) {
	paper, err := s.changeStatus(ctx, id, models.PaperPublished)
	if err != nil {
		return nil, err
	}
	s.events.emit(ctx, events.EventPaperPublished, paperStatusEvent(paper))
	return paper, nil
}

func (s *paperService) ArchivePaper(ctx context.Context, id uint) (*models.Paper, error) {
	paper, err := s.changeStatus(ctx, id, models.PaperArchived)
	if err != nil {
		return nil, err
	}
	s.events.emit(ctx, events.EventPaperArchived, paperStatusEvent(paper))
	return paper, nil
}

func (s *paperService) changeStatus(ctx context.Context, id uint, next models.PaperStatus) (*models.Paper, error) {
	var paper *models.Paper
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		paper, err = tx.Paper().GetByID(ctx, id)
		if err != nil {
			return translateNotFound(err, ErrPaperNotFound)
		}
		if !paper.Status.CanTransitionTo(next) {
			return NewBusinessRuleError(ErrPaperInvalidStatus, "status_transition", map[string]interface{}{
				"from": paper.Status,
				"to":   next,
			})
		}
		if next == models.PaperPublished && paper.QuestionCount == 0 {
			return NewBusinessRuleError(ErrPaperEmpty, "publish_requires_questions", map[string]interface{}{"paper_id": id})
		}

		paper.Status = next
		return tx.Paper().Update(ctx, paper)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Paper status changed", "paper_id", id, "status", next)
	return paper, nil
}

// ===== STATISTICS =====

func (s *paperService) GetPaperStatistics(ctx context.Context, paperID uint) (*PaperStatistics, error) {
	paper, err := s.repo.Paper().GetByID(ctx, paperID)
	if err != nil {
		return nil, translateNotFound(err, ErrPaperNotFound)
	}
	sessions, err := s.repo.Session().ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return paperStatistics(paper, sessions), nil
}

// paperStatistics summarizes completed sessions. Bands are relative to the paper total:
// excellent from 90%, good from 80%, pass from the pass score.
func paperStatistics(paper *models.Paper, sessions []*models.Session) *PaperStatistics {
	stats := &PaperStatistics{PaperID: paper.ID, TotalSessions: len(sessions)}

	sum, passed := 0, 0
	for _, session := range sessions {
		if session.Status != models.SessionCompleted || session.Score == nil {
			continue
		}
		score := *session.Score
		if stats.CompletedSessions == 0 || score > stats.HighestScore {
			stats.HighestScore = score
		}
		if stats.CompletedSessions == 0 || score < stats.LowestScore {
			stats.LowestScore = score
		}
		stats.CompletedSessions++
		sum += score
		if session.Passed {
			passed++
		}

		total := paper.TotalScore
		if session.TotalScore != nil {
			total = *session.TotalScore
		}
		switch {
		case total > 0 && score*10 >= total*9:
			stats.ScoreBands.Excellent++
		case total > 0 && score*10 >= total*8:
			stats.ScoreBands.Good++
		case score >= paper.PassScore:
			stats.ScoreBands.Pass++
		default:
			stats.ScoreBands.Fail++
		}
	}

	if stats.CompletedSessions > 0 {
		stats.AverageScore = models.Round2(float64(sum) / float64(stats.CompletedSessions))
		stats.PassRate = models.Round2(float64(passed) / float64(stats.CompletedSessions) * 100)
	}
	return stats
}

// ===== HELPERS =====

// lookupCandidates resolves bank questions for the requested scores.
func lookupCandidates(ctx context.Context, tx repositories.Repository, questions []QuestionScore) ([]paperCandidate, error) {
	candidates := make([]paperCandidate, 0, len(questions))
	for _, q := range questions {
		question, err := tx.Question().GetByID(ctx, q.QuestionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("%w: %d", ErrQuestionNotFound, q.QuestionID)
			}
			return nil, err
		}
		candidates = append(candidates, paperCandidate{question: question, score: q.Score})
	}
	return candidates, nil
}

func paperStatusEvent(paper *models.Paper) events.PaperStatusEvent {
	return events.PaperStatusEvent{
		PaperID:       paper.ID,
		Title:         paper.Title,
		Status:        string(paper.Status),
		QuestionCount: paper.QuestionCount,
		TotalScore:    paper.TotalScore,
	}
}
