package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"gorm.io/datatypes"
)

const (
	defaultRandomTitle = "Random Paper"
	defaultTagTitle    = "Tag Practice"
	generatedTitleTime = "2006-01-02 15:04"
)

type generatorService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    eventEmitter
	opts      options
}

func NewGeneratorService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator, opts ...Option) GeneratorService {
	return &generatorService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    eventEmitter{publisher: publisher, logger: logger},
		opts:      newOptions(opts),
	}
}

// ===== GENERATION STRATEGIES =====

// GenerateFromTemplate fills a draft paper rule by rule, in rule order.
func (s *generatorService) GenerateFromTemplate(ctx context.Context, templateID uint) (*models.Paper, error) {
	s.logger.Info("Generating paper from template", "template_id", templateID)

	tpl, err := s.repo.Template().GetByIDWithRules(ctx, templateID)
	if err != nil {
		return nil, translateNotFound(err, ErrTemplateNotFound)
	}
	if !tpl.IsActive || len(tpl.Rules) == 0 {
		return nil, NewBusinessRuleError(ErrInvalidTemplate, "template_usable", map[string]interface{}{
			"template_id": templateID,
			"is_active":   tpl.IsActive,
			"rules":       len(tpl.Rules),
		})
	}

	paper := &models.Paper{
		Title:          fmt.Sprintf("%s - %s", tpl.Name, s.opts.now().Format(generatedTitleTime)),
		Description:    tpl.Description,
		Status:         models.PaperDraft,
		GenerationType: models.GenerationTemplate,
		PassScore:      tpl.PassScore,
		TimeLimit:      tpl.TimeLimit,
		AllowRetake:    true,
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := s.createPaper(ctx, tx, paper); err != nil {
			return err
		}

		for _, rule := range tpl.Rules {
			criteria := repositories.QuestionSearchCriteria{
				ExcludeIDs: selectedIDs(paper),
				Limit:      rule.QuestionCount,
			}
			if rule.CategoryID != nil {
				criteria.CategoryIDs = []uint{*rule.CategoryID}
			}
			if rule.QuestionType != nil {
				criteria.Types = []models.QuestionType{*rule.QuestionType}
			}
			if rule.Difficulty != nil {
				criteria.Difficulties = grading.DifficultyLevels(*rule.Difficulty)
			}

			questions, _, err := tx.Question().Search(ctx, criteria)
			if err != nil {
				return fmt.Errorf("failed to search questions for rule %d: %w", rule.ID, err)
			}
			if len(questions) < rule.QuestionCount {
				s.logger.Warn("Question bank short for template rule",
					"template_id", templateID, "rule_id", rule.ID, "wanted", rule.QuestionCount, "found", len(questions))
			}

			candidates := make([]paperCandidate, 0, len(questions))
			for _, q := range questions {
				candidates = append(candidates, paperCandidate{question: q, score: rule.ScorePerQuestion})
			}
			if _, err := attachQuestions(ctx, tx, paper, candidates); err != nil {
				return err
			}
		}

		return s.applyShuffles(ctx, tx, paper, tpl.ShuffleQuestions, tpl.ShuffleOptions)
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, paper, &templateID)
	return paper, nil
}

// GenerateRandom draws questions per (type, difficulty) bucket, backfills any shortfall
// from the whole category set, then shuffles the final order.
func (s *generatorService) GenerateRandom(ctx context.Context, req *RandomPaperRequest) (*models.Paper, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	total := req.TotalQuestions
	s.logger.Info("Generating random paper", "total_questions", total, "categories", req.CategoryIDs)

	typeBuckets := bucketsOrAll(total, req.TypeDistribution)
	difficultyBuckets := bucketsOrAll(total, req.DifficultyDistribution)

	var selected []*models.Question
	seen := make(map[uint]bool)
	collect := func(questions []*models.Question) {
		for _, q := range questions {
			if !seen[q.ID] {
				seen[q.ID] = true
				selected = append(selected, q)
			}
		}
	}

	for _, tb := range typeBuckets {
		for _, db := range difficultyBuckets {
			n := grading.ComboCount(tb.Count, db.Count, total)
			if n == 0 {
				continue
			}
			criteria := repositories.QuestionSearchCriteria{
				CategoryIDs:  req.CategoryIDs,
				Difficulties: grading.DifficultyLevels(db.Key),
				ExcludeIDs:   keys(seen),
				Limit:        n,
				Random:       true,
			}
			if tb.Key != "" {
				criteria.Types = []models.QuestionType{models.QuestionType(tb.Key)}
			}
			questions, _, err := s.repo.Question().Search(ctx, criteria)
			if err != nil {
				return nil, fmt.Errorf("failed to search questions: %w", err)
			}
			collect(questions)
		}
	}

	if len(selected) < total {
		questions, _, err := s.repo.Question().Search(ctx, repositories.QuestionSearchCriteria{
			CategoryIDs: req.CategoryIDs,
			ExcludeIDs:  keys(seen),
			Limit:       total - len(selected),
			Random:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to backfill questions: %w", err)
		}
		collect(questions)
	}
	if len(selected) > total {
		selected = selected[:total]
	}

	candidates := make([]paperCandidate, len(selected))
	for i, j := range s.opts.randomizer.Perm(len(selected)) {
		candidates[i] = paperCandidate{question: selected[j]}
	}

	paper := &models.Paper{
		Title:          stringOr(req.Title, defaultRandomTitle),
		Description:    req.Description,
		Status:         models.PaperDraft,
		GenerationType: models.GenerationRandom,
		PassScore:      intOr(req.PassScore, models.DefaultPassScore),
		TimeLimit:      timeLimitOrDefault(req.TimeLimit),
		AllowRetake:    true,
	}
	if err := s.persist(ctx, paper, candidates); err != nil {
		return nil, err
	}

	s.announce(ctx, paper, nil)
	return paper, nil
}

// GenerateByTags builds a practice paper from questions carrying any of the tags.
func (s *generatorService) GenerateByTags(ctx context.Context, req *TagPaperRequest) (*models.Paper, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	s.logger.Info("Generating paper by tags", "tag_ids", req.TagIDs, "question_count", req.QuestionCount)

	questions, _, err := s.repo.Question().Search(ctx, repositories.QuestionSearchCriteria{
		TagIDs: req.TagIDs,
		Limit:  req.QuestionCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}

	candidates := make([]paperCandidate, 0, len(questions))
	for _, q := range questions {
		candidates = append(candidates, paperCandidate{question: q})
	}

	paper := &models.Paper{
		Title:          stringOr(req.Title, defaultTagTitle),
		Status:         models.PaperDraft,
		GenerationType: models.GenerationIntelligent,
		PassScore:      intOr(req.PassScore, models.DefaultPassScore),
		TimeLimit:      timeLimitOrDefault(req.TimeLimit),
		AllowRetake:    true,
	}
	if err := s.persist(ctx, paper, candidates); err != nil {
		return nil, err
	}

	s.announce(ctx, paper, nil)
	return paper, nil
}

// ===== TEMPLATES =====

func (s *generatorService) CreateTemplate(ctx context.Context, req *CreateTemplateRequest) (*models.PaperTemplate, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	tpl := &models.PaperTemplate{
		Name:                   req.Name,
		Description:            req.Description,
		TotalScore:             req.TotalScore,
		PassScore:              intOr(req.PassScore, models.DefaultPassScore),
		TimeLimit:              req.TimeLimit,
		ShuffleQuestions:       req.ShuffleQuestions,
		ShuffleOptions:         req.ShuffleOptions,
		IsActive:               true,
		DifficultyDistribution: datatypes.JSONSlice[models.DistributionEntry](req.DifficultyDistribution),
		TypeDistribution:       datatypes.JSONSlice[models.DistributionEntry](req.TypeDistribution),
	}
	for i, r := range req.Rules {
		tpl.Rules = append(tpl.Rules, models.TemplateRule{
			CategoryID:       r.CategoryID,
			QuestionType:     r.QuestionType,
			Difficulty:       r.Difficulty,
			QuestionCount:    r.QuestionCount,
			ScorePerQuestion: r.ScorePerQuestion,
			Sort:             i + 1,
			MinCorrectRate:   r.MinCorrectRate,
			MaxCorrectRate:   r.MaxCorrectRate,
			ExcludeUsed:      r.ExcludeUsed,
		})
	}
	tpl.TotalQuestions = tpl.RuleQuestionTotal()
	if tpl.TotalScore == 0 {
		tpl.TotalScore = tpl.RuleScoreTotal()
	}

	if err := s.repo.Template().Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info("Template created", "template_id", tpl.ID, "rules", len(tpl.Rules))
	return tpl, nil
}

func (s *generatorService) GetTemplate(ctx context.Context, id uint) (*models.PaperTemplate, error) {
	tpl, err := s.repo.Template().GetByIDWithRules(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, ErrTemplateNotFound)
	}
	return tpl, nil
}

func (s *generatorService) ListTemplates(ctx context.Context) ([]*models.PaperTemplate, error) {
	return s.repo.Template().ListActive(ctx)
}

// ===== HELPERS =====

func (s *generatorService) createPaper(ctx context.Context, tx repositories.Repository, paper *models.Paper) error {
	title, err := uniqueTitle(ctx, tx, paper.Title)
	if err != nil {
		return fmt.Errorf("failed to check title: %w", err)
	}
	paper.Title = title
	if err := tx.Paper().Create(ctx, paper); err != nil {
		return err
	}
	return nil
}

func (s *generatorService) persist(ctx context.Context, paper *models.Paper, candidates []paperCandidate) error {
	return s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := s.createPaper(ctx, tx, paper); err != nil {
			return err
		}
		_, err := attachQuestions(ctx, tx, paper, candidates)
		return err
	})
}

func (s *generatorService) applyShuffles(ctx context.Context, tx repositories.Repository, paper *models.Paper, questions, options bool) error {
	if questions {
		if err := shuffleQuestionOrder(ctx, tx, paper, s.opts.randomizer); err != nil {
			return err
		}
	}
	if options {
		if _, err := shufflePaperOptions(ctx, tx, paper, s.opts.randomizer, s.logger); err != nil {
			return err
		}
	}
	return nil
}

func (s *generatorService) announce(ctx context.Context, paper *models.Paper, templateID *uint) {
	s.logger.Info("Paper generated",
		"paper_id", paper.ID, "generation_type", paper.GenerationType,
		"question_count", paper.QuestionCount, "total_score", paper.TotalScore)

	s.events.emit(ctx, events.EventPaperGenerated, events.PaperGeneratedEvent{
		PaperID:        paper.ID,
		Title:          paper.Title,
		GenerationType: string(paper.GenerationType),
		QuestionCount:  paper.QuestionCount,
		TotalScore:     paper.TotalScore,
		TemplateID:     templateID,
	})
}

// bucketsOrAll treats a missing axis as one unconstrained bucket holding every question.
func bucketsOrAll(total int, entries []models.DistributionEntry) []grading.Bucket {
	if buckets := grading.Distribute(total, entries); len(buckets) > 0 {
		return buckets
	}
	return []grading.Bucket{{Count: total}}
}

func selectedIDs(paper *models.Paper) []uint {
	ids := make([]uint, 0, len(paper.Questions))
	for _, pq := range paper.Questions {
		ids = append(ids, pq.QuestionID)
	}
	return ids
}

func keys(set map[uint]bool) []uint {
	return slices.Sorted(maps.Keys(set))
}

func stringOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func timeLimitOrDefault(v *int) *int {
	if v != nil {
		return v
	}
	limit := models.DefaultTimeLimit
	return &limit
}
