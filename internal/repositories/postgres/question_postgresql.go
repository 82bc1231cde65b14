package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// QuestionPostgreSQL reads the question bank tables. It never writes.
type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) *QuestionPostgreSQL {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Search(ctx context.Context, criteria repositories.QuestionSearchCriteria) ([]*models.Question, int64, error) {
	var questions []*models.Question
	var total int64

	query := q.db.WithContext(ctx).Model(&models.Question{})
	if len(criteria.CategoryIDs) > 0 {
		query = query.Where("category_id IN ?", criteria.CategoryIDs)
	}
	if len(criteria.Types) > 0 {
		query = query.Where("type IN ?", criteria.Types)
	}
	if len(criteria.Difficulties) > 0 {
		query = query.Where("difficulty IN ?", criteria.Difficulties)
	}
	if len(criteria.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", criteria.ExcludeIDs)
	}
	if len(criteria.TagIDs) > 0 {
		tagged := q.db.Table("question_tags").Select("question_id").Where("tag_id IN ?", criteria.TagIDs)
		query = query.Where("id IN (?)", tagged)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	if criteria.Random {
		query = query.Order("RANDOM()")
	} else {
		query = query.Order("id ASC")
	}
	if criteria.Limit > 0 {
		query = query.Limit(criteria.Limit)
	}
	if criteria.Offset > 0 {
		query = query.Offset(criteria.Offset)
	}

	if err := query.Preload("Options", orderOptions).Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search questions: %w", err)
	}
	return questions, total, nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).Preload("Options", orderOptions).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func orderOptions(db *gorm.DB) *gorm.DB {
	return db.Order("sort ASC, id ASC")
}
