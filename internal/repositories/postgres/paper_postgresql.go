package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaperPostgreSQL struct {
	db        *gorm.DB
	questions *PaperQuestionPostgreSQL
}

func (p *PaperPostgreSQL) Create(ctx context.Context, paper *models.Paper) error {
	if err := p.db.WithContext(ctx).Omit(clause.Associations).Create(paper).Error; err != nil {
		return fmt.Errorf("failed to create paper: %w", err)
	}
	return nil
}

func (p *PaperPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Paper, error) {
	var paper models.Paper
	if err := p.db.WithContext(ctx).First(&paper, id).Error; err != nil {
		return nil, err
	}
	return &paper, nil
}

func (p *PaperPostgreSQL) GetByIDForUpdate(ctx context.Context, id uint) (*models.Paper, error) {
	var paper models.Paper
	if err := p.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&paper, id).Error; err != nil {
		return nil, err
	}
	return &paper, nil
}

func (p *PaperPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Paper, error) {
	var paper models.Paper
	err := p.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Questions.Question.Options", orderOptions).
		First(&paper, id).Error
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// Update saves the paper's own columns. Question rows are written through PaperQuestionPostgreSQL.
func (p *PaperPostgreSQL) Update(ctx context.Context, paper *models.Paper) error {
	if err := p.db.WithContext(ctx).Omit(clause.Associations).Save(paper).Error; err != nil {
		return fmt.Errorf("failed to update paper: %w", err)
	}
	return nil
}

func (p *PaperPostgreSQL) Delete(ctx context.Context, id uint) error {
	db := p.db.WithContext(ctx)
	if err := db.Where("paper_id = ?", id).Delete(&models.PaperQuestion{}).Error; err != nil {
		return fmt.Errorf("failed to delete paper questions: %w", err)
	}
	if err := db.Where("paper_id = ?", id).Delete(&models.PaperTemplate{}).Error; err != nil {
		return fmt.Errorf("failed to delete paper templates: %w", err)
	}
	result := db.Delete(&models.Paper{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete paper: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	p.questions.invalidate(ctx, id)
	return nil
}

func (p *PaperPostgreSQL) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	if err := p.db.WithContext(ctx).Model(&models.Paper{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check paper title: %w", err)
	}
	return count > 0, nil
}
