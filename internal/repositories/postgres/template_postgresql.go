package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

type TemplatePostgreSQL struct {
	db *gorm.DB
}

func NewTemplatePostgreSQL(db *gorm.DB) *TemplatePostgreSQL {
	return &TemplatePostgreSQL{db: db}
}

// Create inserts the template together with its rules.
func (t *TemplatePostgreSQL) Create(ctx context.Context, template *models.PaperTemplate) error {
	if err := t.db.WithContext(ctx).Create(template).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (t *TemplatePostgreSQL) GetByIDWithRules(ctx context.Context, id uint) (*models.PaperTemplate, error) {
	var template models.PaperTemplate
	if err := t.db.WithContext(ctx).Preload("Rules", orderRules).First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func (t *TemplatePostgreSQL) ListActive(ctx context.Context) ([]*models.PaperTemplate, error) {
	var templates []*models.PaperTemplate
	err := t.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Preload("Rules", orderRules).
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func orderRules(db *gorm.DB) *gorm.DB {
	return db.Order("sort ASC, id ASC")
}
