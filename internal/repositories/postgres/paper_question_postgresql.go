package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaperQuestionPostgreSQL stores paper questions. The ordered listing used by scoring is
// read through the cache outside transactions; writes invalidate the paper's entry.
type PaperQuestionPostgreSQL struct {
	db    *gorm.DB
	cache cache.CacheService
	ttl   time.Duration
	tx    *txState
}

func paperQuestionsKey(paperID uint) string {
	return fmt.Sprintf("exam:paper:%d:questions", paperID)
}

func (pq *PaperQuestionPostgreSQL) CreateBatch(ctx context.Context, items []*models.PaperQuestion) error {
	if len(items) == 0 {
		return nil
	}
	if err := pq.db.WithContext(ctx).Omit(clause.Associations).CreateInBatches(items, 100).Error; err != nil {
		return fmt.Errorf("failed to create paper questions: %w", err)
	}
	for _, paperID := range distinctPapers(items) {
		pq.invalidate(ctx, paperID)
	}
	return nil
}

func (pq *PaperQuestionPostgreSQL) UpdateBatch(ctx context.Context, items []*models.PaperQuestion) error {
	db := pq.db.WithContext(ctx)
	for _, item := range items {
		if err := db.Omit(clause.Associations).Save(item).Error; err != nil {
			return fmt.Errorf("failed to update paper question %d: %w", item.ID, err)
		}
	}
	for _, paperID := range distinctPapers(items) {
		pq.invalidate(ctx, paperID)
	}
	return nil
}

func (pq *PaperQuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	var item models.PaperQuestion
	db := pq.db.WithContext(ctx)
	if err := db.First(&item, id).Error; err != nil {
		return err
	}
	if err := db.Delete(&models.PaperQuestion{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete paper question: %w", err)
	}
	pq.invalidate(ctx, item.PaperID)
	return nil
}

func (pq *PaperQuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.PaperQuestion, error) {
	var item models.PaperQuestion
	if err := pq.db.WithContext(ctx).Preload("Question.Options", orderOptions).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (pq *PaperQuestionPostgreSQL) ListByPaper(ctx context.Context, paperID uint) ([]*models.PaperQuestion, error) {
	key := paperQuestionsKey(paperID)
	if pq.tx == nil {
		var cached []*models.PaperQuestion
		err := pq.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, err
		}
	}

	var items []*models.PaperQuestion
	err := pq.db.WithContext(ctx).
		Where("paper_id = ?", paperID).
		Order("sort_order ASC, id ASC").
		Preload("Question.Options", orderOptions).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list paper questions: %w", err)
	}

	if pq.tx == nil {
		if err := pq.cache.Set(ctx, key, items, pq.ttl); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (pq *PaperQuestionPostgreSQL) invalidate(ctx context.Context, paperID uint) {
	if pq.tx != nil {
		pq.tx.markPaper(paperID)
		return
	}
	_ = pq.cache.Delete(ctx, paperQuestionsKey(paperID))
}

func distinctPapers(items []*models.PaperQuestion) []uint {
	seen := make(map[uint]struct{}, 1)
	var ids []uint
	for _, item := range items {
		if _, ok := seen[item.PaperID]; ok {
			continue
		}
		seen[item.PaperID] = struct{}{}
		ids = append(ids, item.PaperID)
	}
	return ids
}
