package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db       *gorm.DB
	cache    cache.CacheService
	cacheTTL time.Duration
	tx       *txState
}

// txState tracks cache keys touched inside a transaction so they can be
// invalidated once more after commit.
type txState struct {
	mu     sync.Mutex
	papers map[uint]struct{}
}

func (t *txState) markPaper(id uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.papers[id] = struct{}{}
}

// NewRepository returns a gorm-backed Repository. Paper question listings are cached in
// c for ttl; pass cache.NewNoopCache() to disable caching.
func NewRepository(db *gorm.DB, c cache.CacheService, ttl time.Duration) repositories.Repository {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &repository{db: db, cache: c, cacheTTL: ttl}
}

func (r *repository) Question() repositories.QuestionRepository {
	return NewQuestionPostgreSQL(r.db)
}

func (r *repository) Paper() repositories.PaperRepository {
	return &PaperPostgreSQL{db: r.db, questions: r.paperQuestions()}
}

func (r *repository) PaperQuestion() repositories.PaperQuestionRepository {
	return r.paperQuestions()
}

func (r *repository) Template() repositories.TemplateRepository {
	return NewTemplatePostgreSQL(r.db)
}

func (r *repository) Session() repositories.SessionRepository {
	return NewSessionPostgreSQL(r.db)
}

func (r *repository) paperQuestions() *PaperQuestionPostgreSQL {
	return &PaperQuestionPostgreSQL{db: r.db, cache: r.cache, ttl: r.cacheTTL, tx: r.tx}
}

func (r *repository) WithTransaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	state := &txState{papers: make(map[uint]struct{})}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx, cache: r.cache, cacheTTL: r.cacheTTL, tx: state})
	})
	if err != nil {
		return err
	}
	for paperID := range state.papers {
		if cerr := r.cache.Delete(ctx, paperQuestionsKey(paperID)); cerr != nil {
			return fmt.Errorf("failed to invalidate paper %d cache: %w", paperID, cerr)
		}
	}
	return nil
}
