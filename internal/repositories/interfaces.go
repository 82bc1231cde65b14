package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound is returned by every repository lookup that finds nothing.
	ErrRecordNotFound = gorm.ErrRecordNotFound
	// ErrStaleRecord is returned when a versioned update finds the row changed underneath it.
	ErrStaleRecord = errors.New("record was modified concurrently")
	// ErrDuplicateKey is returned when an insert violates a unique index.
	ErrDuplicateKey = gorm.ErrDuplicatedKey
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// ===== FILTERS =====

// QuestionSearchCriteria narrows a question bank search. Empty slices mean no constraint.
type QuestionSearchCriteria struct {
	CategoryIDs  []uint                `json:"category_ids"`
	Types        []models.QuestionType `json:"types"`
	TagIDs       []uint                `json:"tag_ids"`
	Difficulties []int                 `json:"difficulties"`
	ExcludeIDs   []uint                `json:"exclude_ids"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
	Random       bool                  `json:"random"`
}

type SessionFilters struct {
	PaperID *uint                  `json:"paper_id"`
	Status  []models.SessionStatus `json:"status"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// ===== STATISTICS =====

// BestScore is the highest completed score a user reached on one paper.
type BestScore struct {
	PaperID           uint   `json:"paper_id"`
	PaperTitle        string `json:"paper_title"`
	BestScore         int    `json:"best_score"`
	CompletedAttempts int    `json:"completed_attempts"`
}

// ===== REPOSITORIES =====

// Repository groups the collaborators one unit of work needs. WithTransaction runs fn
// against a Repository bound to a single transaction; returning an error rolls it back.
type Repository interface {
	Question() QuestionRepository
	Paper() PaperRepository
	PaperQuestion() PaperQuestionRepository
	Template() TemplateRepository
	Session() SessionRepository

	WithTransaction(ctx context.Context, fn func(tx Repository) error) error
}

// QuestionRepository is read-only access to the question bank.
type QuestionRepository interface {
	Search(ctx context.Context, criteria QuestionSearchCriteria) ([]*models.Question, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Question, error)
}

type PaperRepository interface {
	Create(ctx context.Context, paper *models.Paper) error
	GetByID(ctx context.Context, id uint) (*models.Paper, error)
	// GetByIDForUpdate locks the paper row for the rest of the transaction. Session
	// creation takes this lock so attempts on one paper are numbered one at a time.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Paper, error)
	// GetByIDWithQuestions loads the paper with its questions ordered by sort order,
	// each joined with its bank question and options.
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Paper, error)
	Update(ctx context.Context, paper *models.Paper) error
	Delete(ctx context.Context, id uint) error
	ExistsByTitle(ctx context.Context, title string) (bool, error)
}

type PaperQuestionRepository interface {
	CreateBatch(ctx context.Context, pqs []*models.PaperQuestion) error
	UpdateBatch(ctx context.Context, pqs []*models.PaperQuestion) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.PaperQuestion, error)
	// ListByPaper returns the paper's questions ordered by sort order with bank data joined.
	ListByPaper(ctx context.Context, paperID uint) ([]*models.PaperQuestion, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, template *models.PaperTemplate) error
	// GetByIDWithRules loads the template with rules ordered by sort.
	GetByIDWithRules(ctx context.Context, id uint) (*models.PaperTemplate, error)
	ListActive(ctx context.Context) ([]*models.PaperTemplate, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uint) (*models.Session, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Session, error)
	// Update saves the session only if its stored version still equals session.Version,
	// then increments the version. A mismatch returns ErrStaleRecord.
	Update(ctx context.Context, session *models.Session) error
	// GetActiveSession returns the pending or in-progress session for the pair, or nil.
	GetActiveSession(ctx context.Context, userID string, paperID uint) (*models.Session, error)
	HasCompletedSession(ctx context.Context, userID string, paperID uint) (bool, error)
	GetAttemptCount(ctx context.Context, userID string, paperID uint) (int, error)
	// GetExpiredSessionIDs lists in-progress sessions whose deadline is before now.
	GetExpiredSessionIDs(ctx context.Context, now time.Time) ([]uint, error)
	ListByUser(ctx context.Context, userID string, filters SessionFilters) ([]*models.Session, error)
	ListByPaper(ctx context.Context, paperID uint) ([]*models.Session, error)
	GetBestScores(ctx context.Context, userID string) ([]BestScore, error)
}
