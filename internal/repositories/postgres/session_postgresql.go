package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) *SessionPostgreSQL {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.Session) error {
	if session.Version == 0 {
		session.Version = 1
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("attempt %d of user %s on paper %d: %w",
				session.AttemptNumber, session.UserID, session.PaperID, repositories.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).Preload("Paper").First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDForUpdate(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, id).Error; err != nil {
		return nil, err
	}
	var paper models.Paper
	if err := db.First(&paper, session.PaperID).Error; err != nil {
		return nil, fmt.Errorf("failed to load session paper: %w", err)
	}
	session.Paper = &paper
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, session *models.Session) error {
	expected := session.Version
	session.Version = expected + 1

	result := s.db.WithContext(ctx).
		Model(session).
		Where("version = ?", expected).
		Select("*").
		Omit(clause.Associations, "created_at").
		Updates(session)
	if result.Error != nil {
		session.Version = expected
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		session.Version = expected
		return repositories.ErrStaleRecord
	}
	return nil
}

func (s *SessionPostgreSQL) GetActiveSession(ctx context.Context, userID string, paperID uint) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND paper_id = ? AND status IN ?", userID, paperID,
			[]models.SessionStatus{models.SessionPending, models.SessionInProgress}).
		Order("id DESC").
		Preload("Paper").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) HasCompletedSession(ctx context.Context, userID string, paperID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND paper_id = ? AND status = ?", userID, paperID, models.SessionCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check completed sessions: %w", err)
	}
	return count > 0, nil
}

func (s *SessionPostgreSQL) GetAttemptCount(ctx context.Context, userID string, paperID uint) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return int(count), nil
}

func (s *SessionPostgreSQL) GetExpiredSessionIDs(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.SessionInProgress, now).
		Order("expires_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return ids, nil
}

func (s *SessionPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.Session, error) {
	var sessions []*models.Session
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filters.PaperID != nil {
		query = query.Where("paper_id = ?", *filters.PaperID)
	}
	if len(filters.Status) > 0 {
		query = query.Where("status IN ?", filters.Status)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	if err := query.Order("created_at DESC, id DESC").Preload("Paper").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) ListByPaper(ctx context.Context, paperID uint) ([]*models.Session, error) {
	var sessions []*models.Session
	if err := s.db.WithContext(ctx).Where("paper_id = ?", paperID).Order("id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list paper sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) GetBestScores(ctx context.Context, userID string) ([]repositories.BestScore, error) {
	var rows []repositories.BestScore
	err := s.db.WithContext(ctx).
		Table("exam_sessions AS s").
		Select("s.paper_id, p.title AS paper_title, MAX(s.score) AS best_score, COUNT(*) AS completed_attempts").
		Joins("JOIN papers p ON p.id = s.paper_id").
		Where("s.user_id = ? AND s.status = ? AND s.score IS NOT NULL", userID, models.SessionCompleted).
		Group("s.paper_id, p.title").
		Order("s.paper_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get best scores: %w", err)
	}
	return rows, nil
}
