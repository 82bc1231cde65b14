package services

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type PaperService interface {
	CreatePaper(ctx context.Context, req *CreatePaperRequest) (*models.Paper, error)
	GetPaper(ctx context.Context, id uint) (*models.Paper, error)
	DeletePaper(ctx context.Context, id uint) error

	// Question management. Every call leaves TotalScore and QuestionCount in step with
	// the paper's question set.
	AddQuestion(ctx context.Context, paperID, questionID uint, score, sortOrder int) (*models.PaperQuestion, error)
	AddQuestions(ctx context.Context, paperID uint, questions []QuestionScore) (*models.Paper, error)
	RemoveQuestion(ctx context.Context, paperID, paperQuestionID uint) error
	UpdateQuestionOrder(ctx context.Context, paperID uint, order map[uint]int) (*models.Paper, error)
	ResequenceQuestions(ctx context.Context, paperID uint) (*models.Paper, error)
	ShuffleQuestions(ctx context.Context, paperID uint) (*models.Paper, error)
	ShuffleOptions(ctx context.Context, paperID uint) (*models.Paper, error)
	DuplicatePaper(ctx context.Context, paperID uint, title string) (*models.Paper, error)

	// Status
	PublishPaper(ctx context.Context, id uint) (*models.Paper, error)
	ArchivePaper(ctx context.Context, id uint) (*models.Paper, error)

	GetPaperStatistics(ctx context.Context, paperID uint) (*PaperStatistics, error)
}

type GeneratorService interface {
	GenerateFromTemplate(ctx context.Context, templateID uint) (*models.Paper, error)
	GenerateRandom(ctx context.Context, req *RandomPaperRequest) (*models.Paper, error)
	GenerateByTags(ctx context.Context, req *TagPaperRequest) (*models.Paper, error)

	// Templates
	CreateTemplate(ctx context.Context, req *CreateTemplateRequest) (*models.PaperTemplate, error)
	GetTemplate(ctx context.Context, id uint) (*models.PaperTemplate, error)
	ListTemplates(ctx context.Context) ([]*models.PaperTemplate, error)
}

// ScoringService grades a session against its paper. It never mutates the session.
type ScoringService interface {
	CalculateScore(ctx context.Context, session *models.Session) (int, error)
	GetDetailedResults(ctx context.Context, session *models.Session) (*DetailedResults, error)
	GetScoreByType(ctx context.Context, session *models.Session) (map[models.QuestionType]*grading.GroupStats, error)
	GetScoreByDifficulty(ctx context.Context, session *models.Session) (map[int]*grading.GroupStats, error)
}

type SessionService interface {
	// Lifecycle
	CreateSession(ctx context.Context, paperID uint, userID string) (*models.Session, error)
	StartSession(ctx context.Context, sessionID uint) (*models.Session, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID uint, answer models.Answer) (*models.Session, error)
	CompleteSession(ctx context.Context, sessionID uint) (*models.Session, error)
	ExpireSession(ctx context.Context, sessionID uint) (*models.Session, error)
	CancelSession(ctx context.Context, sessionID uint) (*models.Session, error)
	RetakeSession(ctx context.Context, paperID uint, userID string) (*models.Session, error)
	ProcessExpiredSessions(ctx context.Context) (int, error)

	// Per-question timing
	StartQuestionTiming(ctx context.Context, sessionID, questionID uint) error
	RecordQuestionTiming(ctx context.Context, sessionID, questionID uint) (int, error)

	// Reads
	GetSession(ctx context.Context, sessionID uint) (*models.Session, error)
	GetProgress(ctx context.Context, sessionID uint) (*SessionProgress, error)
	GetStatistics(ctx context.Context, sessionID uint) (*SessionStatistics, error)
	GetUserHistory(ctx context.Context, userID string, paperID *uint) ([]*models.Session, error)
	GetBestScores(ctx context.Context, userID string) ([]repositories.BestScore, error)
}

type ExportService interface {
	ExportSessionResults(ctx context.Context, sessionID uint) ([]byte, error)
	ExportPaperSessions(ctx context.Context, paperID uint) ([]byte, error)
}
