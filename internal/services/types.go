package services

import (
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ===== PAPER REQUESTS =====

type CreatePaperRequest struct {
	Title              string          `json:"title" validate:"required,max=120"`
	Description        *string         `json:"description"`
	PassScore          *int            `json:"pass_score" validate:"omitempty,min=0"`
	TimeLimit          *int            `json:"time_limit" validate:"omitempty,min=0"`
	AllowRetake        *bool           `json:"allow_retake"`
	MaxAttempts        *int            `json:"max_attempts" validate:"omitempty,min=1"`
	RandomizeQuestions bool            `json:"randomize_questions"`
	RandomizeOptions   bool            `json:"randomize_options"`
	Questions          []QuestionScore `json:"questions" validate:"omitempty,dive"`
}

// QuestionScore adds a bank question to a paper. A zero score is derived from the
// question type and difficulty.
type QuestionScore struct {
	QuestionID uint `json:"question_id" validate:"required"`
	Score      int  `json:"score" validate:"min=0"`
}

// ===== GENERATION REQUESTS =====

type RandomPaperRequest struct {
	Title                  *string                    `json:"title" validate:"omitempty,max=120"`
	Description            *string                    `json:"description"`
	CategoryIDs            []uint                     `json:"category_ids"`
	TotalQuestions         int                        `json:"total_questions" validate:"required,min=1"`
	TypeDistribution       []models.DistributionEntry `json:"type_distribution" validate:"omitempty,distribution"`
	DifficultyDistribution []models.DistributionEntry `json:"difficulty_distribution" validate:"omitempty,distribution"`
	TimeLimit              *int                       `json:"time_limit" validate:"omitempty,min=0"`
	PassScore              *int                       `json:"pass_score" validate:"omitempty,min=0"`
}

type TagPaperRequest struct {
	Title         *string `json:"title" validate:"omitempty,max=120"`
	TagIDs        []uint  `json:"tag_ids" validate:"required,min=1"`
	QuestionCount int     `json:"question_count" validate:"required,min=1"`
	TimeLimit     *int    `json:"time_limit" validate:"omitempty,min=0"`
	PassScore     *int    `json:"pass_score" validate:"omitempty,min=0"`
}

type CreateTemplateRequest struct {
	Name                   string                     `json:"name" validate:"required,max=120"`
	Description            *string                    `json:"description"`
	TotalScore             int                        `json:"total_score" validate:"min=0"`
	PassScore              *int                       `json:"pass_score" validate:"omitempty,min=0"`
	TimeLimit              *int                       `json:"time_limit" validate:"omitempty,min=0"`
	ShuffleQuestions       bool                       `json:"shuffle_questions"`
	ShuffleOptions         bool                       `json:"shuffle_options"`
	DifficultyDistribution []models.DistributionEntry `json:"difficulty_distribution" validate:"omitempty,distribution"`
	TypeDistribution       []models.DistributionEntry `json:"type_distribution" validate:"omitempty,distribution"`
	Rules                  []TemplateRuleRequest      `json:"rules" validate:"required,min=1,dive"`
}

type TemplateRuleRequest struct {
	CategoryID       *uint                `json:"category_id"`
	QuestionType     *models.QuestionType `json:"question_type" validate:"omitempty,question_type"`
	Difficulty       *string              `json:"difficulty" validate:"omitempty,max=16"`
	QuestionCount    int                  `json:"question_count" validate:"min=1"`
	ScorePerQuestion int                  `json:"score_per_question" validate:"min=1"`
	MinCorrectRate   *float64             `json:"min_correct_rate" validate:"omitempty,min=0,max=100"`
	MaxCorrectRate   *float64             `json:"max_correct_rate" validate:"omitempty,min=0,max=100"`
	ExcludeUsed      bool                 `json:"exclude_used"`
}

// ===== SCORING RESPONSES =====

// QuestionResult is the graded outcome of one paper question.
type QuestionResult struct {
	PaperQuestionID uint                `json:"paper_question_id"`
	QuestionID      uint                `json:"question_id"`
	QuestionType    models.QuestionType `json:"question_type"`
	Difficulty      int                 `json:"difficulty"`
	SortOrder       int                 `json:"sort_order"`
	SubmittedAnswer *models.Answer      `json:"submitted_answer,omitempty"`
	IsCorrect       bool                `json:"is_correct"`
	AwardedScore    int                 `json:"awarded_score"`
	MaxScore        int                 `json:"max_score"`
	WasAnswered     bool                `json:"was_answered"`
}

type ResultSummary struct {
	TotalScore   int     `json:"total_score"`
	MaxScore     int     `json:"max_score"`
	CorrectCount int     `json:"correct_count"`
	TotalCount   int     `json:"total_count"`
	CorrectRate  float64 `json:"correct_rate"`
}

type DetailedResults struct {
	SessionID uint             `json:"session_id"`
	Results   []QuestionResult `json:"results"`
	Summary   ResultSummary    `json:"summary"`
}

// ===== SESSION RESPONSES =====

type SessionProgress struct {
	SessionID        uint                 `json:"session_id"`
	Status           models.SessionStatus `json:"status"`
	TotalQuestions   int                  `json:"total_questions"`
	Answered         int                  `json:"answered"`
	Unanswered       int                  `json:"unanswered"`
	Percentage       float64              `json:"percentage"`
	RemainingSeconds *int                 `json:"remaining_seconds,omitempty"`
	IsExpired        bool                 `json:"is_expired"`
}

type SessionStatistics struct {
	SessionID     uint                                       `json:"session_id"`
	Score         *int                                       `json:"score"`
	TotalScore    *int                                       `json:"total_score"`
	Percentage    *float64                                   `json:"percentage"`
	Passed        bool                                       `json:"passed"`
	Duration      *int                                       `json:"duration"`
	AttemptNumber int                                        `json:"attempt_number"`
	ByType        map[models.QuestionType]*grading.GroupStats `json:"by_type"`
}

// ===== PAPER STATISTICS =====

type ScoreBands struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Pass      int `json:"pass"`
	Fail      int `json:"fail"`
}

type PaperStatistics struct {
	PaperID           uint       `json:"paper_id"`
	TotalSessions     int        `json:"total_sessions"`
	CompletedSessions int        `json:"completed_sessions"`
	AverageScore      float64    `json:"average_score"`
	HighestScore      int        `json:"highest_score"`
	LowestScore       int        `json:"lowest_score"`
	PassRate          float64    `json:"pass_rate"`
	ScoreBands        ScoreBands `json:"score_bands"`
}
