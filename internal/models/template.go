package models

import (
	"time"

	"gorm.io/datatypes"
)

// DistributionEntry is one bucket of a percentage distribution. Distributions are kept
// as ordered slices so that rounding corrections always land on the same bucket.
type DistributionEntry struct {
	Key     string  `json:"key" validate:"required"`
	Percent float64 `json:"percent" validate:"min=0"`
}

type PaperTemplate struct {
	ID                     uint                                  `json:"id" gorm:"primaryKey"`
	Name                   string                                `json:"name" gorm:"not null;size:120" validate:"required,max=120"`
	Description            *string                               `json:"description" gorm:"type:text"`
	TotalQuestions         int                                   `json:"total_questions" gorm:"default:0" validate:"min=0"`
	TotalScore             int                                   `json:"total_score" gorm:"default:100" validate:"min=0"`
	PassScore              int                                   `json:"pass_score" gorm:"default:60" validate:"min=0"`
	TimeLimit              *int                                  `json:"time_limit" validate:"omitempty,min=0"` // seconds
	ShuffleQuestions       bool                                  `json:"shuffle_questions" gorm:"default:false"`
	ShuffleOptions         bool                                  `json:"shuffle_options" gorm:"default:false"`
	IsActive               bool                                  `json:"is_active" gorm:"default:true;index"`
	DifficultyDistribution datatypes.JSONSlice[DistributionEntry] `json:"difficulty_distribution" gorm:"type:jsonb;not null;default:'[]'" validate:"omitempty,dive"`
	TypeDistribution       datatypes.JSONSlice[DistributionEntry] `json:"type_distribution" gorm:"type:jsonb;not null;default:'[]'" validate:"omitempty,dive"`
	PaperID                *uint                                 `json:"paper_id" gorm:"index"`
	CreatedAt              time.Time                             `json:"created_at"`
	UpdatedAt              time.Time                             `json:"updated_at"`

	Rules []TemplateRule `json:"rules" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" validate:"dive"`
}

func (PaperTemplate) TableName() string { return "paper_templates" }

// RuleQuestionTotal sums the question counts of all rules.
func (t *PaperTemplate) RuleQuestionTotal() int {
	total := 0
	for _, r := range t.Rules {
		total += r.QuestionCount
	}
	return total
}

// RuleScoreTotal sums the derived scores of all rules.
func (t *PaperTemplate) RuleScoreTotal() int {
	total := 0
	for _, r := range t.Rules {
		total += r.TotalScore()
	}
	return total
}

type TemplateRule struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	TemplateID       uint           `json:"template_id" gorm:"not null;index"`
	CategoryID       *uint          `json:"category_id"`
	QuestionType     *QuestionType  `json:"question_type" gorm:"size:32" validate:"omitempty,question_type"`
	Difficulty       *string        `json:"difficulty" gorm:"size:16"`
	QuestionCount    int            `json:"question_count" gorm:"not null;default:1" validate:"min=1"`
	ScorePerQuestion int            `json:"score_per_question" gorm:"not null;default:1" validate:"min=1"`
	Sort             int            `json:"sort" gorm:"default:0" validate:"min=0"`
	TagFilters       datatypes.JSON `json:"tag_filters,omitempty" gorm:"type:jsonb"`
	MinCorrectRate   *float64       `json:"min_correct_rate" validate:"omitempty,min=0,max=100"`
	MaxCorrectRate   *float64       `json:"max_correct_rate" validate:"omitempty,min=0,max=100"`
	ExcludeUsed      bool           `json:"exclude_used" gorm:"default:false"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (TemplateRule) TableName() string { return "template_rules" }

func (r TemplateRule) TotalScore() int {
	return r.QuestionCount * r.ScorePerQuestion
}
