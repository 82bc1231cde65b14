package models

import (
	"sort"
	"time"
)

type PaperStatus string

const (
	PaperDraft     PaperStatus = "draft"
	PaperPublished PaperStatus = "published"
	PaperArchived  PaperStatus = "archived"
	PaperClosed    PaperStatus = "closed"
)

func (s PaperStatus) IsValid() bool {
	switch s {
	case PaperDraft, PaperPublished, PaperArchived, PaperClosed:
		return true
	}
	return false
}

func (s PaperStatus) Label() string {
	switch s {
	case PaperDraft:
		return "Draft"
	case PaperPublished:
		return "Published"
	case PaperArchived:
		return "Archived"
	case PaperClosed:
		return "Closed"
	default:
		return string(s)
	}
}

// CanTransitionTo reports whether a paper may move from s to next.
// Status only moves forward: draft, published, archived.
func (s PaperStatus) CanTransitionTo(next PaperStatus) bool {
	switch s {
	case PaperDraft:
		return next == PaperPublished
	case PaperPublished:
		return next == PaperArchived
	default:
		return false
	}
}

type GenerationType string

const (
	GenerationManual      GenerationType = "manual"
	GenerationTemplate    GenerationType = "template"
	GenerationRandom      GenerationType = "random"
	GenerationIntelligent GenerationType = "intelligent"
	GenerationAdaptive    GenerationType = "adaptive"
)

func (g GenerationType) IsValid() bool {
	switch g {
	case GenerationManual, GenerationTemplate, GenerationRandom, GenerationIntelligent, GenerationAdaptive:
		return true
	}
	return false
}

const (
	DefaultPassScore = 60
	DefaultTimeLimit = 3600
)

type Paper struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	Title              string         `json:"title" gorm:"not null;size:120;uniqueIndex" validate:"required,max=120"`
	Description        *string        `json:"description" gorm:"type:text"`
	Status             PaperStatus    `json:"status" gorm:"not null;size:16;default:draft;index" validate:"omitempty,paper_status"`
	GenerationType     GenerationType `json:"generation_type" gorm:"not null;size:16;default:manual" validate:"omitempty,generation_type"`
	TotalScore         int            `json:"total_score" gorm:"not null;default:0"`
	PassScore          int            `json:"pass_score" gorm:"not null;default:60" validate:"min=0"`
	TimeLimit          *int           `json:"time_limit" validate:"omitempty,min=0"` // seconds
	QuestionCount      int            `json:"question_count" gorm:"not null;default:0"`
	RandomizeQuestions bool           `json:"randomize_questions" gorm:"default:false"`
	RandomizeOptions   bool           `json:"randomize_options" gorm:"default:false"`
	AllowRetake        bool           `json:"allow_retake" gorm:"default:true"`
	MaxAttempts        *int           `json:"max_attempts" validate:"omitempty,min=1"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	Questions []PaperQuestion `json:"questions,omitempty" gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE"`
	Templates []PaperTemplate `json:"templates,omitempty" gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE"`
}

func (Paper) TableName() string { return "papers" }

// RecalculateStatistics derives TotalScore and QuestionCount from the loaded question set.
// Every structural change to Questions must be followed by a call.
func (p *Paper) RecalculateStatistics() {
	total := 0
	for _, pq := range p.Questions {
		total += pq.Score
	}
	p.TotalScore = total
	p.QuestionCount = len(p.Questions)
}

// HasTimeLimit reports whether sessions on this paper expire.
func (p *Paper) HasTimeLimit() bool {
	return p.TimeLimit != nil && *p.TimeLimit > 0
}

// NextSortOrder returns one past the highest sort order in use.
func (p *Paper) NextSortOrder() int {
	next := 1
	for _, pq := range p.Questions {
		if pq.SortOrder >= next {
			next = pq.SortOrder + 1
		}
	}
	return next
}

func (p *Paper) ContainsQuestion(questionID uint) bool {
	return p.FindByQuestionID(questionID) != nil
}

func (p *Paper) FindByQuestionID(questionID uint) *PaperQuestion {
	for i := range p.Questions {
		if p.Questions[i].QuestionID == questionID {
			return &p.Questions[i]
		}
	}
	return nil
}

// SortQuestions orders Questions by sort order, breaking ties by id.
func (p *Paper) SortQuestions() {
	sort.SliceStable(p.Questions, func(i, j int) bool {
		if p.Questions[i].SortOrder == p.Questions[j].SortOrder {
			return p.Questions[i].ID < p.Questions[j].ID
		}
		return p.Questions[i].SortOrder < p.Questions[j].SortOrder
	})
}

// Resequence renumbers questions 1..N following their current order.
func (p *Paper) Resequence() {
	p.SortQuestions()
	for i := range p.Questions {
		p.Questions[i].SortOrder = i + 1
	}
}

type PaperQuestion struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	PaperID       uint           `json:"paper_id" gorm:"not null;uniqueIndex:idx_paper_question"`
	QuestionID    uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_paper_question"`
	SortOrder     int            `json:"sort_order" gorm:"not null;default:0;index" validate:"min=0"`
	Score         int            `json:"score" gorm:"not null;default:1" validate:"min=1"`
	IsRequired    bool           `json:"is_required" gorm:"default:true"`
	CustomOptions *CustomOptions `json:"custom_options,omitempty" gorm:"type:jsonb;serializer:json"`
	Remark        *string        `json:"remark" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (PaperQuestion) TableName() string { return "paper_questions" }

// CustomOptions overrides a bank question's option order and answer key for one paper.
type CustomOptions struct {
	Options       []Option `json:"options"`
	CorrectAnswer []string `json:"correct_answer"`
}

// QuestionType returns the joined bank question's type, or "" when it was not loaded.
func (pq *PaperQuestion) QuestionType() QuestionType {
	if pq.Question == nil {
		return ""
	}
	return pq.Question.Type
}
