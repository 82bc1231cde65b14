package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
	Essay          QuestionType = "essay"
)

// QuestionTypes lists the types the bank can hold, in display order.
var QuestionTypes = []QuestionType{SingleChoice, MultipleChoice, TrueFalse, FillBlank, Essay}

func (t QuestionType) IsValid() bool {
	for _, v := range QuestionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// HasOptions reports whether questions of this type carry a selectable option list
// that can be reordered per paper.
func (t QuestionType) HasOptions() bool {
	return t == SingleChoice || t == MultipleChoice
}

func (t QuestionType) Label() string {
	switch t {
	case SingleChoice:
		return "Single choice"
	case MultipleChoice:
		return "Multiple choice"
	case TrueFalse:
		return "True / False"
	case FillBlank:
		return "Fill in the blank"
	case Essay:
		return "Essay"
	default:
		return string(t)
	}
}

// Question is a read-only view of a question bank entry. The bank owns these rows;
// this service never writes them.
type Question struct {
	ID             uint                       `json:"id" gorm:"primaryKey"`
	CategoryID     *uint                      `json:"category_id" gorm:"index"`
	Type           QuestionType               `json:"type" gorm:"not null;size:32;index"`
	Difficulty     int                        `json:"difficulty" gorm:"not null;default:3"`
	Content        string                     `json:"content" gorm:"type:text"`
	CorrectAnswers datatypes.JSONSlice[string] `json:"correct_answers" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`

	Options []Option `json:"options" gorm:"foreignKey:QuestionID"`
	Tags    []Tag    `json:"tags,omitempty" gorm:"many2many:question_tags"`
}

func (Question) TableName() string { return "questions" }

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Content    string `json:"content" gorm:"type:text"`
	Sort       int    `json:"sort" gorm:"default:0"`
}

func (Option) TableName() string { return "question_options" }

type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:64;uniqueIndex"`
}

func (Tag) TableName() string { return "tags" }

// OptionMarker returns the answer marker for the option at position i:
// A..Z, then AA, AB and so on.
func OptionMarker(i int) string {
	if i < 0 {
		return ""
	}
	marker := ""
	for i >= 0 {
		marker = string(rune('A'+i%26)) + marker
		i = i/26 - 1
	}
	return marker
}

// MarkerIndex is the inverse of OptionMarker. It returns -1 for anything that is not
// an upper-case letter marker. Plain numeric markers are read as zero-based indices.
func MarkerIndex(marker string) int {
	if marker == "" {
		return -1
	}
	if n, err := strconv.Atoi(marker); err == nil {
		if n < 0 {
			return -1
		}
		return n
	}
	idx := 0
	for _, r := range marker {
		if r < 'A' || r > 'Z' {
			return -1
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1
}
