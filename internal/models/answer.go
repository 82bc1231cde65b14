package models

import (
	"fmt"
	"strings"
)

type AnswerKind string

const (
	AnswerUnanswered AnswerKind = ""
	AnswerSingle     AnswerKind = "single"
	AnswerMultiple   AnswerKind = "multiple"
	AnswerText       AnswerKind = "text"
)

// Answer is a submitted response. Exactly one payload field is meaningful, selected by Kind.
type Answer struct {
	Kind    AnswerKind `json:"kind"`
	Choice  string     `json:"choice,omitempty"`
	Choices []string   `json:"choices,omitempty"`
	Text    string     `json:"text,omitempty"`
}

func SingleAnswer(choice string) Answer {
	return Answer{Kind: AnswerSingle, Choice: choice}
}

func MultipleAnswer(choices ...string) Answer {
	return Answer{Kind: AnswerMultiple, Choices: append([]string(nil), choices...)}
}

func TextAnswer(text string) Answer {
	return Answer{Kind: AnswerText, Text: text}
}

func (a Answer) IsAnswered() bool {
	return a.Kind != AnswerUnanswered
}

// Validate checks that the payload matches the declared kind.
func (a Answer) Validate() error {
	switch a.Kind {
	case AnswerUnanswered:
		return nil
	case AnswerSingle:
		if strings.TrimSpace(a.Choice) == "" {
			return fmt.Errorf("single answer requires a choice")
		}
	case AnswerMultiple:
		if len(a.Choices) == 0 {
			return fmt.Errorf("multiple answer requires at least one choice")
		}
	case AnswerText:
	default:
		return fmt.Errorf("unknown answer kind %q", a.Kind)
	}
	return nil
}

// String renders the answer for reports and exports.
func (a Answer) String() string {
	switch a.Kind {
	case AnswerSingle:
		return a.Choice
	case AnswerMultiple:
		return strings.Join(a.Choices, ",")
	case AnswerText:
		return a.Text
	default:
		return ""
	}
}
