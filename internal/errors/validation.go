package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Path    string      `json:"path,omitempty"` // e.g. rules[1].question_count
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.location(), e.Message)
}

func (e ValidationError) location() string {
	if e.Path != "" {
		return e.Path
	}
	return e.Field
}

// ValidationErrors is returned for requests that fail field validation.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + ve[0].Error()
	default:
		return fmt.Sprintf("validation failed: %d field errors", len(ve))
	}
}

// Has reports whether any error concerns field.
func (ve ValidationErrors) Has(field string) bool {
	for _, e := range ve {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ToValidationErrors converts go-playground validation failures. Other errors yield nil.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Path:    trimRoot(fe.Namespace()),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// trimRoot drops the struct name from a validator namespace.
func trimRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

var ruleMessages = map[string]string{
	"required":        "is required",
	"question_type":   "must be one of single_choice, multiple_choice, true_false, fill_blank, essay",
	"paper_status":    "must be one of draft, published, archived, closed",
	"generation_type": "must be one of manual, template, random, intelligent, adaptive",
	"answer_kind":     "must be one of single, multiple, text",
	"distribution":    "entries need a key and a non-negative percent",
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := ruleMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unitFor(fe.Kind()))
	case "max", "lte":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unitFor(fe.Kind()))
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

func unitFor(kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Map:
		return " items"
	default:
		return ""
	}
}
