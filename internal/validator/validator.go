package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/go-playground/validator/v10"
)

type ValidationErrors = apperrors.ValidationErrors

// Validator wraps the struct validator with this service's custom tags.
type Validator struct {
	structValidator *validator.Validate
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{structValidator: structValidator}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates s and converts failures into ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("paper_status", validatePaperStatus)
	validate.RegisterValidation("generation_type", validateGenerationType)
	validate.RegisterValidation("answer_kind", validateAnswerKind)
	validate.RegisterValidation("distribution", validateDistribution)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}

func validatePaperStatus(fl validator.FieldLevel) bool {
	return models.PaperStatus(fl.Field().String()).IsValid()
}

func validateGenerationType(fl validator.FieldLevel) bool {
	return models.GenerationType(fl.Field().String()).IsValid()
}

func validateAnswerKind(fl validator.FieldLevel) bool {
	switch models.AnswerKind(fl.Field().String()) {
	case models.AnswerSingle, models.AnswerMultiple, models.AnswerText:
		return true
	}
	return false
}

// validateDistribution accepts a list of distribution entries with non-empty keys and
// non-negative percentages.
func validateDistribution(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < field.Len(); i++ {
		entry, ok := field.Index(i).Interface().(models.DistributionEntry)
		if !ok || strings.TrimSpace(entry.Key) == "" || entry.Percent < 0 {
			return false
		}
	}
	return true
}
