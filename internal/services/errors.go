package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Conflict errors
	ErrQuestionAlreadyInPaper = errors.New("question already exists in paper")
	ErrRetakeNotAllowed       = errors.New("paper does not allow retakes")
	ErrAttemptLimitExceeded   = errors.New("maximum attempts exceeded")
	ErrPaperDuplicateTitle    = errors.New("paper title already exists")
	ErrConcurrentAttempt      = errors.New("another attempt on this paper was opened at the same time")

	// State errors
	ErrInvalidSessionState    = errors.New("operation not allowed in current session status")
	ErrSessionAlreadyFinished = errors.New("session is already finished")
	ErrSessionStateChanged    = errors.New("session was modified by another request")
	ErrPaperInvalidStatus     = errors.New("invalid paper status transition")
	ErrPaperEmpty             = errors.New("paper has no questions")
	ErrSessionNotCompleted    = errors.New("session is not completed")

	// Expired errors
	ErrSessionExpired = errors.New("session has expired")

	// Not found / ownership errors
	ErrPaperNotFound         = errors.New("paper not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrTemplateNotFound      = errors.New("template not found")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrPaperQuestionNotFound = errors.New("paper question not found")
	ErrPaperQuestionNotOwned = errors.New("paper question does not belong to paper")
	ErrQuestionNotInPaper    = errors.New("question is not part of the paper")

	// Validation errors
	ErrAnswerKindMismatch = grading.ErrAnswerKindMismatch
	ErrInvalidTemplate    = errors.New("template is inactive or has no rules")
	ErrValidationFailed   = errors.New("validation failed")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	cause   error
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// Unwrap exposes the sentinel the rule was raised for, so kind predicates still match.
func (bre *BusinessRuleError) Unwrap() error {
	return bre.cause
}

// ===== ERROR HELPERS =====

func NewBusinessRuleError(cause error, rule string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: cause.Error(),
		Context: context,
		cause:   cause,
	}
}

// translateNotFound maps a repository miss onto the domain sentinel.
func translateNotFound(err error, notFound error) error {
	if repositories.IsNotFoundError(err) {
		return notFound
	}
	return err
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrQuestionAlreadyInPaper) ||
		errors.Is(err, ErrRetakeNotAllowed) ||
		errors.Is(err, ErrAttemptLimitExceeded) ||
		errors.Is(err, ErrPaperDuplicateTitle) ||
		errors.Is(err, ErrConcurrentAttempt)
}

// IsState checks if error represents an illegal state transition
func IsState(err error) bool {
	var te *models.TransitionError
	return errors.As(err, &te) ||
		errors.Is(err, ErrInvalidSessionState) ||
		errors.Is(err, ErrSessionAlreadyFinished) ||
		errors.Is(err, ErrSessionStateChanged) ||
		errors.Is(err, ErrPaperInvalidStatus) ||
		errors.Is(err, ErrPaperEmpty) ||
		errors.Is(err, ErrSessionNotCompleted)
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsNotFound checks if error represents a "not found" or ownership condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaperNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrPaperQuestionNotFound) ||
		errors.Is(err, ErrPaperQuestionNotOwned) ||
		errors.Is(err, ErrQuestionNotInPaper)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrAnswerKindMismatch) ||
		errors.Is(err, ErrInvalidTemplate) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
