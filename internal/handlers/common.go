package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Error codes carried in ErrorResponse.Code
const (
	CodeValidation   = "validation_failed"
	CodeConflict     = "conflict"
	CodeInvalidState = "invalid_state"
	CodeExpired      = "session_expired"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

const (
	userIDHeader     = "X-User-ID"
	userIDContextKey = "user_id"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides logging and error translation shared by all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.LoggerFromContext(c, h.logger)
}

// handleServiceError maps a service error onto an HTTP status and writes the response.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    CodeValidation,
		})
		return
	}

	message := err.Error()
	var details interface{}
	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		message = businessRuleError.Message
		details = map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		}
	}

	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: message, Details: details, Code: CodeNotFound})
	case services.IsExpired(err):
		c.JSON(http.StatusGone, ErrorResponse{Message: message, Details: details, Code: CodeExpired})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: message, Details: details, Code: CodeConflict})
	case services.IsState(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: message, Details: details, Code: CodeInvalidState})
	case services.IsValidation(err), businessRuleError != nil:
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: message, Details: details, Code: CodeValidation})
	default:
		h.log(c).LogError(err, "Unhandled service error", "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Code:    CodeInternal,
		})
	}
}

func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    CodeValidation,
		})
		return false
	}
	return true
}

// ===== PARAMETER HELPERS =====

// parseIDParam reads a positive numeric path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a positive integer",
			Code:    CodeValidation,
		})
		return 0, false
	}
	return uint(id), true
}

// parseOptionalIDQuery returns nil when the query parameter is absent.
func parseOptionalIDQuery(c *gin.Context, key string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + key,
			Details: "must be a positive integer",
			Code:    CodeValidation,
		})
		return nil, false
	}
	value := uint(id)
	return &value, true
}

// ===== CALLER IDENTITY =====

// UserIdentity copies the caller id from the X-User-ID header onto the context.
// Authentication happens upstream; this service trusts the header.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(userIDHeader)); userID != "" {
			c.Set(userIDContextKey, userID)
		}
		c.Next()
	}
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
			Details: "missing " + userIDHeader + " header",
			Code:    CodeUnauthorized,
		})
		return "", false
	}
	return userID, true
}

func sendWorkbook(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "exam-service"})
}
