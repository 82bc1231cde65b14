package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	scoringService services.ScoringService
	exportService  services.ExportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	scoringService services.ScoringService,
	exportService services.ExportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		scoringService: scoringService,
		exportService:  exportService,
	}
}

// ===== LIFECYCLE =====

// CreateSession opens an attempt for the caller, or returns the one already active
// @Router /papers/{id}/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	h.openSession(c, h.sessionService.CreateSession)
}

// @Router /papers/{id}/sessions/retake [post]
func (h *SessionHandler) RetakeSession(c *gin.Context) {
	h.openSession(c, h.sessionService.RetakeSession)
}

// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.GetSession)
}

// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.StartSession)
}

// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.CompleteSession)
}

// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) CancelSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.CancelSession)
}

// @Router /sessions/{id}/expire [post]
func (h *SessionHandler) ExpireSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.ExpireSession)
}

// SubmitAnswer stores the caller's answer for one question
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var answer models.Answer
	if !h.bindJSON(c, &answer) {
		return
	}

	session, err := h.sessionService.SubmitAnswer(c.Request.Context(), sessionID, questionID, answer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ===== QUESTION TIMING =====

// @Router /sessions/{id}/questions/{question_id}/timing/start [post]
func (h *SessionHandler) StartQuestionTiming(c *gin.Context) {
	sessionID, questionID, ok := parseTimingParams(c)
	if !ok {
		return
	}

	if err := h.sessionService.StartQuestionTiming(c.Request.Context(), sessionID, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// StopQuestionTiming records time spent; duration is 0 when the question was not being timed
// @Router /sessions/{id}/questions/{question_id}/timing/stop [post]
func (h *SessionHandler) StopQuestionTiming(c *gin.Context) {
	sessionID, questionID, ok := parseTimingParams(c)
	if !ok {
		return
	}

	duration, err := h.sessionService.RecordQuestionTiming(c.Request.Context(), sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question_id": questionID, "duration": duration})
}

// ===== READS =====

// @Router /sessions/{id}/progress [get]
func (h *SessionHandler) GetProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.sessionService.GetProgress(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// @Router /sessions/{id}/statistics [get]
func (h *SessionHandler) GetStatistics(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.sessionService.GetStatistics(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Router /sessions/{id}/results [get]
func (h *SessionHandler) GetResults(c *gin.Context) {
	h.scoredRead(c, func(ctx context.Context, session *models.Session) (interface{}, error) {
		return h.scoringService.GetDetailedResults(ctx, session)
	})
}

// @Router /sessions/{id}/results/by-type [get]
func (h *SessionHandler) GetResultsByType(c *gin.Context) {
	h.scoredRead(c, func(ctx context.Context, session *models.Session) (interface{}, error) {
		return h.scoringService.GetScoreByType(ctx, session)
	})
}

// @Router /sessions/{id}/results/by-difficulty [get]
func (h *SessionHandler) GetResultsByDifficulty(c *gin.Context) {
	h.scoredRead(c, func(ctx context.Context, session *models.Session) (interface{}, error) {
		return h.scoringService.GetScoreByDifficulty(ctx, session)
	})
}

// @Router /sessions/{id}/results/export [get]
func (h *SessionHandler) ExportResults(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	data, err := h.exportService.ExportSessionResults(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	sendWorkbook(c, fmt.Sprintf("session-%d-results.xlsx", id), data)
}

// GetMySessions lists the caller's sessions, newest first, optionally for one paper
// @Router /users/me/sessions [get]
func (h *SessionHandler) GetMySessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	paperID, ok := parseOptionalIDQuery(c, "paper_id")
	if !ok {
		return
	}

	sessions, err := h.sessionService.GetUserHistory(c.Request.Context(), userID, paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// @Router /users/me/best-scores [get]
func (h *SessionHandler) GetMyBestScores(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	scores, err := h.sessionService.GetBestScores(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"best_scores": scores})
}

// ===== HELPERS =====

func (h *SessionHandler) openSession(c *gin.Context, open func(ctx context.Context, paperID uint, userID string) (*models.Session, error)) {
	paperID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := open(c.Request.Context(), paperID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) sessionAction(c *gin.Context, action func(ctx context.Context, id uint) (*models.Session, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	session, err := action(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) scoredRead(c *gin.Context, read func(ctx context.Context, session *models.Session) (interface{}, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	result, err := read(c.Request.Context(), session)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTimingParams(c *gin.Context) (uint, uint, bool) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return 0, 0, false
	}
	return sessionID, questionID, true
}
