package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// AddQuestionRequest adds one question, or a batch when Questions is set.
type AddQuestionRequest struct {
	QuestionID uint                     `json:"question_id"`
	Score      int                      `json:"score"`
	SortOrder  int                      `json:"sort_order"`
	Questions  []services.QuestionScore `json:"questions"`
}

// UpdateOrderRequest maps paper question id to its new sort order.
type UpdateOrderRequest struct {
	Orders map[uint]int `json:"orders" binding:"required"`
}

type DuplicatePaperRequest struct {
	Title string `json:"title"`
}

type PaperHandler struct {
	BaseHandler
	paperService  services.PaperService
	exportService services.ExportService
}

func NewPaperHandler(paperService services.PaperService, exportService services.ExportService, logger utils.Logger) *PaperHandler {
	return &PaperHandler{
		BaseHandler:   NewBaseHandler(logger),
		paperService:  paperService,
		exportService: exportService,
	}
}

// CreatePaper creates a paper, optionally with an initial question set
// @Router /papers [post]
func (h *PaperHandler) CreatePaper(c *gin.Context) {
	var req services.CreatePaperRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.paperService.CreatePaper(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

// @Router /papers/{id} [get]
func (h *PaperHandler) GetPaper(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.paperService.GetPaper(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

// @Router /papers/{id} [delete]
func (h *PaperHandler) DeletePaper(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.paperService.DeletePaper(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddQuestions adds a single question, or a batch when the body carries questions[]
// @Router /papers/{id}/questions [post]
func (h *PaperHandler) AddQuestions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AddQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if len(req.Questions) > 0 {
		paper, err := h.paperService.AddQuestions(c.Request.Context(), id, req.Questions)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, paper)
		return
	}

	if req.QuestionID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: "question_id or questions is required",
			Code:    CodeValidation,
		})
		return
	}

	pq, err := h.paperService.AddQuestion(c.Request.Context(), id, req.QuestionID, req.Score, req.SortOrder)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pq)
}

// @Router /papers/{id}/questions/{pq_id} [delete]
func (h *PaperHandler) RemoveQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	pqID, ok := parseIDParam(c, "pq_id")
	if !ok {
		return
	}

	if err := h.paperService.RemoveQuestion(c.Request.Context(), id, pqID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Router /papers/{id}/questions/order [put]
func (h *PaperHandler) UpdateQuestionOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.paperService.UpdateQuestionOrder(c.Request.Context(), id, req.Orders)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

// @Router /papers/{id}/questions/resequence [post]
func (h *PaperHandler) ResequenceQuestions(c *gin.Context) {
	h.paperAction(c, h.paperService.ResequenceQuestions)
}

// @Router /papers/{id}/shuffle/questions [post]
func (h *PaperHandler) ShuffleQuestions(c *gin.Context) {
	h.paperAction(c, h.paperService.ShuffleQuestions)
}

// @Router /papers/{id}/shuffle/options [post]
func (h *PaperHandler) ShuffleOptions(c *gin.Context) {
	h.paperAction(c, h.paperService.ShuffleOptions)
}

// @Router /papers/{id}/publish [post]
func (h *PaperHandler) PublishPaper(c *gin.Context) {
	h.paperAction(c, h.paperService.PublishPaper)
}

// @Router /papers/{id}/archive [post]
func (h *PaperHandler) ArchivePaper(c *gin.Context) {
	h.paperAction(c, h.paperService.ArchivePaper)
}

// DuplicatePaper copies a paper and its questions. The title defaults to "<title> (Copy)".
// @Router /papers/{id}/duplicate [post]
func (h *PaperHandler) DuplicatePaper(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req DuplicatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    CodeValidation,
		})
		return
	}

	paper, err := h.paperService.DuplicatePaper(c.Request.Context(), id, req.Title)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

// @Router /papers/{id}/statistics [get]
func (h *PaperHandler) GetPaperStatistics(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.paperService.GetPaperStatistics(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportPaperSessions downloads every session of a paper as a workbook
// @Router /papers/{id}/sessions/export [get]
func (h *PaperHandler) ExportPaperSessions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	data, err := h.exportService.ExportPaperSessions(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.log(c).Info("Exported paper sessions", "paper_id", id, "bytes", len(data))
	sendWorkbook(c, fmt.Sprintf("paper-%d-sessions.xlsx", id), data)
}

func (h *PaperHandler) paperAction(c *gin.Context, action func(ctx context.Context, id uint) (*models.Paper, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	paper, err := action(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}
