package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// GeneratorHandler serves paper templates and automatic paper generation.
type GeneratorHandler struct {
	BaseHandler
	generatorService services.GeneratorService
}

func NewGeneratorHandler(generatorService services.GeneratorService, logger utils.Logger) *GeneratorHandler {
	return &GeneratorHandler{
		BaseHandler:      NewBaseHandler(logger),
		generatorService: generatorService,
	}
}

// @Router /templates [post]
func (h *GeneratorHandler) CreateTemplate(c *gin.Context) {
	var req services.CreateTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	template, err := h.generatorService.CreateTemplate(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, template)
}

// @Router /templates/{id} [get]
func (h *GeneratorHandler) GetTemplate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	template, err := h.generatorService.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, template)
}

// ListTemplates returns active templates
// @Router /templates [get]
func (h *GeneratorHandler) ListTemplates(c *gin.Context) {
	templates, err := h.generatorService.ListTemplates(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates, "total": len(templates)})
}

// @Router /generate/template/{id} [post]
func (h *GeneratorHandler) GenerateFromTemplate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	paper, err := h.generatorService.GenerateFromTemplate(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.log(c).Info("Generated paper from template", "template_id", id, "paper_id", paper.ID)
	c.JSON(http.StatusCreated, paper)
}

// @Router /generate/random [post]
func (h *GeneratorHandler) GenerateRandom(c *gin.Context) {
	var req services.RandomPaperRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.generatorService.GenerateRandom(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

// @Router /generate/tags [post]
func (h *GeneratorHandler) GenerateByTags(c *gin.Context) {
	var req services.TagPaperRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.generatorService.GenerateByTags(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}
