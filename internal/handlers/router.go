package handlers

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	paperHandler     *PaperHandler
	generatorHandler *GeneratorHandler
	sessionHandler   *SessionHandler
	logger           utils.Logger
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		paperHandler:     NewPaperHandler(serviceManager.Paper(), serviceManager.Export(), logger),
		generatorHandler: NewGeneratorHandler(serviceManager.Generator(), logger),
		sessionHandler: NewSessionHandler(
			serviceManager.Session(),
			serviceManager.Scoring(),
			serviceManager.Export(),
			logger,
		),
		logger: logger,
	}
}

// NewRouter builds a gin engine with the request middlewares and every route installed.
// An empty corsOrigins, or a single "*", allows any origin.
func (hm *HandlerManager) NewRouter(corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		corsMiddleware(corsOrigins),
		UserIdentity(),
		utils.LoggerMiddleware(hm.logger, "/health"),
		utils.ContextLogger(hm.logger),
	)
	hm.SetupRoutes(router)
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID", userIDHeader},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		papers := v1.Group("/papers")
		{
			papers.POST("", hm.paperHandler.CreatePaper)
			papers.GET("/:id", hm.paperHandler.GetPaper)
			papers.DELETE("/:id", hm.paperHandler.DeletePaper)

			// Question management
			papers.POST("/:id/questions", hm.paperHandler.AddQuestions)
			papers.DELETE("/:id/questions/:pq_id", hm.paperHandler.RemoveQuestion)
			papers.PUT("/:id/questions/order", hm.paperHandler.UpdateQuestionOrder)
			papers.POST("/:id/questions/resequence", hm.paperHandler.ResequenceQuestions)
			papers.POST("/:id/shuffle/questions", hm.paperHandler.ShuffleQuestions)
			papers.POST("/:id/shuffle/options", hm.paperHandler.ShuffleOptions)

			papers.POST("/:id/duplicate", hm.paperHandler.DuplicatePaper)
			papers.POST("/:id/publish", hm.paperHandler.PublishPaper)
			papers.POST("/:id/archive", hm.paperHandler.ArchivePaper)
			papers.GET("/:id/statistics", hm.paperHandler.GetPaperStatistics)

			// Sessions of a paper
			papers.POST("/:id/sessions", hm.sessionHandler.CreateSession)
			papers.POST("/:id/sessions/retake", hm.sessionHandler.RetakeSession)
			papers.GET("/:id/sessions/export", hm.paperHandler.ExportPaperSessions)
		}

		templates := v1.Group("/templates")
		{
			templates.POST("", hm.generatorHandler.CreateTemplate)
			templates.GET("", hm.generatorHandler.ListTemplates)
			templates.GET("/:id", hm.generatorHandler.GetTemplate)
		}

		generate := v1.Group("/generate")
		{
			generate.POST("/template/:id", hm.generatorHandler.GenerateFromTemplate)
			generate.POST("/random", hm.generatorHandler.GenerateRandom)
			generate.POST("/tags", hm.generatorHandler.GenerateByTags)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/start", hm.sessionHandler.StartSession)
			sessions.PUT("/:id/answers/:question_id", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/complete", hm.sessionHandler.CompleteSession)
			sessions.POST("/:id/cancel", hm.sessionHandler.CancelSession)
			sessions.POST("/:id/expire", hm.sessionHandler.ExpireSession)

			sessions.POST("/:id/questions/:question_id/timing/start", hm.sessionHandler.StartQuestionTiming)
			sessions.POST("/:id/questions/:question_id/timing/stop", hm.sessionHandler.StopQuestionTiming)

			sessions.GET("/:id/progress", hm.sessionHandler.GetProgress)
			sessions.GET("/:id/statistics", hm.sessionHandler.GetStatistics)
			sessions.GET("/:id/results", hm.sessionHandler.GetResults)
			sessions.GET("/:id/results/by-type", hm.sessionHandler.GetResultsByType)
			sessions.GET("/:id/results/by-difficulty", hm.sessionHandler.GetResultsByDifficulty)
			sessions.GET("/:id/results/export", hm.sessionHandler.ExportResults)
		}

		me := v1.Group("/users/me")
		{
			me.GET("/sessions", hm.sessionHandler.GetMySessions)
			me.GET("/best-scores", hm.sessionHandler.GetMyBestScores)
		}
	}
}
