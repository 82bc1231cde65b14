package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/handlers"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/pkg"
	"github.com/gin-gonic/gin"
)

const (
	sweepTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger("production", os.Stderr).LogError(err, "Failed to load configuration")
		return err
	}

	logger := utils.NewLogger(cfg.Environment, os.Stdout)
	slogger := logger.Slog()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to initialize database")
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		logger.LogError(err, "Failed to migrate database")
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	paperCache, closeCache, err := pkg.NewPaperCache(ctx, cfg, slogger)
	if err != nil {
		logger.LogError(err, "Failed to connect to redis")
		return err
	}
	defer closeCache()

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		return err
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db, paperCache, cfg.PaperCacheTTL)
	serviceManager := services.NewServiceManager(repo, publisher, slogger, validator.New(),
		services.WithRandomizer(grading.NewRandomizer(cfg.RandomSeed)),
	)

	sweeper, err := scheduler.NewExpirySweeper(serviceManager.Session(), slogger, cfg.ExpirySweepSchedule, sweepTimeout)
	if err != nil {
		logger.LogError(err, "Failed to schedule expiry sweep", "schedule", cfg.ExpirySweepSchedule)
		return err
	}
	sweeper.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewHandlerManager(serviceManager, logger).NewRouter(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Exam service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.LogError(err, "HTTP server failed")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "HTTP server shutdown failed")
	}
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.LogError(err, "Expiry sweeper did not stop in time")
	}
	return nil
}
