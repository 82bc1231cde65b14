package pkg

import (
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens the Postgres connection. SQL logging is verbose outside production.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the tables backing the exam models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Question{},
		&models.Option{},
		&models.Tag{},
		&models.Paper{},
		&models.PaperQuestion{},
		&models.PaperTemplate{},
		&models.TemplateRule{},
		&models.Session{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
