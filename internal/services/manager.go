package services

import (
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ServiceManager exposes every service built over one repository and publisher.
type ServiceManager interface {
	Paper() PaperService
	Generator() GeneratorService
	Scoring() ScoringService
	Session() SessionService
	Export() ExportService
}

type serviceManager struct {
	paper     PaperService
	generator GeneratorService
	scoring   ScoringService
	session   SessionService
	export    ExportService
}

// NewServiceManager wires the services together. opts are passed to every service
// that shuffles or reads the clock.
func NewServiceManager(
	repo repositories.Repository,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	opts ...Option,
) ServiceManager {
	scoring := NewScoringService(repo, logger)

	return &serviceManager{
		paper:     NewPaperService(repo, publisher, logger, validator, opts...),
		generator: NewGeneratorService(repo, publisher, logger, validator, opts...),
		scoring:   scoring,
		session:   NewSessionService(repo, scoring, publisher, logger, opts...),
		export:    NewExportService(repo, scoring, logger),
	}
}

func (m *serviceManager) Paper() PaperService         { return m.paper }
func (m *serviceManager) Generator() GeneratorService { return m.generator }
func (m *serviceManager) Scoring() ScoringService     { return m.scoring }
func (m *serviceManager) Session() SessionService     { return m.session }
func (m *serviceManager) Export() ExportService       { return m.export }
