package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/grading"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type sessionService struct {
	repo    repositories.Repository
	scoring ScoringService
	logger  *slog.Logger
	ops     *ServiceLogger
	events  eventEmitter
	opts    options
}

func NewSessionService(repo repositories.Repository, scoring ScoringService, publisher events.EventPublisher, logger *slog.Logger, opts ...Option) SessionService {
	return &sessionService{
		repo:    repo,
		scoring: scoring,
		logger:  logger,
		ops:     NewServiceLogger(logger, LogConfig{Service: "exam-service", Component: "session"}),
		events:  eventEmitter{publisher: publisher, logger: logger},
		opts:    newOptions(opts),
	}
}

// sessionMutation changes a locked session. Returning false leaves the row unsaved.
type sessionMutation func(tx repositories.Repository, session *models.Session) (bool, error)

// mutate loads the session under a row lock, applies fn and saves the result with a
// version check, all in one transaction.
func (s *sessionService) mutate(ctx context.Context, sessionID uint, fn sessionMutation) (*models.Session, error) {
	var session *models.Session
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		session, err = tx.Session().GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return translateNotFound(err, ErrSessionNotFound)
		}

		changed, err := fn(tx, session)
		if err != nil || !changed {
			return err
		}
		return saveSession(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func saveSession(ctx context.Context, tx repositories.Repository, session *models.Session) error {
	if err := tx.Session().Update(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrStaleRecord) {
			return fmt.Errorf("%w: session %d", ErrSessionStateChanged, session.ID)
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ===== LIFECYCLE =====

// CreateSession opens the user's next attempt on the paper. An active session is
// returned as is, unless the attempt limit has already been reached.
func (s *sessionService) CreateSession(ctx context.Context, paperID uint, userID string) (*models.Session, error) {
	op := s.ops.WithOperation(ctx, "create_session")

	var session *models.Session
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		session, err = s.createInTx(ctx, tx, paperID, userID)
		return err
	})
	if err != nil {
		op.LogResult(paperID, "paper", err)
		return nil, err
	}

	op.LogResult(session.ID, "session", nil)
	return session, nil
}

func (s *sessionService) createInTx(ctx context.Context, tx repositories.Repository, paperID uint, userID string) (*models.Session, error) {
	paper, err := tx.Paper().GetByIDForUpdate(ctx, paperID)
	if err != nil {
		return nil, translateNotFound(err, ErrPaperNotFound)
	}

	if !paper.AllowRetake {
		completed, err := tx.Session().HasCompletedSession(ctx, userID, paperID)
		if err != nil {
			return nil, err
		}
		if completed {
			return nil, NewBusinessRuleError(ErrRetakeNotAllowed, "retake_policy", map[string]interface{}{
				"paper_id": paperID,
				"user_id":  userID,
			})
		}
	}

	attempts, err := tx.Session().GetAttemptCount(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	if paper.MaxAttempts != nil && attempts >= *paper.MaxAttempts {
		return nil, NewBusinessRuleError(ErrAttemptLimitExceeded, "max_attempts", map[string]interface{}{
			"paper_id":     paperID,
			"user_id":      userID,
			"max_attempts": *paper.MaxAttempts,
		})
	}

	active, err := tx.Session().GetActiveSession(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	total := paper.TotalScore
	session := &models.Session{
		PaperID:         paperID,
		UserID:          userID,
		Status:          models.SessionPending,
		TotalScore:      &total,
		AttemptNumber:   attempts + 1,
		Answers:         make(map[uint]models.Answer),
		QuestionTimings: make(map[uint]models.QuestionTiming),
	}
	if err := tx.Session().Create(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConcurrentAttempt, err)
		}
		return nil, err
	}
	session.Paper = paper

	s.logger.Info("Session created", "session_id", session.ID, "paper_id", paperID, "attempt", session.AttemptNumber)
	return session, nil
}

func (s *sessionService) StartSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	op := s.ops.WithOperation(ctx, "start_session")

	session, err := s.mutate(ctx, sessionID, func(_ repositories.Repository, session *models.Session) (bool, error) {
		if err := session.Apply(models.EventStart); err != nil {
			return false, err
		}
		now := s.opts.now()
		session.StartTime = &now
		if session.Paper != nil && session.Paper.HasTimeLimit() {
			expiresAt := now.Add(time.Duration(*session.Paper.TimeLimit) * time.Second)
			session.ExpiresAt = &expiresAt
		}
		return true, nil
	})
	op.LogResult(sessionID, "session", err)
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, events.EventSessionStarted, events.SessionStartedEvent{
		SessionID:     session.ID,
		PaperID:       session.PaperID,
		UserID:        session.UserID,
		AttemptNumber: session.AttemptNumber,
		StartedAt:     *session.StartTime,
		ExpiresAt:     session.ExpiresAt,
	})
	return session, nil
}

// SubmitAnswer records an answer. A session past its deadline is expired instead and
// the submission fails with ErrSessionExpired.
func (s *sessionService) SubmitAnswer(ctx context.Context, sessionID, questionID uint, answer models.Answer) (*models.Session, error) {
	if err := answer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	expired := false
	session, err := s.mutate(ctx, sessionID, func(tx repositories.Repository, session *models.Session) (bool, error) {
		if !session.Status.CanTransition(models.EventSubmitAnswer) {
			_, err := session.Status.Transition(models.EventSubmitAnswer)
			return false, err
		}

		pqs, err := tx.PaperQuestion().ListByPaper(ctx, session.PaperID)
		if err != nil {
			return false, err
		}

		now := s.opts.now()
		if session.IsExpired(now) {
			expired = true
			return true, s.expire(session, pqs, now)
		}

		pq := findPaperQuestion(pqs, questionID)
		if pq == nil {
			return false, fmt.Errorf("%w: question %d", ErrQuestionNotInPaper, questionID)
		}
		if err := grading.CheckAnswerKind(pq.QuestionType(), answer); err != nil {
			return false, err
		}

		if err := session.Apply(models.EventSubmitAnswer); err != nil {
			return false, err
		}
		session.SetAnswer(questionID, answer)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.logger.Info("Submission after deadline expired the session", "session_id", sessionID)
		s.emitFinished(ctx, events.EventSessionExpired, session)
		return nil, ErrSessionExpired
	}
	return session, nil
}

func (s *sessionService) CompleteSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	op := s.ops.WithOperation(ctx, "complete_session")

	session, err := s.mutate(ctx, sessionID, func(tx repositories.Repository, session *models.Session) (bool, error) {
		if err := session.Apply(models.EventComplete); err != nil {
			return false, err
		}
		pqs, err := tx.PaperQuestion().ListByPaper(ctx, session.PaperID)
		if err != nil {
			return false, err
		}
		s.finish(session, s.opts.now())
		s.score(session, pqs)
		return true, nil
	})
	op.LogResult(sessionID, "session", err)
	if err != nil {
		return nil, err
	}

	s.emitFinished(ctx, events.EventSessionCompleted, session)
	return session, nil
}

// ExpireSession is a no-op for sessions that are not in progress.
func (s *sessionService) ExpireSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, changed, err := s.expireByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.emitFinished(ctx, events.EventSessionExpired, session)
	}
	return session, nil
}

func (s *sessionService) expireByID(ctx context.Context, sessionID uint) (*models.Session, bool, error) {
	changed := false
	session, err := s.mutate(ctx, sessionID, func(tx repositories.Repository, session *models.Session) (bool, error) {
		if !session.Status.CanTransition(models.EventExpire) {
			return false, nil
		}
		pqs, err := tx.PaperQuestion().ListByPaper(ctx, session.PaperID)
		if err != nil {
			return false, err
		}
		changed = true
		return true, s.expire(session, pqs, s.opts.now())
	})
	return session, changed, err
}

// expire closes an in-progress session. It is scored only when answers were recorded.
func (s *sessionService) expire(session *models.Session, pqs []*models.PaperQuestion, now time.Time) error {
	if err := session.Apply(models.EventExpire); err != nil {
		return err
	}
	s.finish(session, now)
	if session.AnsweredCount() > 0 {
		s.score(session, pqs)
	}
	return nil
}

func (s *sessionService) CancelSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := s.mutate(ctx, sessionID, func(_ repositories.Repository, session *models.Session) (bool, error) {
		return true, s.cancel(session)
	})
	if err != nil {
		return nil, err
	}

	s.emitFinished(ctx, events.EventSessionCancelled, session)
	return session, nil
}

func (s *sessionService) cancel(session *models.Session) error {
	if session.Status.IsFinished() {
		return NewBusinessRuleError(ErrSessionAlreadyFinished, "cancel_finished", map[string]interface{}{
			"session_id": session.ID,
			"status":     session.Status,
		})
	}
	if err := session.Apply(models.EventCancel); err != nil {
		return err
	}
	now := s.opts.now()
	session.EndTime = &now
	return nil
}

// RetakeSession cancels the user's active session on the paper, if any, and opens a new
// attempt in the same transaction.
func (s *sessionService) RetakeSession(ctx context.Context, paperID uint, userID string) (*models.Session, error) {
	op := s.ops.WithOperation(ctx, "retake_session")

	var session, cancelled *models.Session
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		paper, err := tx.Paper().GetByIDForUpdate(ctx, paperID)
		if err != nil {
			return translateNotFound(err, ErrPaperNotFound)
		}
		if !paper.AllowRetake {
			return NewBusinessRuleError(ErrRetakeNotAllowed, "retake_policy", map[string]interface{}{
				"paper_id": paperID,
				"user_id":  userID,
			})
		}

		active, err := tx.Session().GetActiveSession(ctx, userID, paperID)
		if err != nil {
			return err
		}
		if active != nil {
			locked, err := tx.Session().GetByIDForUpdate(ctx, active.ID)
			if err != nil {
				return translateNotFound(err, ErrSessionNotFound)
			}
			if err := s.cancel(locked); err != nil {
				return err
			}
			if err := saveSession(ctx, tx, locked); err != nil {
				return err
			}
			cancelled = locked
		}

		session, err = s.createInTx(ctx, tx, paperID, userID)
		return err
	})
	if err != nil {
		op.LogResult(paperID, "paper", err)
		return nil, err
	}
	op.LogResult(session.ID, "session", nil)

	if cancelled != nil {
		s.emitFinished(ctx, events.EventSessionCancelled, cancelled)
	}
	return session, nil
}

// ProcessExpiredSessions expires every in-progress session past its deadline. Each
// session runs in its own transaction; one that changed underneath the sweep is skipped.
func (s *sessionService) ProcessExpiredSessions(ctx context.Context) (int, error) {
	ids, err := s.repo.Session().GetExpiredSessionIDs(ctx, s.opts.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	processed := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		session, changed, err := s.expireByID(ctx, id)
		switch {
		case errors.Is(err, ErrSessionStateChanged), errors.Is(err, ErrSessionNotFound):
			s.logger.Debug("Skipping session changed during sweep", "session_id", id, "error", err)
		case err != nil:
			s.logger.Error("Failed to expire session", "session_id", id, "error", err)
			errs = append(errs, fmt.Errorf("session %d: %w", id, err))
		case changed:
			processed++
			s.emitFinished(ctx, events.EventSessionExpired, session)
		}
	}

	if processed > 0 {
		s.logger.Info("Expired sessions processed", "count", processed, "candidates", len(ids))
	}
	return processed, errors.Join(errs...)
}

// ===== PER-QUESTION TIMING =====

func (s *sessionService) StartQuestionTiming(ctx context.Context, sessionID, questionID uint) error {
	_, err := s.mutate(ctx, sessionID, func(_ repositories.Repository, session *models.Session) (bool, error) {
		if session.Status != models.SessionInProgress {
			return false, fmt.Errorf("%w: timing requires an in-progress session", ErrInvalidSessionState)
		}
		session.StartQuestionTiming(questionID, s.opts.now())
		return true, nil
	})
	return err
}

// RecordQuestionTiming closes the timing of questionID. Calls that do not match the
// question being timed return 0 and change nothing.
func (s *sessionService) RecordQuestionTiming(ctx context.Context, sessionID, questionID uint) (int, error) {
	elapsed := 0
	_, err := s.mutate(ctx, sessionID, func(_ repositories.Repository, session *models.Session) (bool, error) {
		if session.CurrentQuestionID == nil || *session.CurrentQuestionID != questionID {
			return false, nil
		}
		elapsed = session.RecordQuestionTiming(questionID, s.opts.now())
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return elapsed, nil
}

// ===== READS =====

func (s *sessionService) GetSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		return nil, translateNotFound(err, ErrSessionNotFound)
	}
	return session, nil
}

func (s *sessionService) GetProgress(ctx context.Context, sessionID uint) (*SessionProgress, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pqs, err := s.repo.PaperQuestion().ListByPaper(ctx, session.PaperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper questions: %w", err)
	}

	answered := 0
	for _, pq := range pqs {
		if session.HasAnswered(pq.QuestionID) {
			answered++
		}
	}
	now := s.opts.now()
	return &SessionProgress{
		SessionID:        session.ID,
		Status:           session.Status,
		TotalQuestions:   len(pqs),
		Answered:         answered,
		Unanswered:       len(pqs) - answered,
		Percentage:       grading.Percent(answered, len(pqs)),
		RemainingSeconds: session.RemainingSeconds(now),
		IsExpired:        session.IsExpired(now),
	}, nil
}

func (s *sessionService) GetStatistics(ctx context.Context, sessionID uint) (*SessionStatistics, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionCompleted {
		return nil, fmt.Errorf("%w: session %d is %s", ErrSessionNotCompleted, sessionID, session.Status)
	}

	byType, err := s.scoring.GetScoreByType(ctx, session)
	if err != nil {
		return nil, err
	}
	return &SessionStatistics{
		SessionID:     session.ID,
		Score:         session.Score,
		TotalScore:    session.TotalScore,
		Percentage:    session.ScorePercentage(),
		Passed:        session.Passed,
		Duration:      session.Duration,
		AttemptNumber: session.AttemptNumber,
		ByType:        byType,
	}, nil
}

func (s *sessionService) GetUserHistory(ctx context.Context, userID string, paperID *uint) ([]*models.Session, error) {
	return s.repo.Session().ListByUser(ctx, userID, repositories.SessionFilters{PaperID: paperID})
}

func (s *sessionService) GetBestScores(ctx context.Context, userID string) ([]repositories.BestScore, error) {
	return s.repo.Session().GetBestScores(ctx, userID)
}

// ===== HELPERS =====

// finish stamps the end time and the elapsed duration.
func (s *sessionService) finish(session *models.Session, now time.Time) {
	session.EndTime = &now
	if session.StartTime != nil {
		duration := int(now.Sub(*session.StartTime) / time.Second)
		session.Duration = &duration
	}
}

func (s *sessionService) score(session *models.Session, pqs []*models.PaperQuestion) {
	score := calculateScore(session, pqs, s.logger)
	session.Score = &score
	passScore := models.DefaultPassScore
	if session.Paper != nil {
		passScore = session.Paper.PassScore
	}
	session.Passed = score >= passScore
}

func (s *sessionService) emitFinished(ctx context.Context, eventType events.EventType, session *models.Session) {
	finishedAt := s.opts.now()
	if session.EndTime != nil {
		finishedAt = *session.EndTime
	}
	s.events.emit(ctx, eventType, events.SessionFinishedEvent{
		SessionID:     session.ID,
		PaperID:       session.PaperID,
		UserID:        session.UserID,
		Status:        string(session.Status),
		AttemptNumber: session.AttemptNumber,
		Score:         session.Score,
		TotalScore:    session.TotalScore,
		Passed:        session.Passed,
		Duration:      session.Duration,
		FinishedAt:    finishedAt,
	})
}

func findPaperQuestion(pqs []*models.PaperQuestion, questionID uint) *models.PaperQuestion {
	for _, pq := range pqs {
		if pq.QuestionID == questionID {
			return pq
		}
	}
	return nil
}
