package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiryProcessor expires every in-progress session whose deadline has passed.
type ExpiryProcessor interface {
	ProcessExpiredSessions(ctx context.Context) (int, error)
}

// ExpirySweeper runs the expiry sweep on a cron schedule. Overlapping runs are skipped.
type ExpirySweeper struct {
	cron      *cron.Cron
	processor ExpiryProcessor
	logger    *slog.Logger
	timeout   time.Duration
}

func NewExpirySweeper(processor ExpiryProcessor, logger *slog.Logger, schedule string, timeout time.Duration) (*ExpirySweeper, error) {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	s := &ExpirySweeper{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		processor: processor,
		logger:    logger,
		timeout:   timeout,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ExpirySweeper) Start() {
	s.logger.Info("Expiry sweeper started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish, or for ctx to end.
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	processed, err := s.processor.ProcessExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", "processed", processed, "duration", time.Since(start), "error", err)
		return processed, err
	}
	s.logger.Debug("Expiry sweep finished", "processed", processed, "duration", time.Since(start))
	return processed, nil
}

func (s *ExpirySweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}
