package services

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ServiceLogger records one line per finished service operation. Expected
// failures (missing rows, expired sessions) are logged below error level.
type ServiceLogger struct {
	logger  *slog.Logger
	verbose bool
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger:  logger.With(slog.Group("svc", "name", config.Service, "component", config.Component)),
		verbose: config.EnableDebug,
	}
}

func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// outcome is the log level and status label for an operation result.
type outcome struct {
	level  slog.Level
	status string
}

func outcomeOf(err error) outcome {
	switch {
	case err == nil:
		return outcome{slog.LevelInfo, "ok"}
	case IsNotFound(err):
		return outcome{slog.LevelDebug, "not_found"}
	case IsExpired(err):
		return outcome{slog.LevelInfo, "expired"}
	case IsValidation(err):
		return outcome{slog.LevelWarn, "rejected"}
	case IsConflict(err), IsState(err):
		return outcome{slog.LevelWarn, "refused"}
	default:
		return outcome{slog.LevelError, "failed"}
	}
}

func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String("error", err.Error())}

	var fieldErrs ValidationErrors
	if errors.As(err, &fieldErrs) {
		return append(attrs, slog.Int("invalid_fields", len(fieldErrs)))
	}
	var ruleErr *BusinessRuleError
	if errors.As(err, &ruleErr) {
		attrs = append(attrs, slog.String("rule", ruleErr.Rule))
		if len(ruleErr.Context) > 0 {
			attrs = append(attrs, slog.Any("rule_context", ruleErr.Context))
		}
	}
	return attrs
}

// Operation is an in-flight operation started by WithOperation.
type Operation struct {
	owner *ServiceLogger
	ctx   context.Context
	name  string
	began time.Time
}

func (l *ServiceLogger) WithOperation(ctx context.Context, name string) *Operation {
	return &Operation{owner: l, ctx: ctx, name: name, began: time.Now()}
}

// LogResult logs the operation against the resource it touched.
func (op *Operation) LogResult(resourceID uint, resourceType string, err error) {
	out := outcomeOf(err)
	if out.level == slog.LevelDebug && !op.owner.verbose {
		return
	}

	attrs := []slog.Attr{
		slog.String("op", op.name),
		slog.String("status", out.status),
		slog.String("resource", resourceType),
		slog.Uint64("resource_id", uint64(resourceID)),
		slog.Int64("elapsed_ms", time.Since(op.began).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
	}
	op.owner.logger.LogAttrs(op.ctx, out.level, op.name+" "+out.status, attrs...)
}
