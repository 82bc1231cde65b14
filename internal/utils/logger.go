package utils

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const loggerContextKey = "logger"

// Logger is the logging surface used by the HTTP layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger

	// LogRequest picks the level from the status code: 4xx warns, 5xx errors.
	LogRequest(method, path string, statusCode int, latency time.Duration, args ...any)
	LogError(err error, msg string, args ...any)

	Slog() *slog.Logger
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an existing slog.Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

// NewLogger emits JSON at info level in production and text at debug level elsewhere.
func NewLogger(environment string, w io.Writer) Logger {
	var handler slog.Handler
	if environment == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return NewSlogLogger(slog.New(handler))
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) Slog() *slog.Logger { return l.logger }

func (l *slogLogger) LogRequest(method, path string, statusCode int, latency time.Duration, args ...any) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	attrs := append([]any{
		"method", method,
		"path", path,
		"status_code", statusCode,
		"latency_ms", latency.Milliseconds(),
	}, args...)
	l.logger.Log(context.Background(), level, "HTTP request", attrs...)
}

func (l *slogLogger) LogError(err error, msg string, args ...any) {
	l.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// LoggerMiddleware routes gin's access log through logger. Paths in skip are not logged.
func LoggerMiddleware(logger Logger, skip ...string) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: skip,
		Formatter: func(param gin.LogFormatterParams) string {
			logger.LogRequest(param.Method, param.Path, param.StatusCode, param.Latency,
				"client_ip", param.ClientIP,
				"user_id", param.Keys["user_id"],
			)
			return ""
		},
	})
}

// ContextLogger stores a request-scoped logger on the gin context.
func ContextLogger(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loggerContextKey, logger.With(
			"request_id", c.GetHeader("X-Request-ID"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		))
		c.Next()
	}
}

// LoggerFromContext returns the request-scoped logger, or fallback when none was stored.
func LoggerFromContext(c *gin.Context, fallback Logger) Logger {
	if value, ok := c.Get(loggerContextKey); ok {
		if logger, ok := value.(Logger); ok {
			return logger
		}
	}
	return fallback
}
