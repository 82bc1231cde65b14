package pkg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return client, nil
}

// NewPaperCache returns a redis-backed cache, or a no-op cache when REDIS_URL is unset.
// The returned close func is always safe to call.
func NewPaperCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.CacheService, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, paper caching disabled")
		return cache.NewNoopCache(), func() error { return nil }, nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisCache(client, logger), client.Close, nil
}
