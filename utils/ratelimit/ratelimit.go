package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more event under key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// FixedWindowLimiter counts events per key in fixed time windows with Redis
// INCR and EXPIRE, so every bot process shares one budget.
type FixedWindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	limit       int
	window      time.Duration
	// failOpen allows events while Redis is unavailable.
	failOpen bool
	now      func() time.Time
}

func NewFixedWindowLimiter(redisClient *redis.Client, logger *zap.Logger, limit int, window time.Duration, failOpen bool) *FixedWindowLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &FixedWindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		limit:       limit,
		window:      window,
		failOpen:    failOpen,
		now:         time.Now,
	}
}

// FloodKey is the limiter key of one member in one chat.
func FloodKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucketKey := l.bucketKey(key, l.now())

	pipe := l.redisClient.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.logger.Warn("Flood check failed, allowing event", zap.String("key", key), zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("flood check failed: %w", err)
	}

	count := incr.Val()
	if count > int64(l.limit) {
		// Log only the first rejection of a window.
		if count == int64(l.limit)+1 {
			l.logger.Info("Flood limit reached",
				zap.String("key", key),
				zap.Int("limit", l.limit),
				zap.Duration("window", l.window),
			)
		}
		return false, nil
	}
	return true, nil
}

func (l *FixedWindowLimiter) bucketKey(key string, now time.Time) string {
	return fmt.Sprintf("flood:%s:%d", key, now.Unix()/int64(l.window.Seconds()))
}
