package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qashgo/backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter implements sliding window rate limiting using Redis.
// On Redis errors requests are allowed (fail open): availability of
// registration and login matters more than strict limiting.
type RateLimiter struct {
	redis  *Redis
	config *config.RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	Limit     int
	ResetAt   time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *Redis, cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		config: cfg,
	}
}

// Check checks if a request from the given key is allowed under the limit.
// Uses a sliding window over a Redis sorted set: score = timestamp,
// member = unique request ID.
func (r *RateLimiter) Check(ctx context.Context, key string) (*RateLimitResult, error) {
	limit := r.config.AuthLimit
	windowSeconds := r.config.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	now := time.Now()
	windowDuration := time.Duration(windowSeconds) * time.Second
	windowStart := now.Add(-windowDuration)

	redisKey := fmt.Sprintf("ratelimit:sliding:%s", key)

	pipe := r.redis.Client.Pipeline()

	// Remove entries outside the window
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count current entries in window
	countCmd := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to check rate limit")
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(limit),
			Limit:     limit,
			ResetAt:   now.Add(windowDuration),
		}, nil
	}

	count := countCmd.Val()
	if count >= int64(limit) {
		return &RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			Limit:     limit,
			ResetAt:   now.Add(windowDuration),
		}, nil
	}

	// Record this request
	pipe = r.redis.Client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.New().String(),
	})
	pipe.Expire(ctx, redisKey, windowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to record rate limit entry")
	}

	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(limit) - count - 1,
		Limit:     limit,
		ResetAt:   now.Add(windowDuration),
	}, nil
}
