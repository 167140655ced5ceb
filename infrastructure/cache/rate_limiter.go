package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// RedisRateLimiter is a sliding window limiter on a Redis sorted set per key.
// Each request is a member scored by its arrival time in milliseconds.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRedisRateLimiter allows limit requests per window for each key.
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: "ratelimit:",
		now:       time.Now,
	}
}

// Allow records the request and reports whether it is within the limit. The
// request is counted even when it is rejected, so a caller that keeps retrying
// stays blocked until it backs off.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()
	redisKey := l.keyPrefix + key

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(nowMs),
			Member: strconv.FormatInt(nowMs, 10) + ":" + uuid.NewString(),
		})
		card = pipe.ZCard(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "rate limit pipeline")
	}

	return card.Val() <= int64(l.limit), nil
}

// Reset clears the window for key.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.keyPrefix+key).Err()
}
