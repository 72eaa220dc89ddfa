// internal/pkg/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key inside a fixed window.
type Limiter interface {
	// Allow records one hit and reports whether it fits the limit, plus the
	// hits left in the current window.
	Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, int64, error)
}

type RateLimiter struct {
	client redis.Cmdable
	prefix string
}

func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client, prefix: "ratelimit:"}
}

// Allow implements a fixed-window counter: INCR, with the expiry set on the
// first hit of each window.
func (r *RateLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, int64, error) {
	k := r.prefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiration on first attempt
	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= max, remaining, nil
}

// Remaining returns the hits left for key without recording one.
func (r *RateLimiter) Remaining(ctx context.Context, key string, max int64) (int64, error) {
	count, err := r.client.Get(ctx, r.prefix+key).Int64()
	if err == redis.Nil {
		return max, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit: %w", err)
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the counter for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
