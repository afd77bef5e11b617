package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tixhold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimitConfig is one fixed window: at most Limit requests per Window,
// keyed by the authenticated user id when present, else the client IP.
type RateLimitConfig struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// RateLimit enforces a fixed-window counter in Redis (INCR + EXPIRE on the
// first hit of each window). Limited requests are rejected before any
// handler runs, so they never consume link or allocation quantity. Redis
// being unreachable allows the request through: blocking legitimate traffic
// is worse than letting the odd extra request in.
func RateLimit(rdb *redis.Client, cfg RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || cfg.Limit <= 0 {
			return c.Next()
		}

		now := time.Now()
		key := rateLimitKey(cfg, c, now)
		ctx := context.Background()

		n, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("scope", cfg.Scope).Msg("rate limiter unavailable, allowing request")
			return c.Next()
		}
		if n == 1 {
			// Window TTL is set once; slightly generous for requests that
			// straddle the boundary.
			_ = rdb.Expire(ctx, key, cfg.Window).Err()
		}

		remaining := cfg.Limit - int(n)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(n) > cfg.Limit {
			retryAfter := int(cfg.Window.Seconds())
			if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds() + 0.999)
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return response.Error(c, "Too many requests", fiber.StatusTooManyRequests, fiber.Map{
				"retry_after": retryAfter,
			})
		}
		return c.Next()
	}
}

func rateLimitKey(cfg RateLimitConfig, c *fiber.Ctx, now time.Time) string {
	subject := c.IP()
	if viewer := GetViewer(c); viewer != nil {
		subject = "user:" + viewer.UserID
	}
	windowStart := now.Truncate(cfg.Window).Unix()
	return fmt.Sprintf("ratelimit:%s:%s:%d", cfg.Scope, subject, windowStart)
}
