package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/delivery-issue-service/internal/config"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

// RouteClass partitions rate limit budgets. Each class counts independently
// per client key.
type RouteClass string

const (
	RouteClassGeneral RouteClass = "general"
	RouteClassAuth    RouteClass = "auth"
	RouteClassCreate  RouteClass = "create"
)

// limiterBackend is the slice of the redis client the limiter needs.
type limiterBackend interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// RateLimiter throttles requests per client IP using fixed-window counters
// in Redis. A limiter backend error fails open with a logged warning.
type RateLimiter struct {
	client limiterBackend
	cfg    config.RateLimitConfig
	logger *zap.Logger
}

// NewRateLimiter constructs the limiter. A nil client disables limiting.
func NewRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{cfg: cfg, logger: logger}
	if client != nil {
		rl.client = client
	}
	return rl
}

// Limit returns a middleware enforcing the budget for the given route class.
func (rl *RateLimiter) Limit(class RouteClass) fiber.Handler {
	budget := rl.budgetFor(class)
	return func(c *fiber.Ctx) error {
		if rl == nil || rl.client == nil || !rl.cfg.Enabled || budget <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", class, c.IP())
		count, err := rl.client.Incr(c.UserContext(), key).Result()
		if err != nil {
			rl.logger.Warn("rate limiter unavailable; allowing request", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := rl.client.Expire(c.UserContext(), key, rl.cfg.Window()).Err(); err != nil {
				rl.logger.Warn("rate limiter expire failed", zap.Error(err), zap.String("key", key))
			}
		}
		if count > int64(budget) {
			return apperrors.NewRateLimited("too many requests")
		}
		return c.Next()
	}
}

func (rl *RateLimiter) budgetFor(class RouteClass) int {
	switch class {
	case RouteClassAuth:
		return rl.cfg.AuthPerWindow
	case RouteClassCreate:
		return rl.cfg.CreatePerWindow
	default:
		return rl.cfg.GeneralPerWindow
	}
}
