package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// RateLimit applies a fixed-window per-IP limit to the routes it guards.
// A nil limiter disables it. Limiter errors let the request through.
func RateLimit(limiter services.RateLimiter, route string, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	if limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		allowed, err := limiter.Allow(c.UserContext(), route+":"+c.IP(), limit, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			return c.Next()
		}

		if !allowed {
			utils.RateLimitedRequestsTotal.WithLabelValues(route).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window/time.Second)))
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		}

		return c.Next()
	}
}
