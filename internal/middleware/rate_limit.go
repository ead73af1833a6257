package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// KeyFunc derives the rate limit bucket of a request.
type KeyFunc func(c *fiber.Ctx) string

// RateLimit allows at most limit requests per bucket per window using Redis
// counters. It is a no-op without Redis and fails open on cache errors.
func RateLimit(cache *redis.Client, scope string, limit int, window time.Duration, key KeyFunc) fiber.Handler {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if key == nil {
		key = func(c *fiber.Ctx) string { return c.IP() }
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		bucket := fmt.Sprintf("rl:%s:%s", scope, key(c))
		cnt, err := cache.Incr(c.UserContext(), bucket).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), bucket, window)
		}
		if cnt > int64(limit) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

// LoginRateLimit limits login attempts per phone, or per IP when no phone is sent.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	return RateLimit(cache, "login", maxPerMin, time.Minute, func(c *fiber.Ctx) string {
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		if phone := strings.TrimSpace(req.Phone); phone != "" {
			return phone
		}
		return c.IP()
	})
}
