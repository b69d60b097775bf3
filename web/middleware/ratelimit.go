package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/web/cache"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	Name              string
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
}

// LoginRateLimitConfig limits login attempts per client IP.
func LoginRateLimitConfig(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Name:              "login",
		RequestsPerMinute: perMinute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// RateLimitMiddleware counts requests per key in Redis over a one minute
// window. Requests pass unchecked when Redis is unavailable.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + config.Name + ":" + config.KeyFunc(c)
		ctx := c.Request.Context()

		count, err := cache.Incr(ctx, key, time.Minute)
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}

		remaining := config.RequestsPerMinute - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.RequestsPerMinute {
			if ttl, err := cache.TTL(ctx, key); err == nil && ttl > 0 {
				c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			}
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", key, c.Request.URL.Path, count)
			abort(c, http.StatusTooManyRequests, "tooManyRequests")
			return
		}

		c.Next()
	}
}
