package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/lms-progress-server/pkg/apperrors"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/response"
)

// RateLimiter is a fixed-window limiter keyed by client IP. Counters live in
// the cache so every API instance shares them when redis is configured.
type RateLimiter struct {
	store  cache.Client
	rate   int64
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter allows rate requests per window.
func NewRateLimiter(store cache.Client, rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		rate:   int64(rate),
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Middleware returns a Gin middleware that enforces rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		allowed, err := rl.allow(c, c.ClientIP())
		if err != nil {
			// counting failures never block traffic
			rl.logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			response.AppError(nil, c, apperrors.New("Too many requests. Please try again later.",
				http.StatusTooManyRequests, apperrors.ErrTooMany, nil))
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, key string) (bool, error) {
	windowStart := rl.now().Truncate(rl.window).Unix()
	counterKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	count, err := rl.store.Increment(c.Request.Context(), counterKey)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rl.store.Expire(c.Request.Context(), counterKey, rl.window); err != nil {
			return false, err
		}
	}

	return count <= rl.rate, nil
}
