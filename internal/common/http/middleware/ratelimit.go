package middleware

import (
	"context"
	"fmt"
	"time"

	"classqa/internal/common/cache"
	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/logger"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "classqa:rate:"

// RateLimiter enforces fixed-window limits using the cache counters.
type RateLimiter struct {
	cache        cache.BasicOps
	window       time.Duration
	cacheTimeout time.Duration
}

// NewRateLimiter creates a limiter; window is the default window for Allow.
func NewRateLimiter(cacheClient cache.BasicOps, window, cacheTimeout time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if cacheTimeout <= 0 {
		cacheTimeout = 200 * time.Millisecond
	}
	return &RateLimiter{cache: cacheClient, window: window, cacheTimeout: cacheTimeout}
}

// Allow counts one hit for key and fails with TooManyRequests past max hits per window.
func (l *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = l.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, l.cacheTimeout)
	defer cancel()

	acquired, err := l.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	var count int64 = 1
	if !acquired {
		count, err = l.cache.Incr(ctxCache, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		// A counter that lost its TTL would never reset.
		if ttl, ttlErr := l.cache.TTL(ctxCache, key); ttlErr == nil && ttl < 0 {
			_ = l.cache.Expire(ctxCache, key, window)
		}
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests)
	}
	return nil
}

// RateLimitPolicy limits one route group per client IP.
type RateLimitPolicy struct {
	Window time.Duration `yaml:"window"`
	IPMax  int           `yaml:"ipMax"`
}

// RateLimitMiddleware enforces per-IP limits for routeKey. A nil limiter disables it.
// Cache outages fail open so students can still answer.
func RateLimitMiddleware(limiter *RateLimiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || policy.IPMax <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("%sip:%s:%s", rateLimitKeyPrefix, c.ClientIP(), routeKey)
		if err := limiter.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
			if pkgerrors.Is(err, pkgerrors.TooManyRequests) {
				response.AbortWithError(c, err)
				return
			}
			logger.Warn(c.Request.Context(), "rate limit check skipped", zap.String("route", routeKey), zap.Error(err))
		}
		c.Next()
	}
}
