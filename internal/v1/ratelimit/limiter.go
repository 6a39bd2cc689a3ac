// Package ratelimit implements per-IP rate limiting for the HTTP read
// surface and for websocket connection attempts.
//
// This is distinct from the in-room action rate limiter: connections are
// limited here before any session state exists; game actions are policed by
// the session package's sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/config"
	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/metrics"
)

// RateLimiter holds the rate limiter instances.
type RateLimiter struct {
	api   *limiter.Limiter
	wsIP  *limiter.Limiter
	store limiter.Store
}

// New creates a RateLimiter from the configured rate formats. The server is
// single-process, so the in-memory store is always used.
func New(cfg *config.Config) (*RateLimiter, error) {
	apiRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPI)
	if err != nil {
		return nil, fmt.Errorf("invalid API rate: %w", err)
	}

	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	store := memory.NewStore()

	return &RateLimiter{
		api:   limiter.New(store, apiRate),
		wsIP:  limiter.New(store, wsIPRate),
		store: store,
	}, nil
}

// APIMiddleware returns a Gin middleware that enforces the per-IP API limit.
func (rl *RateLimiter) APIMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lctx, err := rl.api.Get(ctx, c.ClientIP())
		if err != nil {
			// Fail open: availability beats strictness for a read surface.
			logging.Error(ctx, "Rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), "ip").Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// CheckWebSocket checks whether a websocket connection attempt from this IP
// is allowed. Returns false after writing the refusal response.
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	lctx, err := rl.wsIP.Get(ctx, c.ClientIP())
	if err != nil {
		logging.Error(ctx, "WS rate limiter store failed", zap.Error(err))
		return true // Fail open
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}

// Peek reports the remaining budget for a key against the WS limit without
// consuming it. Used by tests and diagnostics.
func (rl *RateLimiter) Peek(ctx context.Context, key string) (int64, error) {
	lctx, err := rl.wsIP.Peek(ctx, key)
	if err != nil {
		return 0, err
	}
	return lctx.Remaining, nil
}
