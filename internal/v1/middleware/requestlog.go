package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/logging"
)

// RequestLogger logs one structured line per HTTP request, tagged with the
// correlation ID when CorrelationID ran earlier in the chain.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		ctx := context.Background()
		if cid, ok := c.Get(string(logging.CorrelationIDKey)); ok {
			if s, ok := cid.(string); ok {
				ctx = context.WithValue(ctx, logging.CorrelationIDKey, s)
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		if len(c.Errors) > 0 {
			logging.Error(ctx, "request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logging.Info(ctx, "request", fields...)
	}
}
