package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoku-app/gateway/internal/observability"
)

// Logging writes one structured access log line per request.
func Logging(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)),
			observability.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, observability.String("query", query))
		}
		if requestID := observability.RequestIDFromContext(c.Request.Context()); requestID != "" {
			fields = append(fields, observability.String("request_id", requestID))
		}

		if c.Writer.Status() >= 500 {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
