package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/observability"
)

// ErrorHandler is the single boundary where errors become wire responses.
// Handlers and inner middleware attach errors with c.Error and write
// nothing themselves; after the chain unwinds, the last attached error is
// classified, logged once, and serialized once.
func ErrorHandler(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		apiErr := apierror.From(c.Errors.Last().Err)

		if apiErr.ShouldLog() {
			fields := []observability.Field{
				observability.String("kind", string(apiErr.Kind())),
				observability.Int("status", apiErr.Status()),
				observability.String("path", c.Request.URL.Path),
				observability.Error(apiErr),
			}
			if requestID := observability.RequestIDFromContext(c.Request.Context()); requestID != "" {
				fields = append(fields, observability.String("request_id", requestID))
			}
			logger.Error("request failed", fields...)
		}

		// An upstream already streamed to the client cannot be rewritten.
		if c.Writer.Written() {
			return
		}

		if contentType, body, ok := apiErr.UpstreamBody(); ok {
			c.Data(apiErr.Status(), contentType, body)
			return
		}

		c.JSON(apiErr.Status(), apiErr.Serialize())
	}
}
