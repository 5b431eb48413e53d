package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/yoku-app/gateway/internal/apierror"
	"github.com/yoku-app/gateway/internal/observability"
)

// Recovery converts a handler panic into a classified internal error and
// hands it to the boundary. The client never sees the panic value.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					observability.String("path", c.Request.URL.Path),
					observability.Any("panic", r),
					observability.String("stack", string(debug.Stack())))

				_ = c.Error(apierror.Operation("an unexpected error occurred",
					apierror.WithCause(fmt.Errorf("panic: %v", r)),
					apierror.WithoutLogging()))
				c.Abort()
			}
		}()

		c.Next()
	}
}
