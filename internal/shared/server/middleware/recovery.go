package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/shared/server/respond"
	"resume-optimizer/internal/shared/telemetry"
)

// Recovery converts panics into standardized 500 responses so one bad
// request cannot take the process down.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				})
				respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
			}
		}()
		c.Next()
	}
}
