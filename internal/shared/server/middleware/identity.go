package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"
)

// Identity resolves the caller identity from trusted headers and stores it
// in the request context. Authentication itself happens upstream of this
// service; requests carry either X-User-Id or X-Guest-Id.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		if userID := strings.TrimSpace(c.GetHeader("X-User-Id")); userID != "" {
			c.Set(userIDKey, userID)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsGuestFromContext reports whether the caller identified as a guest.
func IsGuestFromContext(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, _ := c.Get(isGuestKey)
	guest, _ := val.(bool)
	return guest
}
