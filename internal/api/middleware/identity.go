package middleware

import (
	"net/http"
	"strings"

	"github.com/feliks/curio/internal/logger"
	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// Identity extracts the caller's user ID from the X-User-ID header, set by
// the gateway in front of this service. Requests without one are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "X-User-ID header is required",
			})
			return
		}

		c.Set(userIDKey, userID)
		ctx := logger.SetUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserID returns the authenticated user ID stored by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
