package middleware

import (
	"github.com/gin-gonic/gin"
)

// DevUserID is the actor recorded when no authenticated user is present.
const DevUserID = "00000000-0000-0000-0000-000000000001"

// DevelopmentAuthMiddleware records the acting user for audit fields.
// Authentication itself happens in front of the service.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.GetHeader("X-User-ID")
		}
		if userID == "" {
			userID = DevUserID
		}

		c.Set("userId", userID)
		c.Set("user_id", userID)
		c.Next()
	}
}

// GetUserID retrieves the acting user ID from gin context
func GetUserID(c *gin.Context) string {
	if uid := c.GetString("user_id"); uid != "" {
		return uid
	}
	return c.GetString("userId")
}
