package middleware

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// requireRole checks the role stored by JWTAuthMiddleware
func requireRole(role, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, exists := c.Get(KeyRole) // Get role from context
		// Check if role exists in context
		if !exists {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Check if the role matches
		if got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
			return
		}
		c.Next() // Proceed to the next handler
	}
}
