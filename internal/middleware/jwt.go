package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework

	"account_manager/internal/utils" // JWT utility functions
)

// Context keys set by JWTAuthMiddleware
const (
	KeySubject = "subject" // Wallet address or operator name
	KeyRole    = "role"    // Role from the token
)

// JWTAuthMiddleware validates session tokens and extracts the subject and role
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")                // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, utils.PurposeSession, secret) // Challenges are rejected here
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(KeySubject, claims.Subject) // Store subject in context
		c.Set(KeyRole, claims.Role)       // Store role in context
		c.Next()                          // Proceed to the next handler
	}
}

// WalletOnlyMiddleware admits wallet sessions only
func WalletOnlyMiddleware() gin.HandlerFunc {
	return requireRole(utils.RoleWallet, "Wallet session required")
}

// AdminOnlyMiddleware admits operator sessions only
func AdminOnlyMiddleware() gin.HandlerFunc {
	return requireRole(utils.RoleOperator, "Admin access required")
}
