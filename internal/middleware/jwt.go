package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"collector_hub/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// UserIDKey is the context key holding the authenticated profile id
const UserIDKey = "userID"

// JWTAuthMiddleware validates JWT tokens and extracts user information.
// Browsers cannot set headers on websocket upgrades, so the token is also
// accepted from the access_token query parameter.
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c) // Header first, query parameter second
		if tokenStr == "" {
			// If no token was supplied, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Next()                        // Proceed to the next handler
	}
}

// UserID returns the authenticated profile id set by JWTAuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("access_token")
}
