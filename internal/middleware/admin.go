package middleware

import (
	"net/http" // HTTP status codes

	"collector_hub/internal/store" // Persistence contract

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware checks the user's role from the store on each request
func AdminOnlyMiddleware(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c) // Get userID from context
		// Check if userID exists in context
		if userID == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		profile, err := st.GetProfile(c.Request.Context(), userID) // Fetch profile
		if err != nil || !profile.IsAdmin() {
			// If profile not found, lookup failed or not an admin, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		// If admin, proceed to the next handler
		c.Next()
	}
}
