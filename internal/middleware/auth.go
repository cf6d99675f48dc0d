// Package middleware holds gin middleware for the staff API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jamesgurung/school-helpdesk/internal/auth"
)

const (
	// ContextStaffEmail is the gin context key for the authenticated
	// staff member's address.
	ContextStaffEmail = "staff_email"
	// ContextStaffName is the gin context key for their display name.
	ContextStaffName = "staff_name"
)

// StaffAuth requires a valid Bearer session token on every request.
func StaffAuth(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ContextStaffEmail, claims.Email)
		c.Set(ContextStaffName, claims.Name)
		c.Next()
	}
}

// StaffEmail returns the authenticated staff address from the context.
func StaffEmail(c *gin.Context) string {
	return c.GetString(ContextStaffEmail)
}

// StaffName returns the authenticated staff display name from the context.
func StaffName(c *gin.Context) string {
	return c.GetString(ContextStaffName)
}
