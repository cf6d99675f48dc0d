package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookAuth checks the auth query parameter the email provider includes on
// webhook deliveries. The key is read per request so a rotated key takes
// effect without a restart. Comparison is constant-time.
func WebhookAuth(key func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := key()
		if key == "" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		got := c.Query("auth")
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
