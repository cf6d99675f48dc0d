package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleToken exchanges the SSO proxy's key for a staff session token. Only
// addresses present in the staff roster are issued tokens.
func (s *Server) handleToken(c *gin.Context) {
	key := s.cfg().Auth.ProxyKey
	if key == "" || subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Proxy-Key")), []byte(key)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	member, ok := s.school.StaffByEmail(req.Email)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a staff member"})
		return
	}
	token, err := s.jwt.GenerateToken(member.Email, member.Name())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
