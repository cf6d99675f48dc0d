package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jamesgurung/school-helpdesk/internal/models"
	"github.com/jamesgurung/school-helpdesk/internal/roster"
)

type peopleRequest struct {
	Parents []models.Parent `json:"parents"`
	Staff   []models.Staff  `json:"staff"`
}

// handleSyncPeople replaces the roster snapshot. The MIS export job calls
// this daily; the whole directory is swapped atomically.
func (s *Server) handleSyncPeople(c *gin.Context) {
	contentType := c.ContentType()
	if contentType == "text/csv" || contentType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		s.syncPeopleFromFile(c)
		return
	}

	var req peopleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed roster payload"})
		return
	}
	s.school.Replace(req.Parents, req.Staff)
	parents, staff := s.school.Counts()
	c.JSON(http.StatusOK, gin.H{"parents": parents, "staff": staff})
}

// syncPeopleFromFile accepts a parent roster export (CSV or XLSX) directly.
// File uploads replace the parent list only; the staff list is kept and is
// synced through the JSON payload.
func (s *Server) syncPeopleFromFile(c *gin.Context) {
	name := c.Query("filename")
	if name == "" {
		name = "roster.csv"
	}
	parents, err := roster.LoadParentsFile(name, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	staff := s.school.AllStaff()
	s.school.Replace(parents, staff)
	parentCount, staffCount := s.school.Counts()
	c.JSON(http.StatusOK, gin.H{"parents": parentCount, "staff": staffCount})
}

// handleListStaff returns the staff directory for assignment pickers.
func (s *Server) handleListStaff(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"staff": s.school.AllStaff()})
}
