package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jamesgurung/school-helpdesk/internal/middleware"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

type createTicketRequest struct {
	Title       string `json:"title" binding:"required"`
	ParentEmail string `json:"parent_email" binding:"required"`
	ParentName  string `json:"parent_name"`
	Content     string `json:"content" binding:"required"`
}

// handleCreateTicket opens a ticket on a parent's behalf, for enquiries that
// arrive by phone or in person rather than email.
func (s *Server) handleCreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, parent_email and content are required"})
		return
	}
	ctx := c.Request.Context()

	ticket := &models.Ticket{
		Title:         req.Title,
		AssigneeEmail: middleware.StaffEmail(c),
		AssigneeName:  middleware.StaffName(c),
		ParentEmail:   req.ParentEmail,
	}
	if req.ParentName != "" {
		name := req.ParentName
		ticket.ParentName = &name
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ticket"})
		return
	}

	author := req.ParentName
	if author == "" {
		author = req.ParentEmail
	}
	msg := &models.Message{
		TicketNumber: ticket.Number,
		Timestamp:    time.Now().UTC(),
		AuthorName:   author,
		Content:      req.Content,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ticket created but message not recorded"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}

type setStudentRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// handleSetStudent records which child an ambiguous ticket concerns. The
// child must belong to the ticket's parent in the roster.
func (s *Server) handleSetStudent(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var req setStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "first_name and last_name are required"})
		return
	}
	parent, student, found := s.findChild(ticket.ParentEmail, req.FirstName, req.LastName)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no such child for this parent"})
		return
	}
	if err := s.tickets.SetParentStudent(c.Request.Context(), ticket.Number, parent, student); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ticket"})
		return
	}
	ticket.ParentName = &parent.Name
	ticket.StudentFirstName = &student.FirstName
	ticket.StudentLastName = &student.LastName
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// handleSuggestStudent asks the drafting assistant which child an ambiguous
// ticket concerns. Advisory only: the answer is shown in the picker, nothing
// is stored.
func (s *Server) handleSuggestStudent(c *gin.Context) {
	if s.drafter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drafting assistant is not enabled"})
		return
	}
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var candidates []models.Student
	for _, parent := range s.school.ParentsByEmail(ticket.ParentEmail) {
		candidates = append(candidates, parent.Children...)
	}
	if len(candidates) < 2 {
		c.JSON(http.StatusOK, gin.H{"student": nil})
		return
	}
	messages, err := s.messages.List(c.Request.Context(), ticket.Number)
	if err != nil || len(messages) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	student, err := s.drafter.SuggestStudent(c.Request.Context(), candidates, messages[0].Content)
	if err != nil {
		s.logger.Printf("student suggestion failed for ticket %d: %v", ticket.Number, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "suggestion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student})
}

func (s *Server) findChild(parentEmail, firstName, lastName string) (models.Parent, models.Student, bool) {
	for _, parent := range s.school.ParentsByEmail(parentEmail) {
		for _, child := range parent.Children {
			if strings.EqualFold(child.FirstName, firstName) && strings.EqualFold(child.LastName, lastName) {
				return parent, child, true
			}
		}
	}
	return models.Parent{}, models.Student{}, false
}
