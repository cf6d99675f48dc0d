package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jamesgurung/school-helpdesk/internal/middleware"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

func ticketNumberParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket number"})
		return 0, false
	}
	return n, true
}

// loadTicket fetches the ticket or writes the error response.
func (s *Server) loadTicket(c *gin.Context) (*models.Ticket, bool) {
	number, ok := ticketNumberParam(c)
	if !ok {
		return nil, false
	}
	ticket, err := s.tickets.GetByNumber(c.Request.Context(), number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ticket"})
		return nil, false
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return nil, false
	}
	return ticket, true
}

// handleListTickets returns tickets, filtered by ?view=open|closed|mine.
func (s *Server) handleListTickets(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		tickets []models.Ticket
		err     error
	)
	switch c.DefaultQuery("view", "open") {
	case "closed":
		tickets, err = s.tickets.ListClosed(ctx)
	case "mine":
		tickets, err = s.tickets.ListForAssignee(ctx, middleware.StaffEmail(c))
	default:
		tickets, err = s.tickets.ListOpen(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) handleGetTicket(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	messages, err := s.messages.List(c.Request.Context(), ticket.Number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "messages": messages})
}

type replyRequest struct {
	Content string `json:"content" binding:"required"`
	// Close marks the ticket resolved after this reply is sent.
	Close bool `json:"close"`
}

// handleReply sends a staff response to the parent and records it.
func (s *Server) handleReply(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	ctx := c.Request.Context()

	msg, err := s.composer.ParentReply(ticket, req.Content, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compose reply"})
		return
	}
	if err := s.sender.Send(msg); err != nil {
		s.logger.Printf("failed to send reply for ticket %d: %v", ticket.Number, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send reply"})
		return
	}

	now := time.Now().UTC()
	record := &models.Message{
		TicketNumber: ticket.Number,
		Timestamp:    now,
		AuthorName:   middleware.StaffName(c),
		IsEmployee:   true,
		Content:      req.Content,
	}
	if err := s.messages.Append(ctx, record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reply sent but not recorded"})
		return
	}
	if err := s.tickets.UpdateForStaffReply(ctx, ticket.Number, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reply sent but ticket not updated"})
		return
	}
	if req.Close {
		if err := s.tickets.SetClosed(ctx, ticket.Number, true); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reply sent but ticket not closed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": record})
}

type noteRequest struct {
	Content string `json:"content" binding:"required"`
}

// handleNote records an internal note visible only to staff.
func (s *Server) handleNote(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	record := &models.Message{
		TicketNumber: ticket.Number,
		Timestamp:    time.Now().UTC(),
		AuthorName:   middleware.StaffName(c),
		IsEmployee:   true,
		IsPrivate:    true,
		Content:      req.Content,
	}
	if err := s.messages.Append(c.Request.Context(), record); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store note"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": record})
}

type assignRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleAssign moves the ticket to another staff member and notifies them.
func (s *Server) handleAssign(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	member, ok := s.school.StaffByEmail(req.Email)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a staff member"})
		return
	}
	ctx := c.Request.Context()
	if err := s.tickets.Reassign(ctx, ticket.Number, member.Email, member.Name()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reassign ticket"})
		return
	}
	ticket.AssigneeEmail = member.Email
	ticket.AssigneeName = member.Name()
	if err := s.queueStaffUpdate(ctx, models.ActionReassigned, ticket,
		"This ticket has been reassigned to you by "+middleware.StaffName(c)+"."); err != nil {
		s.logger.Printf("failed to queue reassignment notice for ticket %d: %v", ticket.Number, err)
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

type renameRequest struct {
	Title string `json:"title" binding:"required"`
}

func (s *Server) handleRename(c *gin.Context) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if err := s.tickets.Rename(c.Request.Context(), ticket.Number, req.Title); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename ticket"})
		return
	}
	ticket.Title = req.Title
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (s *Server) handleClose(c *gin.Context) {
	s.setClosed(c, true)
}

func (s *Server) handleReopen(c *gin.Context) {
	s.setClosed(c, false)
}

func (s *Server) setClosed(c *gin.Context, closed bool) {
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	if err := s.tickets.SetClosed(c.Request.Context(), ticket.Number, closed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update ticket"})
		return
	}
	ticket.IsClosed = closed
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// handleDraft returns an AI-suggested reply for the staff editor. The draft
// is advisory: nothing is stored or sent here.
func (s *Server) handleDraft(c *gin.Context) {
	if s.drafter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "drafting assistant is not enabled"})
		return
	}
	ticket, ok := s.loadTicket(c)
	if !ok {
		return
	}
	history, err := s.messages.List(c.Request.Context(), ticket.Number)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	draft, err := s.drafter.DraftReply(c.Request.Context(), ticket, history)
	if err != nil {
		s.logger.Printf("draft generation failed for ticket %d: %v", ticket.Number, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "draft generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}
