// Package api exposes the HTTP surface: the inbound email webhook, the staff
// ticket API, and operational endpoints.
package api

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesgurung/school-helpdesk/internal/ai"
	"github.com/jamesgurung/school-helpdesk/internal/auth"
	"github.com/jamesgurung/school-helpdesk/internal/config"
	"github.com/jamesgurung/school-helpdesk/internal/email"
	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/filters"
	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/postmaster"
	"github.com/jamesgurung/school-helpdesk/internal/mailqueue"
	"github.com/jamesgurung/school-helpdesk/internal/middleware"
	"github.com/jamesgurung/school-helpdesk/internal/repository"
	"github.com/jamesgurung/school-helpdesk/internal/roster"
	"github.com/jamesgurung/school-helpdesk/internal/utils"
)

const healthTimeout = 3 * time.Second

// MessageSender delivers a composed message immediately. *email.Sender
// satisfies it; tests substitute a fake.
type MessageSender interface {
	Send(msg *email.OutboundMessage) error
}

// Server wires the HTTP handlers to their collaborators.
type Server struct {
	cfg       func() *config.Config
	school    *roster.School
	tickets   *repository.TicketRepository
	messages  *repository.MessageRepository
	queue     *mailqueue.Repository
	router    *postmaster.Router
	chain     filters.Chain
	sanitizer *utils.EmailSanitizer
	composer  *email.Composer
	sender    MessageSender
	drafter   *ai.Drafter
	jwt       *auth.JWTManager
	logger    *log.Logger
}

// Deps carries the collaborators for NewServer.
type Deps struct {
	// Config returns the current configuration snapshot. Pass config.Get so
	// handlers observe hot reloads; each request reads it afresh.
	Config    func() *config.Config
	School    *roster.School
	Tickets   *repository.TicketRepository
	Messages  *repository.MessageRepository
	Queue     *mailqueue.Repository
	Composer  *email.Composer
	Sender    MessageSender
	Drafter   *ai.Drafter // nil when the assistant is disabled
	JWT       *auth.JWTManager
	Logger    *log.Logger
}

// NewServer builds the HTTP server around the given collaborators.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:      d.Config,
		school:   d.School,
		tickets:  d.Tickets,
		messages: d.Messages,
		queue:    d.Queue,
		router: postmaster.NewRouter(d.School, d.Tickets,
			postmaster.WithRouterLogger(logger)),
		chain: filters.NewChain(
			filters.NewSubjectTokenFilter(logger),
			filters.NewSpamFilter(logger),
		),
		sanitizer: utils.NewEmailSanitizer(),
		composer:  d.Composer,
		sender:    d.Sender,
		drafter:   d.Drafter,
		jwt:       d.JWT,
		logger:    logger,
	}
}

// Register attaches all routes to the gin engine.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	if s.cfg().Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.POST("/inbound", middleware.WebhookAuth(func() string { return s.cfg().Inbound.AuthKey }), s.handleInbound)
	r.POST("/auth/token", s.handleToken)

	staff := r.Group("/api", middleware.StaffAuth(s.jwt))
	{
		staff.GET("/tickets", s.handleListTickets)
		staff.POST("/tickets", s.handleCreateTicket)
		staff.GET("/tickets/:number", s.handleGetTicket)
		staff.POST("/tickets/:number/reply", s.handleReply)
		staff.POST("/tickets/:number/note", s.handleNote)
		staff.POST("/tickets/:number/assign", s.handleAssign)
		staff.POST("/tickets/:number/rename", s.handleRename)
		staff.POST("/tickets/:number/close", s.handleClose)
		staff.POST("/tickets/:number/reopen", s.handleReopen)
		staff.POST("/tickets/:number/draft", s.handleDraft)
		staff.POST("/tickets/:number/student", s.handleSetStudent)
		staff.POST("/tickets/:number/suggest-student", s.handleSuggestStudent)
		staff.PUT("/people", s.handleSyncPeople)
		staff.GET("/staff", s.handleListStaff)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if _, err := s.tickets.GetByNumber(ctx, 1); err != nil {
		c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}
