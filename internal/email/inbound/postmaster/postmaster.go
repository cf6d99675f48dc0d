// Package postmaster decides what happens to each inbound parent email:
// append to an existing ticket, open a new one, reject with an auto-reply,
// or drop silently. It performs no I/O of its own; roster and ticket
// lookups are injected and every invocation is independent.
package postmaster

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/filters"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// Action identifies the routing outcome for one inbound email.
type Action string

const (
	// ActionDropped means the message was spam or spoofed and no reply is sent.
	ActionDropped Action = "dropped"
	// ActionRejected means the sender receives an auto-reply explaining why.
	ActionRejected Action = "rejected"
	// ActionAppend means the message joins an existing ticket thread.
	ActionAppend Action = "append"
	// ActionCreate means a new ticket thread is opened.
	ActionCreate Action = "create"
)

// RejectedReason is the fixed taxonomy of rejection outcomes.
type RejectedReason int

const (
	// ReasonUnknownSender: the address is not in the roster.
	ReasonUnknownSender RejectedReason = iota
	// ReasonStaffSender: staff must not reply to tickets by raw email.
	ReasonStaffSender
	// ReasonUnknownTicket: no ticket with that number belongs to this sender.
	ReasonUnknownTicket
)

// Decision is the sole output of routing one inbound email. Exactly one
// Action is produced per message; the caller applies it against storage
// and outbound mail.
type Decision struct {
	Action       Action
	Reason       RejectedReason  // set when Action is ActionRejected
	TicketNumber int             // set when Action is ActionAppend
	Reopened     bool            // set when the appended ticket was closed
	AuthorName   string          // display name for the stored message
	Title        string          // set when Action is ActionCreate
	Parent       *models.Parent  // resolved guardian, nil when ambiguous
	Student      *models.Student // resolved child, nil when ambiguous
}

// RosterLookup resolves sender addresses against the school roster.
// Address matching is case-insensitive.
type RosterLookup interface {
	ParentsByEmail(address string) []models.Parent
	IsStaff(address string) bool
}

// TicketLookup fetches a ticket by its number. A missing ticket returns
// (nil, nil).
type TicketLookup interface {
	GetByNumber(ctx context.Context, number int) (*models.Ticket, error)
}

// Router routes inbound emails to ticket threads.
type Router struct {
	roster  RosterLookup
	tickets TicketLookup
	logger  *log.Logger
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterLogger overrides the logger used for diagnostics.
func WithRouterLogger(logger *log.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter builds a router over the given roster and ticket lookups.
func NewRouter(roster RosterLookup, tickets TicketLookup, opts ...RouterOption) *Router {
	r := &Router{
		roster:  roster,
		tickets: tickets,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Route produces the routing decision for one inbound email. It never
// returns an error for a well-formed message; a nil email or missing
// collaborator is a programming-contract violation.
func (r *Router) Route(ctx context.Context, email *models.InboundEmail, meta *filters.MessageContext) (Decision, error) {
	if email == nil {
		return Decision{}, errors.New("postmaster: email required")
	}
	if r == nil || r.roster == nil || r.tickets == nil {
		return Decision{}, errors.New("postmaster: lookups unavailable")
	}
	if n := annotationInt(meta, filters.AnnotationTicketNumber); n > 0 {
		return r.routeFollowUp(ctx, email, n), nil
	}
	return r.routeNewThread(email, meta), nil
}

func (r *Router) routeFollowUp(ctx context.Context, email *models.InboundEmail, number int) Decision {
	ticket, err := r.tickets.GetByNumber(ctx, number)
	if err != nil {
		r.logf("postmaster: ticket lookup failed for %d: %v", number, err)
		ticket = nil
	}
	// A sender must not be able to post into someone else's thread by
	// guessing or reusing a number.
	if ticket == nil || !strings.EqualFold(ticket.ParentEmail, email.From) {
		return Decision{Action: ActionRejected, Reason: ReasonUnknownTicket}
	}
	author := email.FromName
	if ticket.ParentName != nil && *ticket.ParentName != "" {
		author = *ticket.ParentName
	}
	if author == "" {
		author = email.From
	}
	if ticket.IsClosed {
		r.logf("postmaster: reopening ticket %d for new parent message", number)
	}
	return Decision{
		Action:       ActionAppend,
		TicketNumber: number,
		Reopened:     ticket.IsClosed,
		AuthorName:   author,
	}
}

func (r *Router) routeNewThread(email *models.InboundEmail, meta *filters.MessageContext) Decision {
	candidates := r.roster.ParentsByEmail(email.From)
	if len(candidates) == 0 {
		// Anti-backscatter guard: never auto-reply to mail the provider
		// flagged as spam or failing SPF.
		if annotationBool(meta, filters.AnnotationDropMessage) {
			r.logf("postmaster: dropping flagged message from %s (%s)",
				email.From, annotationString(meta, filters.AnnotationDropReason))
			return Decision{Action: ActionDropped}
		}
		if r.roster.IsStaff(email.From) {
			return Decision{Action: ActionRejected, Reason: ReasonStaffSender}
		}
		return Decision{Action: ActionRejected, Reason: ReasonUnknownSender}
	}

	decision := Decision{
		Action: ActionCreate,
		Title:  threadTitle(email.Subject),
	}
	// Resolve identity only when there is nothing to guess: one guardian
	// record with one child. Anything else is left for a human.
	if len(candidates) == 1 {
		parent := candidates[0]
		decision.AuthorName = parent.Name
		if len(parent.Children) == 1 {
			student := parent.Children[0]
			decision.Parent = &parent
			decision.Student = &student
		}
	}
	if decision.AuthorName == "" {
		decision.AuthorName = email.FromName
	}
	if decision.AuthorName == "" {
		decision.AuthorName = email.From
	}
	return decision
}

func threadTitle(subject string) string {
	title := strings.TrimSpace(subject)
	if title == "" {
		return "Email enquiry"
	}
	return title
}

func (r *Router) logf(format string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

func annotationInt(meta *filters.MessageContext, key string) int {
	if meta == nil || meta.Annotations == nil {
		return 0
	}
	switch v := meta.Annotations[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func annotationBool(meta *filters.MessageContext, key string) bool {
	if meta == nil || meta.Annotations == nil {
		return false
	}
	v, ok := meta.Annotations[key].(bool)
	return ok && v
}

func annotationString(meta *filters.MessageContext, key string) string {
	if meta == nil || meta.Annotations == nil {
		return ""
	}
	v, _ := meta.Annotations[key].(string)
	return v
}
