package filters

import (
	"context"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// Annotation keys set by filters and consumed by the postmaster.
const (
	AnnotationTicketNumber = "ticket_number"
	AnnotationDropMessage  = "drop_message"
	AnnotationDropReason   = "drop_reason"
)

// MessageContext is the mutable envelope filters operate on.
type MessageContext struct {
	Email       *models.InboundEmail
	Annotations map[string]any
}

// Filter inspects or annotates a message before it reaches the postmaster.
type Filter interface {
	ID() string
	Apply(ctx context.Context, m *MessageContext) error
}

// Chain executes filters in order, short-circuiting on error.
type Chain struct {
	filters []Filter
}

// NewChain returns a filter chain that runs the provided filters sequentially.
func NewChain(fs ...Filter) Chain {
	return Chain{filters: fs}
}

// Run executes the chain.
func (c Chain) Run(ctx context.Context, m *MessageContext) error {
	for _, f := range c.filters {
		if err := f.Apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
