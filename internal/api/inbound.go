package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/filters"
	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/postmaster"
	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/reply"
	"github.com/jamesgurung/school-helpdesk/internal/metrics"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// inboundSchema validates the provider's webhook payload before any routing
// logic runs. Unknown extra fields are allowed; the listed ones must have the
// right types when present.
const inboundSchema = `{
	"type": "object",
	"required": ["From"],
	"properties": {
		"From": {"type": "string", "minLength": 3},
		"FromName": {"type": "string"},
		"Subject": {"type": "string"},
		"MessageID": {"type": "string"},
		"TextBody": {"type": "string"},
		"HtmlBody": {"type": "string"},
		"StrippedTextReply": {"type": "string"},
		"Headers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["Name", "Value"],
				"properties": {
					"Name": {"type": "string"},
					"Value": {"type": "string"}
				}
			}
		},
		"Attachments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["Name"],
				"properties": {
					"Name": {"type": "string"},
					"Content": {"type": "string"},
					"ContentType": {"type": "string"},
					"ContentLength": {"type": "integer"}
				}
			}
		}
	}
}`

var inboundSchemaLoader = gojsonschema.NewStringLoader(inboundSchema)

const maxInboundBody = 25 << 20

// handleInbound accepts one email from the provider webhook, routes it, and
// applies the decision. The provider retries non-2xx responses, so anything
// that is handled (even by dropping) returns 200.
func (s *Server) handleInbound(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboundBody))
	if err != nil {
		metrics.InboundEmails.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	result, err := gojsonschema.Validate(inboundSchemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil || !result.Valid() {
		metrics.InboundEmails.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload does not match inbound schema"})
		return
	}
	var inbound models.InboundEmail
	if err := json.Unmarshal(payload, &inbound); err != nil {
		metrics.InboundEmails.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	meta := &filters.MessageContext{Email: &inbound, Annotations: map[string]any{}}
	if err := s.chain.Run(c.Request.Context(), meta); err != nil {
		s.logger.Printf("inbound filter chain failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "filter chain failed"})
		return
	}

	decision, err := s.router.Route(c.Request.Context(), &inbound, meta)
	if err != nil {
		s.logger.Printf("inbound routing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "routing failed"})
		return
	}

	outcome, err := s.applyDecision(c.Request.Context(), &inbound, decision)
	if err != nil {
		s.logger.Printf("failed to apply inbound decision %s: %v", decision.Action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	metrics.InboundEmails.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

func (s *Server) applyDecision(ctx context.Context, inbound *models.InboundEmail, decision postmaster.Decision) (string, error) {
	switch decision.Action {
	case postmaster.ActionDropped:
		return "dropped", nil

	case postmaster.ActionRejected:
		metrics.Rejections.WithLabelValues(rejectionLabel(decision.Reason)).Inc()
		if !s.cfg().Inbound.RejectionsEnabled {
			return "rejected", nil
		}
		return "rejected", s.queueRejection(ctx, inbound, decision.Reason)

	case postmaster.ActionAppend:
		content := reply.ForTicketReply(inbound.StrippedTextReply, s.inboundText(inbound))
		if content == "" {
			return "empty", nil
		}
		return "appended", s.appendToTicket(ctx, inbound, decision, content)

	case postmaster.ActionCreate:
		content := reply.NewMessage(s.inboundText(inbound))
		if content == "" {
			return "empty", nil
		}
		return "created", s.createTicket(ctx, inbound, decision, content)
	}
	return "dropped", nil
}

// inboundText returns the plain text to extract from, stripping tags when
// the message is HTML-only.
func (s *Server) inboundText(inbound *models.InboundEmail) string {
	if inbound.TextBody != "" {
		return inbound.TextBody
	}
	return s.sanitizer.StripHTML(inbound.HTMLBody)
}

func (s *Server) appendToTicket(ctx context.Context, inbound *models.InboundEmail, decision postmaster.Decision, content string) error {
	now := time.Now().UTC()
	original := s.sanitizer.EmailBodyHTML(inbound.HTMLBody, inbound.TextBody)
	msg := &models.Message{
		TicketNumber:  decision.TicketNumber,
		Timestamp:     now,
		AuthorName:    decision.AuthorName,
		Content:       content,
		OriginalEmail: &original,
		Attachments:   storedAttachments(inbound),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return err
	}
	if err := s.tickets.UpdateForNewParentMessage(ctx, decision.TicketNumber, now); err != nil {
		return err
	}
	if decision.Reopened {
		metrics.TicketsReopened.Inc()
	}
	ticket, err := s.tickets.GetByNumber(ctx, decision.TicketNumber)
	if err != nil || ticket == nil {
		return err
	}
	return s.queueStaffUpdate(ctx, models.ActionNewReply, ticket,
		decision.AuthorName+" has replied.")
}
