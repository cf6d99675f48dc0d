package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jamesgurung/school-helpdesk/internal/email"
	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/postmaster"
	"github.com/jamesgurung/school-helpdesk/internal/mailqueue"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

func (s *Server) createTicket(ctx context.Context, inbound *models.InboundEmail, decision postmaster.Decision, content string) error {
	ticket := &models.Ticket{
		Title:         decision.Title,
		AssigneeEmail: s.cfg().School.TriageEmail,
		AssigneeName:  s.cfg().School.TriageName,
		ParentEmail:   inbound.From,
	}
	if decision.AuthorName != "" && decision.AuthorName != inbound.From {
		name := decision.AuthorName
		ticket.ParentName = &name
	}
	if decision.Parent != nil && decision.Student != nil {
		ticket.ParentName = &decision.Parent.Name
		if decision.Parent.Phone != "" {
			ticket.ParentPhone = &decision.Parent.Phone
		}
		ticket.StudentFirstName = &decision.Student.FirstName
		ticket.StudentLastName = &decision.Student.LastName
		if decision.Student.TutorGroup != "" {
			ticket.TutorGroup = &decision.Student.TutorGroup
		}
		if decision.Student.Relationship != "" {
			ticket.ParentRelationship = &decision.Student.Relationship
		}
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return err
	}

	original := s.sanitizer.EmailBodyHTML(inbound.HTMLBody, inbound.TextBody)
	msg := &models.Message{
		TicketNumber:  ticket.Number,
		Timestamp:     ticket.Created,
		AuthorName:    decision.AuthorName,
		Content:       content,
		OriginalEmail: &original,
		Attachments:   storedAttachments(inbound),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return err
	}
	return s.queueStaffUpdate(ctx, models.ActionAssigned, ticket,
		fmt.Sprintf("A new enquiry from %s has been assigned to you.", decision.AuthorName))
}

// queueRejection queues the automated response for an email that could not be
// accepted. Delivery goes through the mail queue so webhook handling never
// blocks on SMTP.
func (s *Server) queueRejection(ctx context.Context, inbound *models.InboundEmail, reason postmaster.RejectedReason) error {
	resp := postmaster.ExplainRejection(reason)
	item := &mailqueue.Item{
		Recipient: inbound.From,
		Subject:   email.RejectionSubject(inbound.Subject),
		Heading:   resp.Heading,
		Body:      resp.Body,
		Tag:       resp.Tag,
	}
	if inbound.MessageID != "" {
		threadID := inbound.MessageID
		item.ThreadID = &threadID
	}
	err := s.queue.Enqueue(ctx, item)
	if errors.Is(err, mailqueue.ErrDuplicate) {
		return nil
	}
	return err
}

// queueStaffUpdate notifies the assignee about ticket activity.
func (s *Server) queueStaffUpdate(ctx context.Context, action models.TicketUpdateAction, ticket *models.Ticket, detail string) error {
	if ticket.AssigneeEmail == "" {
		return nil
	}
	heading := email.UpdateHeading(action, ticket)
	fp := fmt.Sprintf("%s:%s:%d", action, models.FormatTicketNumber(ticket.Number), time.Now().UnixNano())
	err := s.queue.Enqueue(ctx, &mailqueue.Item{
		Fingerprint: &fp,
		Recipient:   ticket.AssigneeEmail,
		Subject:     email.TagSubject(heading, ticket.Number),
		Heading:     heading,
		Body:        detail,
		Tag:         models.EmailTagStaff,
	})
	if errors.Is(err, mailqueue.ErrDuplicate) {
		return nil
	}
	return err
}

func storedAttachments(inbound *models.InboundEmail) []models.Attachment {
	if len(inbound.Attachments) == 0 {
		return nil
	}
	out := make([]models.Attachment, 0, len(inbound.Attachments))
	for _, att := range inbound.Attachments {
		out = append(out, models.Attachment{
			FileName: att.Name,
			Size:     att.ContentLength,
		})
	}
	return out
}

func rejectionLabel(reason postmaster.RejectedReason) string {
	switch reason {
	case postmaster.ReasonUnknownSender:
		return "unknown_sender"
	case postmaster.ReasonStaffSender:
		return "staff_sender"
	case postmaster.ReasonUnknownTicket:
		return "unknown_ticket"
	}
	return "unknown_sender"
}
