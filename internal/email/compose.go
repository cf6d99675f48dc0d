package email

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/postmaster"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// layoutTemplate is the shared outer frame for every outbound message.
const layoutTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, Helvetica, sans-serif; font-size: 14px; color: #1a1a1a; margin: 0; padding: 16px;">
<h2 style="font-size: 16px; margin: 0 0 12px 0;">{{ heading }}</h2>
{{ body | safe }}
{% if link %}<p><a href="{{ link }}">{{ link_text }}</a></p>{% endif %}
<p style="color: #666666; font-size: 12px; margin-top: 24px;">{{ school_name }}</p>
</body>
</html>`

// Composer renders outbound messages for a school.
type Composer struct {
	layout     *pongo2.Template
	markdown   goldmark.Markdown
	schoolName string
	siteURL    string
}

// NewComposer builds the composer. siteURL is the staff console base URL used
// in ticket links; it may be empty for installs without the console exposed.
func NewComposer(schoolName, siteURL string) (*Composer, error) {
	layout, err := pongo2.FromString(layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}
	return &Composer{
		layout:     layout,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		schoolName: schoolName,
		siteURL:    strings.TrimRight(siteURL, "/"),
	}, nil
}

// TagSubject ensures the subject carries the ticket tag exactly once.
func TagSubject(subject string, number int) string {
	tag := fmt.Sprintf("[Ticket #%s]", models.FormatTicketNumber(number))
	if strings.Contains(strings.ToLower(subject), "[ticket #") {
		return subject
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return tag
	}
	return subject + " " + tag
}

// ReplySubject builds the subject line for a reply within a ticket thread.
func ReplySubject(title string, number int) string {
	subject := strings.TrimSpace(title)
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return TagSubject(subject, number)
}

// ParentReply renders a staff response for delivery to the parent. The
// content is markdown as written in the console.
func (c *Composer) ParentReply(ticket *models.Ticket, content string, inReplyTo string) (*OutboundMessage, error) {
	body, err := c.renderMarkdown(content)
	if err != nil {
		return nil, err
	}
	html, err := c.renderLayout(pongo2.Context{
		"heading": ticket.Title,
		"body":    body,
	})
	if err != nil {
		return nil, err
	}
	return &OutboundMessage{
		To:        []string{ticket.ParentEmail},
		Subject:   ReplySubject(ticket.Title, ticket.Number),
		HTMLBody:  html,
		InReplyTo: inReplyTo,
		Tag:       models.EmailTagParent,
	}, nil
}

// Rejection renders an automated response explaining why an inbound email was
// not accepted.
func (c *Composer) Rejection(to, originalSubject string, resp postmaster.Response) (*OutboundMessage, error) {
	html, err := c.renderLayout(pongo2.Context{
		"heading": resp.Heading,
		"body":    paragraphs(resp.Body),
	})
	if err != nil {
		return nil, err
	}
	return &OutboundMessage{
		To:       []string{to},
		Subject:  RejectionSubject(originalSubject),
		HTMLBody: html,
		Tag:      resp.Tag,
	}, nil
}

// RejectionSubject builds the subject for an automated rejection, replying to
// the original subject without stacking "Re:" prefixes.
func RejectionSubject(originalSubject string) string {
	subject := strings.TrimSpace(originalSubject)
	if subject == "" {
		subject = "Your email"
	}
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return subject
}

// TicketUpdate renders a staff notification about ticket activity.
func (c *Composer) TicketUpdate(action models.TicketUpdateAction, ticket *models.Ticket, detail string) (*OutboundMessage, error) {
	heading := UpdateHeading(action, ticket)
	ctx := pongo2.Context{
		"heading": heading,
		"body":    paragraphs(detail),
	}
	if c.siteURL != "" {
		ctx["link"] = fmt.Sprintf("%s/tickets/%s", c.siteURL, models.FormatTicketNumber(ticket.Number))
		ctx["link_text"] = "Open ticket"
	}
	html, err := c.renderLayout(ctx)
	if err != nil {
		return nil, err
	}
	return &OutboundMessage{
		To:       []string{ticket.AssigneeEmail},
		Subject:  TagSubject(heading, ticket.Number),
		HTMLBody: html,
		Tag:      models.EmailTagStaff,
	}, nil
}

// UpdateHeading is the one-line summary used in staff notification subjects
// and headings.
func UpdateHeading(action models.TicketUpdateAction, ticket *models.Ticket) string {
	switch action {
	case models.ActionAssigned:
		return "New ticket assigned to you: " + ticket.Title
	case models.ActionNewReply:
		return "New reply: " + ticket.Title
	case models.ActionReassigned:
		return "Ticket reassigned to you: " + ticket.Title
	case models.ActionReminder:
		return "Reminder: " + ticket.Title
	default:
		return ticket.Title
	}
}

// Notification renders a stored heading and plain-text body, as used when
// draining the mail queue.
func (c *Composer) Notification(heading, body string) (string, error) {
	return c.renderLayout(pongo2.Context{
		"heading": heading,
		"body":    paragraphs(body),
	})
}

func (c *Composer) renderLayout(ctx pongo2.Context) (string, error) {
	ctx["school_name"] = c.schoolName
	out, err := c.layout.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return out, nil
}

func (c *Composer) renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// paragraphs wraps plain text in HTML paragraphs, escaping as it goes.
func paragraphs(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(escapeHTML(para), "\n", "<br>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
