package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/postmaster"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

func testComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer("Hillcrest Academy", "https://helpdesk.hillcrest.example/")
	require.NoError(t, err)
	return c
}

func TestTagSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		number  int
		want    string
	}{
		{"appends tag", "Homework query", 123, "Homework query [Ticket #000123]"},
		{"empty subject", "", 7, "[Ticket #000007]"},
		{"existing tag untouched", "Re: Homework [Ticket #000123]", 123, "Re: Homework [Ticket #000123]"},
		{"existing tag any case", "re: homework [ticket #000123]", 123, "re: homework [ticket #000123]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TagSubject(tt.subject, tt.number))
		})
	}
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Homework query [Ticket #000042]", ReplySubject("Homework query", 42))
	assert.Equal(t, "Re: Homework query [Ticket #000042]", ReplySubject("Re: Homework query", 42))
}

func TestParentReplyRendersMarkdown(t *testing.T) {
	c := testComposer(t)
	ticket := &models.Ticket{
		Number:      42,
		Title:       "Homework query",
		ParentEmail: "pat.jones@example.com",
	}
	msg, err := c.ParentReply(ticket, "Thanks for getting in touch.\n\n**We will follow up tomorrow.**", "<abc@mail.example>")
	require.NoError(t, err)

	assert.Equal(t, []string{"pat.jones@example.com"}, msg.To)
	assert.Equal(t, "Re: Homework query [Ticket #000042]", msg.Subject)
	assert.Equal(t, "<abc@mail.example>", msg.InReplyTo)
	assert.Equal(t, models.EmailTagParent, msg.Tag)
	assert.Contains(t, msg.HTMLBody, "<strong>We will follow up tomorrow.</strong>")
	assert.Contains(t, msg.HTMLBody, "Hillcrest Academy")
}

func TestRejectionUsesResponderWording(t *testing.T) {
	c := testComposer(t)
	resp := postmaster.ExplainRejection(postmaster.ReasonUnknownSender)
	msg, err := c.Rejection("stranger@example.com", "About my son", resp)
	require.NoError(t, err)

	assert.Equal(t, "Re: About my son", msg.Subject)
	assert.Equal(t, models.EmailTagUnknown, msg.Tag)
	assert.Contains(t, msg.HTMLBody, resp.Heading)
}

func TestRejectionEscapesSenderText(t *testing.T) {
	c := testComposer(t)
	msg, err := c.Rejection("x@example.com", "", postmaster.Response{
		Heading: "Heading",
		Body:    "line with <script>alert(1)</script>",
		Tag:     models.EmailTagUnknown,
	})
	require.NoError(t, err)
	assert.Equal(t, "Re: Your email", msg.Subject)
	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;")
}

func TestTicketUpdateIncludesConsoleLink(t *testing.T) {
	c := testComposer(t)
	ticket := &models.Ticket{
		Number:        7,
		Title:         "Trip payment",
		AssigneeEmail: "j.smith@school.example",
	}
	msg, err := c.TicketUpdate(models.ActionReminder, ticket, "A parent has been waiting since yesterday.")
	require.NoError(t, err)

	assert.Equal(t, []string{"j.smith@school.example"}, msg.To)
	assert.Equal(t, "Reminder: Trip payment [Ticket #000007]", msg.Subject)
	assert.Equal(t, models.EmailTagStaff, msg.Tag)
	assert.Contains(t, msg.HTMLBody, "https://helpdesk.hillcrest.example/tickets/000007")
}

func TestSenderRenderHeaders(t *testing.T) {
	s := NewSender(SMTPConfig{From: "helpdesk@school.example", FromName: "Hillcrest Helpdesk"})
	data := string(s.render(&OutboundMessage{
		To:        []string{"pat.jones@example.com"},
		Subject:   "Re: Homework query [Ticket #000042]",
		HTMLBody:  "<p>hello</p>",
		InReplyTo: "<abc@mail.example>",
		Tag:       models.EmailTagParent,
	}))

	assert.Contains(t, data, "To: pat.jones@example.com\r\n")
	assert.Contains(t, data, "In-Reply-To: <abc@mail.example>\r\n")
	assert.Contains(t, data, "References: <abc@mail.example>\r\n")
	assert.Contains(t, data, "X-Tag: Parent\r\n")
	assert.Contains(t, data, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(data, "<p>hello</p>"))
}
