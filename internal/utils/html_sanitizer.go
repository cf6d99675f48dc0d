package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// EmailSanitizer produces safe HTML fragments from raw inbound email
// bodies, for storage and later display in a sandboxed viewer.
type EmailSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewEmailSanitizer creates a sanitizer for inbound email HTML.
//
// Images are removed entirely rather than neutered: keeping them would
// either leak tracking pixels or require fetching remote content when the
// stored email is viewed.
func NewEmailSanitizer() *EmailSanitizer {
	p := bluemonday.NewPolicy()

	// Basic formatting
	p.AllowElements("b", "strong", "i", "em", "u", "s", "strike", "del", "sub", "sup")

	// Headings
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")

	// Structure
	p.AllowElements("p", "br", "hr", "div", "span")

	// Lists
	p.AllowElements("ul", "ol", "li")

	// Quotes and code
	p.AllowElements("blockquote", "code", "pre")

	// Tables
	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

	// Links (plain href only)
	p.AllowElements("a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &EmailSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize cleans an HTML fragment, removing scripts, event handlers,
// styles, images, and anything else not on the allow list.
func (s *EmailSanitizer) Sanitize(input string) string {
	return s.policy.Sanitize(input)
}

// EmailBodyHTML returns the sanitized HTML to store for "view original
// email". When no HTML body exists the plain-text body is escaped and
// wrapped so the stored value is always a renderable fragment. Both inputs
// empty yields an empty string.
func (s *EmailSanitizer) EmailBodyHTML(htmlBody, textBody string) string {
	if strings.TrimSpace(htmlBody) != "" {
		return s.policy.Sanitize(htmlBody)
	}
	text := strings.TrimSpace(textBody)
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// StripHTML removes all markup and returns plain text.
func (s *EmailSanitizer) StripHTML(input string) string {
	return s.strict.Sanitize(input)
}
