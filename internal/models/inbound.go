package models

import "strings"

// Header is a single name/value pair from an inbound email.
type Header struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// InboundAttachment is a file carried by an inbound email.
type InboundAttachment struct {
	Name          string `json:"Name"`
	Content       string `json:"Content"`
	ContentType   string `json:"ContentType"`
	ContentLength int64  `json:"ContentLength"`
}

// InboundEmail is the parsed inbound message delivered by the mail
// provider's webhook. Field names follow the provider's JSON payload.
type InboundEmail struct {
	From              string              `json:"From"`
	FromName          string              `json:"FromName"`
	Subject           string              `json:"Subject"`
	MessageID         string              `json:"MessageID"`
	TextBody          string              `json:"TextBody"`
	HTMLBody          string              `json:"HtmlBody"`
	StrippedTextReply string              `json:"StrippedTextReply"`
	Headers           []Header            `json:"Headers"`
	Attachments       []InboundAttachment `json:"Attachments"`
}

// Header returns the value of the named header, case-insensitively.
// Missing headers return the empty string.
func (e *InboundEmail) Header(name string) string {
	if e == nil {
		return ""
	}
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Body returns the plain-text body, falling back to the HTML body when no
// text part was supplied.
func (e *InboundEmail) Body() string {
	if e == nil {
		return ""
	}
	if e.TextBody != "" {
		return e.TextBody
	}
	return e.HTMLBody
}

// EmailTag classifies outbound mail for the provider's routing and metrics.
const (
	EmailTagUnknown = "Unknown"
	EmailTagParent  = "Parent"
	EmailTagStaff   = "Staff"
)
