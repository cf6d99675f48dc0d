// Package email composes and sends the helpdesk's outbound mail: parent
// replies, rejection responses, and staff ticket-update notifications.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// OutboundMessage is a single email ready for transmission.
type OutboundMessage struct {
	To         []string
	ReplyTo    string
	Subject    string
	HTMLBody   string
	InReplyTo  string
	References []string
	// Tag labels the message category (Parent, Staff, Unknown) in an
	// X-Tag header so delivery logs can be filtered downstream.
	Tag string
}

// Sender delivers messages over SMTP.
type Sender struct {
	cfg  SMTPConfig
	logf func(format string, args ...any)
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSenderLogger directs diagnostic output to the given logger.
func WithSenderLogger(logger *log.Logger) SenderOption {
	return func(s *Sender) {
		if logger != nil {
			s.logf = logger.Printf
		}
	}
}

// NewSender creates an SMTP sender.
func NewSender(cfg SMTPConfig, opts ...SenderOption) *Sender {
	s := &Sender{cfg: cfg, logf: func(string, ...any) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send transmits the message. TLS connections are negotiated up front when
// configured; otherwise delivery falls back to plain SMTP with auth.
func (s *Sender) Send(msg *OutboundMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	data := s.render(msg)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	if !s.cfg.UseTLS {
		return smtp.SendMail(addr, auth, s.cfg.From, msg.To, data)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range msg.To {
		if err := client.Rcpt(recipient); err != nil {
			s.logf("failed to add recipient %s: %v", recipient, err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data transfer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close data transfer: %w", err)
	}
	return client.Quit()
}

func (s *Sender) render(msg *OutboundMessage) []byte {
	var b bytes.Buffer
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From)
	}
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	if msg.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", msg.InReplyTo)
		refs := msg.References
		if len(refs) == 0 {
			refs = []string{msg.InReplyTo}
		}
		fmt.Fprintf(&b, "References: %s\r\n", strings.Join(refs, " "))
	}
	if msg.Tag != "" {
		fmt.Fprintf(&b, "X-Tag: %s\r\n", msg.Tag)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)
	return b.Bytes()
}

// TestConnection verifies the SMTP server is reachable.
func (s *Sender) TestConnection() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	if s.cfg.UseTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		return conn.Close()
	}
	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	return conn.Close()
}
