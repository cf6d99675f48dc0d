package filters

import (
	"context"
	"log"
	"strings"
)

// SpamFilter annotates messages the mail provider flagged as spam or as
// failing SPF. The postmaster drops these silently: auto-replying to spam
// or spoofed mail would generate backscatter.
type SpamFilter struct {
	logger *log.Logger
}

// NewSpamFilter constructs the filter instance.
func NewSpamFilter(logger *log.Logger) *SpamFilter {
	return &SpamFilter{logger: logger}
}

// ID implements Filter.
func (f *SpamFilter) ID() string { return "spam" }

// Apply checks the provider's spam-classification and SPF headers.
func (f *SpamFilter) Apply(ctx context.Context, m *MessageContext) error {
	if m == nil || m.Email == nil {
		return nil
	}
	reason := ""
	if v := m.Email.Header("X-Spam-Status"); strings.HasPrefix(strings.ToLower(v), "yes") {
		reason = "spam"
	} else if v := m.Email.Header("Received-SPF"); isSPFFailure(v) {
		reason = "spf"
	}
	if reason == "" {
		return nil
	}
	if m.Annotations == nil {
		m.Annotations = make(map[string]any)
	}
	m.Annotations[AnnotationDropMessage] = true
	m.Annotations[AnnotationDropReason] = reason
	f.logf("spam: flagged message from %s (%s)", m.Email.From, reason)
	return nil
}

func isSPFFailure(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.HasPrefix(v, "fail") || strings.HasPrefix(v, "softfail")
}

func (f *SpamFilter) logf(format string, args ...any) {
	if f == nil || f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}
