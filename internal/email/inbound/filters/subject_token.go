package filters

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// ticketTokenRegexp matches the subject tag "[Ticket #NNNNNN]" anywhere in
// the subject line: literal prefix, digits only, closing bracket. The
// literal text is matched case-insensitively.
var ticketTokenRegexp = regexp.MustCompile(`(?i)\[ticket #([0-9]+)\]`)

// FindTicketNumber parses a ticket number from a subject line. It returns
// 0 when no valid tag is present; a malformed tag is never an error, the
// message simply routes as a new thread.
func FindTicketNumber(subject string) int {
	matches := ticketTokenRegexp.FindStringSubmatch(subject)
	if len(matches) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(matches[1]))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// SubjectTokenFilter extracts "[Ticket #123456]" tokens from the subject.
type SubjectTokenFilter struct {
	logger *log.Logger
}

// NewSubjectTokenFilter constructs the filter instance.
func NewSubjectTokenFilter(logger *log.Logger) *SubjectTokenFilter {
	return &SubjectTokenFilter{logger: logger}
}

// ID implements Filter.
func (f *SubjectTokenFilter) ID() string { return "subject_token" }

// Apply scans the subject for a ticket tag and stores the number annotation.
func (f *SubjectTokenFilter) Apply(ctx context.Context, m *MessageContext) error {
	if m == nil || m.Email == nil {
		return nil
	}
	n := FindTicketNumber(m.Email.Subject)
	if n == 0 {
		return nil
	}
	if m.Annotations == nil {
		m.Annotations = make(map[string]any)
	}
	m.Annotations[AnnotationTicketNumber] = n
	f.logf("subject_token: detected ticket %d", n)
	return nil
}

func (f *SubjectTokenFilter) logf(format string, args ...any) {
	if f == nil || f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}
