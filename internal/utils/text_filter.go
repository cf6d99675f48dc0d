package utils

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(` {2,}`)

// NormalizeText replaces typographic and invisible Unicode characters with
// plain ASCII equivalents. Generated reply drafts in particular arrive
// with smart quotes, zero-width joiners, and bidi controls that break
// plain-text email rendering.
func NormalizeText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, c := range input {
		switch {
		case c == '\r' || c == '​' || c == '‌' || c == '‍' || c == '⁠':
			// carriage returns, zero-width characters, word joiner
		case c >= '‪' && c <= '‮':
			// bidirectional control characters
		case c == '—':
			b.WriteString(" – ")
		case c == ' ' || c == ' ' || c == ' ' || c == ' ':
			b.WriteByte(' ')
		case c == '“' || c == '”':
			b.WriteByte('"')
		case c == '‘' || c == '’':
			b.WriteByte('\'')
		case c == '…':
			b.WriteString("...")
		default:
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(multiSpace.ReplaceAllString(b.String(), " "))
}
