// Package reply extracts the newly written, human-authored content from
// inbound email bodies: quoted history, mail-client signatures, and
// boilerplate are stripped, inline replies are preserved.
package reply

import (
	"regexp"
	"strings"
)

// LineKind classifies a single body line.
type LineKind int

const (
	// Content is newly written text.
	Content LineKind = iota
	// Quoted is prior conversation history included by the mail client.
	Quoted
	// Signature is trailing boilerplate appended by the sender's client.
	Signature
)

// Line is one classified line of a normalized email body.
type Line struct {
	Text string
	Kind LineKind
}

var (
	multilineQuoteHeader = regexp.MustCompile(`(?s)On\s.+?wrote:`)
	multiSpace           = regexp.MustCompile(` {2,}`)
	separatorBanner      = regexp.MustCompile(`([^\n])\n(_{7,}|-{7,})`)
	quoted               = regexp.MustCompile(`^>+`)
	quoteHeader          = regexp.MustCompile(`^On .*wrote:$`)
	signatureDelimiter   = regexp.MustCompile(`--\s*$|__\s*$|\x{2014}\s*$|\w-$|^Sent from my (\w+\s*){1,3}$|^From:`)
	boilerplate          = regexp.MustCompile(`(?i)^(dear|hi|hiya|hello|good (morning|afternoon|evening))\b[^\n]{0,60}$|` +
		`^((kind |best |warm )?regards|(many )?thanks|thank you( (so|very) much)?|best wishes|all the best|cheers|yours (sincerely|faithfully|truly))[,.!]?\s*$|` +
		`^-*\s*original message\s*-*$|^-+\s*forwarded by\b[^\n]*$`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Classify normalizes the body and tags each line in a single top-to-bottom
// pass. Once a signature delimiter is seen, every later line is Signature
// regardless of its own content; a signature that happens to contain a
// quote marker is never promoted back to quoted history.
func Classify(body string) []Line {
	text := normalize(body)
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	signatureSeen := false
	for i, line := range raw {
		switch {
		case !signatureSeen && (quoted.MatchString(line) || quoteHeader.MatchString(line)):
			lines[i] = Line{Text: line, Kind: Quoted}
		case !signatureSeen && signatureDelimiter.MatchString(line):
			lines[i] = Line{Text: line, Kind: Signature}
			signatureSeen = true
		case signatureSeen:
			lines[i] = Line{Text: line, Kind: Signature}
		default:
			lines[i] = Line{Text: line, Kind: Content}
		}
	}
	return lines
}

// LatestMessage returns the visible part of a reply body: the lines a
// reader would consider newly written. Quoted lines are kept only when
// real content appears below them, so inline replies survive while the
// trailing quoted thread is dropped.
func LatestMessage(body string) string {
	lines := Classify(body)
	if len(lines) == 0 {
		return ""
	}
	visible := make([]bool, len(lines))
	sawContent := false
	for i := len(lines) - 1; i >= 0; i-- {
		switch lines[i].Kind {
		case Content:
			if strings.TrimSpace(lines[i].Text) != "" {
				visible[i] = true
				sawContent = true
			}
		case Quoted:
			visible[i] = sawContent
		}
	}
	var b strings.Builder
	for i, line := range lines {
		if visible[i] {
			b.WriteString(line.Text)
			b.WriteByte('\n')
		}
	}
	return finalize(b.String())
}

// NewMessage extracts the content of a brand-new enquiry. The whole body is
// new by definition, so no quote stripping applies; signature blocks and
// greeting/valediction/banner boilerplate are removed.
func NewMessage(body string) string {
	lines := Classify(body)
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range lines {
		if line.Kind == Signature {
			break
		}
		if boilerplate.MatchString(strings.TrimSpace(line.Text)) {
			continue
		}
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return finalize(b.String())
}

// ForTicketReply extracts the message text of a reply to an existing
// ticket. The provider's own stripped-reply hint is trusted first; the
// line classifier is the fallback when no hint exists.
func ForTicketReply(strippedReply, body string) string {
	if strings.TrimSpace(strippedReply) != "" {
		return finalize(strippedReply)
	}
	return LatestMessage(body)
}

func normalize(body string) string {
	text := strings.ReplaceAll(body, "\r\n", "\n")
	text = collapseQuoteHeaders(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = insertSeparatorBreak(text)
	return text
}

// collapseQuoteHeaders joins "On <date>, X wrote:" headers that a mail
// client wrapped across physical lines onto one logical line. Only the
// segment starting at the last "On " is collapsed, so unrelated earlier
// text containing "On" is left alone.
func collapseQuoteHeaders(text string) string {
	return multilineQuoteHeader.ReplaceAllStringFunc(text, func(m string) string {
		if idx := strings.LastIndex(m, "On "); idx > 0 {
			return m[:idx] + strings.ReplaceAll(m[idx:], "\n", " ")
		}
		return strings.ReplaceAll(m, "\n", " ")
	})
}

// insertSeparatorBreak adds a synthetic newline before the first line made
// of a long run of underscores or hyphens, so separator banners are not
// glued onto the preceding content line.
func insertSeparatorBreak(text string) string {
	loc := separatorBanner.FindStringSubmatchIndex(text)
	if loc == nil {
		return text
	}
	// end of capture group 1 (the character preceding the banner's newline)
	cut := loc[3]
	return text[:cut] + "\n" + text[cut:]
}

// finalize applies the shared post-processing: blank-line runs collapse to
// a single blank line, and a leading "#" is removed because stored messages
// beginning with "#" are reserved internal audit markers.
func finalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, "#")
	return strings.TrimSpace(text)
}
