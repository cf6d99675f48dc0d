package reply

import (
	"strings"
	"testing"
)

func TestLatestMessageDropsTrailingQuote(t *testing.T) {
	body := "Thanks!\n\nOn Mon, 1 Jan 2024, Jane wrote:\n> original question"
	if got := LatestMessage(body); got != "Thanks!" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestLatestMessageDropsSignature(t *testing.T) {
	body := "See you then.\n\nSent from my iPhone"
	if got := LatestMessage(body); got != "See you then." {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestLatestMessageKeepsQuoteAboveContent(t *testing.T) {
	body := "> old reply\nnew text\n> older still"
	want := "> old reply\nnew text"
	if got := LatestMessage(body); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLatestMessageEmptyInputIsSafe(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\n\n", "\r\n \r\n"} {
		if got := LatestMessage(body); got != "" {
			t.Fatalf("expected empty extraction for %q, got %q", body, got)
		}
	}
}

func TestLatestMessageIdempotent(t *testing.T) {
	bodies := []string{
		"Thanks!\n\nOn Mon, 1 Jan 2024, Jane wrote:\n> original question",
		"> context kept\nMy answer below.\n> trailing dropped",
		"Quick update.\n--\nJo Bloggs\nHead of Year 7",
		"Morning update.\n\nSee attached form.\n\nSent from my Galaxy S24",
	}
	for _, body := range bodies {
		once := LatestMessage(body)
		twice := LatestMessage(once)
		if once != twice {
			t.Fatalf("extraction not idempotent for %q: %q != %q", body, once, twice)
		}
	}
}

func TestClassifySignatureLatchIsMonotonic(t *testing.T) {
	body := "Real content\n--\nJo Bloggs\n> this quote is part of the signature\nMore footer"
	lines := Classify(body)
	latched := false
	for i, line := range lines {
		if line.Kind == Signature {
			latched = true
		}
		if latched && line.Kind != Signature {
			t.Fatalf("line %d (%q) classified %v after signature latch", i, line.Text, line.Kind)
		}
	}
	if !latched {
		t.Fatalf("expected signature delimiter to latch")
	}
}

func TestClassifyMultilineQuoteHeader(t *testing.T) {
	body := "Thanks for letting me know.\n\nOn Mon, 1 Jan 2024 at 09:15, Jane Smith\n<jane@example.com> wrote:\n> original"
	if got := LatestMessage(body); got != "Thanks for letting me know." {
		t.Fatalf("wrapped quote header not collapsed, got %q", got)
	}
}

func TestClassifySignatureDelimiters(t *testing.T) {
	cases := []struct {
		line string
		want LineKind
	}{
		{"--", Signature},
		{"--  ", Signature},
		{"__", Signature},
		{"Sent from my iPhone", Signature},
		{"Sent from my Galaxy S24 Ultra", Signature},
		{"From: Jane Smith <jane@example.com>", Signature},
		{"Many thanks, Sam-", Signature},
		{"A normal sentence.", Content},
		{"> quoted", Quoted},
		{"On Mon, 1 Jan 2024, Jane wrote:", Quoted},
	}
	for _, tc := range cases {
		lines := Classify(tc.line)
		if len(lines) != 1 {
			t.Fatalf("expected one line for %q, got %d", tc.line, len(lines))
		}
		if lines[0].Kind != tc.want {
			t.Fatalf("line %q classified %v, want %v", tc.line, lines[0].Kind, tc.want)
		}
	}
}

func TestClassifySeparatorBannerSplitsFromContent(t *testing.T) {
	body := "Please call me back.\n________________________________\nFrom: reception@school.example"
	if got := LatestMessage(body); got != "Please call me back." {
		t.Fatalf("expected banner stripped, got %q", got)
	}
}

func TestLatestMessageCollapsesSpacesAndDropsBlankLines(t *testing.T) {
	body := "Two   spaces    collapse.\n\n\n\nDone."
	want := "Two spaces collapse.\nDone."
	if got := LatestMessage(body); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLatestMessageStripsCommandPrefix(t *testing.T) {
	body := "# pretending to be an audit marker"
	got := LatestMessage(body)
	if strings.HasPrefix(got, "#") {
		t.Fatalf("leading # not stripped: %q", got)
	}
	if got != "pretending to be an audit marker" {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestNewMessageStripsBoilerplate(t *testing.T) {
	body := "Dear Mr Jones,\n\nOllie has lost his PE kit.\n\nKind regards,\nSam Taylor\n\nSent from my iPhone"
	want := "Ollie has lost his PE kit.\n\nSam Taylor"
	if got := NewMessage(body); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNewMessageKeepsQuoteMarkers(t *testing.T) {
	// A brand-new enquiry has no history to strip; a ">" line is content.
	body := "The form says:\n> return by Friday\nIs that right?"
	got := NewMessage(body)
	if !strings.Contains(got, "> return by Friday") {
		t.Fatalf("new-thread extraction dropped body content: %q", got)
	}
}

func TestNewMessageStripsForwardBanner(t *testing.T) {
	body := "Please see below.\n----- Forwarded by Jane Smith on 01/01/2024 -----\nsome forwarded text"
	got := NewMessage(body)
	if strings.Contains(got, "Forwarded by") {
		t.Fatalf("forward banner kept: %q", got)
	}
}

func TestForTicketReplyPrefersProviderHint(t *testing.T) {
	body := "Fallback body\n> quoted"
	got := ForTicketReply("Provider knows best.", body)
	if got != "Provider knows best." {
		t.Fatalf("expected provider hint, got %q", got)
	}
}

func TestForTicketReplyFallsBackToClassifier(t *testing.T) {
	body := "Actual reply.\n\nOn Tue, 2 Jan 2024, Staff wrote:\n> earlier"
	if got := ForTicketReply("   ", body); got != "Actual reply." {
		t.Fatalf("expected classifier fallback, got %q", got)
	}
}

func TestForTicketReplySanitizesProviderHint(t *testing.T) {
	got := ForTicketReply("#close\n\n\n\nreal text", "")
	if strings.HasPrefix(got, "#") {
		t.Fatalf("provider hint kept command prefix: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank runs not collapsed: %q", got)
	}
}

func TestLatestMessageInlineReply(t *testing.T) {
	body := strings.Join([]string{
		"> Could Ollie attend the trip on Friday?",
		"Yes, he can.",
		"> Does he need a packed lunch?",
		"No, lunch is provided.",
		"",
		"On Mon, 1 Jan 2024, Reception wrote:",
		"> full original message",
	}, "\n")
	got := LatestMessage(body)
	if !strings.Contains(got, "> Could Ollie attend the trip on Friday?") {
		t.Fatalf("inline quoted context dropped: %q", got)
	}
	if !strings.Contains(got, "No, lunch is provided.") {
		t.Fatalf("inline answer dropped: %q", got)
	}
	if strings.Contains(got, "full original message") {
		t.Fatalf("trailing quote kept: %q", got)
	}
}
