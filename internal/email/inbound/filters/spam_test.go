package filters

import (
	"context"
	"testing"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

func TestSpamFilterFlagsSpamStatusHeader(t *testing.T) {
	filter := NewSpamFilter(nil)
	ctx := &MessageContext{Email: &models.InboundEmail{
		From:    "someone@example.com",
		Headers: []models.Header{{Name: "X-Spam-Status", Value: "Yes, score=9.1"}},
	}}

	if err := filter.Apply(context.Background(), ctx); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if ctx.Annotations[AnnotationDropMessage] != true {
		t.Fatalf("expected drop annotation")
	}
	if ctx.Annotations[AnnotationDropReason] != "spam" {
		t.Fatalf("expected spam reason, got %v", ctx.Annotations[AnnotationDropReason])
	}
}

func TestSpamFilterFlagsSPFFailure(t *testing.T) {
	filter := NewSpamFilter(nil)
	ctx := &MessageContext{Email: &models.InboundEmail{
		Headers: []models.Header{{Name: "received-spf", Value: "Fail (sender IP is 203.0.113.9)"}},
	}}

	if err := filter.Apply(context.Background(), ctx); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if ctx.Annotations[AnnotationDropMessage] != true {
		t.Fatalf("expected drop annotation for SPF failure")
	}
}

func TestSpamFilterPassesCleanMail(t *testing.T) {
	filter := NewSpamFilter(nil)
	ctx := &MessageContext{Email: &models.InboundEmail{
		Headers: []models.Header{
			{Name: "X-Spam-Status", Value: "No, score=0.1"},
			{Name: "Received-SPF", Value: "Pass (sender SPF authorized)"},
		},
	}}

	if err := filter.Apply(context.Background(), ctx); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if ctx.Annotations != nil {
		if _, ok := ctx.Annotations[AnnotationDropMessage]; ok {
			t.Fatalf("expected clean mail to pass")
		}
	}
}

func TestChainRunsFiltersInOrder(t *testing.T) {
	chain := NewChain(NewSpamFilter(nil), NewSubjectTokenFilter(nil))
	ctx := &MessageContext{
		Email:       &models.InboundEmail{Subject: "[Ticket #000003] follow up"},
		Annotations: map[string]any{},
	}
	if err := chain.Run(context.Background(), ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if ctx.Annotations[AnnotationTicketNumber] != 3 {
		t.Fatalf("expected subject filter to run, got %v", ctx.Annotations)
	}
}
