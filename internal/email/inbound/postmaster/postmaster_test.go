package postmaster

import (
	"context"
	"errors"
	"testing"

	"github.com/jamesgurung/school-helpdesk/internal/email/inbound/filters"
	"github.com/jamesgurung/school-helpdesk/internal/models"
)

type stubRoster struct {
	parents map[string][]models.Parent
	staff   map[string]bool
}

func (s *stubRoster) ParentsByEmail(address string) []models.Parent {
	return s.parents[normalize(address)]
}

func (s *stubRoster) IsStaff(address string) bool {
	return s.staff[normalize(address)]
}

func normalize(address string) string {
	b := make([]byte, len(address))
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

type stubTickets struct {
	tickets map[int]*models.Ticket
	err     error
}

func (s *stubTickets) GetByNumber(_ context.Context, number int) (*models.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tickets[number], nil
}

func strptr(s string) *string { return &s }

func parent(name string, children ...models.Student) models.Parent {
	return models.Parent{Name: name, Email: "parent@example.com", Children: children}
}

func student(first string) models.Student {
	return models.Student{FirstName: first, LastName: "Bloggs", TutorGroup: "7H", Relationship: "Mother"}
}

func newRouter(roster *stubRoster, tickets *stubTickets) *Router {
	if roster == nil {
		roster = &stubRoster{}
	}
	if tickets == nil {
		tickets = &stubTickets{}
	}
	return NewRouter(roster, tickets)
}

func meta(annotations map[string]any) *filters.MessageContext {
	return &filters.MessageContext{Annotations: annotations}
}

func TestRouteRequiresEmail(t *testing.T) {
	r := newRouter(nil, nil)
	if _, err := r.Route(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected contract error for nil email")
	}
}

func TestRouteUnknownSenderRejected(t *testing.T) {
	r := newRouter(&stubRoster{}, nil)
	email := &models.InboundEmail{From: "stranger@example.com", Subject: "Hello"}

	d, err := r.Route(context.Background(), email, meta(nil))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionRejected || d.Reason != ReasonUnknownSender {
		t.Fatalf("expected UnknownSender rejection, got %+v", d)
	}
}

func TestRouteStaffSenderRejected(t *testing.T) {
	roster := &stubRoster{staff: map[string]bool{"teacher@school.example": true}}
	r := newRouter(roster, nil)
	email := &models.InboundEmail{From: "Teacher@School.example", Subject: "Re: something"}

	d, err := r.Route(context.Background(), email, meta(nil))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionRejected || d.Reason != ReasonStaffSender {
		t.Fatalf("expected StaffSender rejection, got %+v", d)
	}
}

func TestRouteSpamFromUnknownSenderDroppedSilently(t *testing.T) {
	r := newRouter(&stubRoster{}, nil)
	email := &models.InboundEmail{From: "spammer@example.com"}
	m := meta(map[string]any{
		filters.AnnotationDropMessage: true,
		filters.AnnotationDropReason:  "spam",
	})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionDropped {
		t.Fatalf("expected silent drop, got %+v", d)
	}
}

func TestRouteSingleParentSingleChildResolved(t *testing.T) {
	p := parent("Sam Taylor", student("Ollie"))
	roster := &stubRoster{parents: map[string][]models.Parent{"parent@example.com": {p}}}
	r := newRouter(roster, nil)
	email := &models.InboundEmail{From: "Parent@Example.com", Subject: "Lost PE kit"}

	d, err := r.Route(context.Background(), email, meta(nil))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionCreate {
		t.Fatalf("expected create, got %+v", d)
	}
	if d.Parent == nil || d.Parent.Name != "Sam Taylor" {
		t.Fatalf("expected resolved parent, got %+v", d.Parent)
	}
	if d.Student == nil || d.Student.FirstName != "Ollie" {
		t.Fatalf("expected resolved student, got %+v", d.Student)
	}
	if d.Title != "Lost PE kit" {
		t.Fatalf("unexpected title %q", d.Title)
	}
}

func TestRouteAmbiguityNeverGuesses(t *testing.T) {
	cases := []struct {
		name       string
		candidates []models.Parent
	}{
		{"two parents", []models.Parent{parent("Sam Taylor", student("Ollie")), parent("Alex Taylor", student("Ollie"))}},
		{"one parent two children", []models.Parent{parent("Sam Taylor", student("Ollie"), student("Evie"))}},
	}
	for _, tc := range cases {
		roster := &stubRoster{parents: map[string][]models.Parent{"parent@example.com": tc.candidates}}
		r := newRouter(roster, nil)
		email := &models.InboundEmail{From: "parent@example.com", Subject: "Question"}

		d, err := r.Route(context.Background(), email, meta(nil))
		if err != nil {
			t.Fatalf("%s: Route returned error: %v", tc.name, err)
		}
		if d.Action != ActionCreate {
			t.Fatalf("%s: expected create, got %+v", tc.name, d)
		}
		if d.Parent != nil || d.Student != nil {
			t.Fatalf("%s: expected unresolved identity, got parent=%+v student=%+v", tc.name, d.Parent, d.Student)
		}
	}
}

func TestRouteFollowUpAppends(t *testing.T) {
	tickets := &stubTickets{tickets: map[int]*models.Ticket{
		42: {Number: 42, ParentEmail: "parent@example.com", ParentName: strptr("Sam Taylor")},
	}}
	r := newRouter(nil, tickets)
	email := &models.InboundEmail{From: "PARENT@example.com", Subject: "Re: [Ticket #000042] Lost PE kit"}
	m := meta(map[string]any{filters.AnnotationTicketNumber: 42})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionAppend || d.TicketNumber != 42 {
		t.Fatalf("expected append to 42, got %+v", d)
	}
	if d.Reopened {
		t.Fatalf("open ticket should not report reopened")
	}
	if d.AuthorName != "Sam Taylor" {
		t.Fatalf("unexpected author %q", d.AuthorName)
	}
}

func TestRouteFollowUpReopensClosedTicket(t *testing.T) {
	tickets := &stubTickets{tickets: map[int]*models.Ticket{
		7: {Number: 7, ParentEmail: "parent@example.com", IsClosed: true},
	}}
	r := newRouter(nil, tickets)
	email := &models.InboundEmail{From: "parent@example.com", FromName: "Sam"}
	m := meta(map[string]any{filters.AnnotationTicketNumber: 7})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionAppend || !d.Reopened {
		t.Fatalf("expected reopened append, got %+v", d)
	}
}

func TestRouteOwnershipIsolation(t *testing.T) {
	tickets := &stubTickets{tickets: map[int]*models.Ticket{
		42: {Number: 42, ParentEmail: "parent-a@example.com"},
	}}
	r := newRouter(nil, tickets)
	email := &models.InboundEmail{From: "parent-b@example.com"}
	m := meta(map[string]any{filters.AnnotationTicketNumber: 42})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionRejected || d.Reason != ReasonUnknownTicket {
		t.Fatalf("expected UnknownTicket rejection, got %+v", d)
	}
}

func TestRouteMissingTicketRejected(t *testing.T) {
	r := newRouter(nil, &stubTickets{})
	email := &models.InboundEmail{From: "parent@example.com"}
	m := meta(map[string]any{filters.AnnotationTicketNumber: 999})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionRejected || d.Reason != ReasonUnknownTicket {
		t.Fatalf("expected UnknownTicket rejection, got %+v", d)
	}
}

func TestRouteTicketLookupErrorDegradesToRejection(t *testing.T) {
	r := newRouter(nil, &stubTickets{err: errors.New("storage offline")})
	email := &models.InboundEmail{From: "parent@example.com"}
	m := meta(map[string]any{filters.AnnotationTicketNumber: 5})

	d, err := r.Route(context.Background(), email, m)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if d.Action != ActionRejected || d.Reason != ReasonUnknownTicket {
		t.Fatalf("expected UnknownTicket rejection, got %+v", d)
	}
}

func TestRouteDeterministic(t *testing.T) {
	p := parent("Sam Taylor", student("Ollie"))
	roster := &stubRoster{parents: map[string][]models.Parent{"parent@example.com": {p}}}
	r := newRouter(roster, nil)
	email := &models.InboundEmail{From: "parent@example.com", Subject: "Question"}

	first, err := r.Route(context.Background(), email, meta(nil))
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		next, err := r.Route(context.Background(), email, meta(nil))
		if err != nil {
			t.Fatalf("Route returned error: %v", err)
		}
		if next.Action != first.Action || next.Title != first.Title || next.AuthorName != first.AuthorName {
			t.Fatalf("routing not deterministic: %+v != %+v", next, first)
		}
	}
}

func TestExplainRejectionTotal(t *testing.T) {
	reasons := []RejectedReason{ReasonUnknownSender, ReasonStaffSender, ReasonUnknownTicket, RejectedReason(99)}
	for _, reason := range reasons {
		resp := ExplainRejection(reason)
		if resp.Heading == "" || resp.Body == "" {
			t.Fatalf("empty response for reason %d", reason)
		}
		if resp.Tag != models.EmailTagUnknown {
			t.Fatalf("expected Unknown tag, got %q", resp.Tag)
		}
	}
}

func TestExplainRejectionWording(t *testing.T) {
	resp := ExplainRejection(ReasonUnknownSender)
	if resp.Heading != "Email address not recognised." {
		t.Fatalf("unexpected heading %q", resp.Heading)
	}
}
