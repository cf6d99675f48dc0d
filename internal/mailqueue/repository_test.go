package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jamesgurung/school-helpdesk/internal/database"
)

var testDBSeq atomic.Int64

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver:       "sqlite3",
		DSN:          fmt.Sprintf("file:mailqueuetest%d?mode=memory&cache=shared", testDBSeq.Add(1)),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func fingerprint(s string) *string { return &s }

func TestEnqueueAndDue(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	item := &Item{
		Recipient: "j.smith@school.example",
		Subject:   "Reminder: Trip payment [Ticket #000007]",
		Heading:   "Reminder: Trip payment",
		Body:      "A parent has been waiting since yesterday.",
		Tag:       "Staff",
	}
	if err := repo.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if item.ID == 0 {
		t.Error("Enqueue should assign an ID")
	}

	due, err := repo.Due(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].Recipient != "j.smith@school.example" {
		t.Fatalf("Due = %+v, want the queued item", due)
	}
}

func TestEnqueueDuplicateFingerprint(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	first := &Item{
		Fingerprint: fingerprint("reminder:000007:2026-08-31"),
		Recipient:   "j.smith@school.example",
		Subject:     "Reminder",
		Heading:     "Reminder",
		Body:        "body",
		Tag:         "Staff",
	}
	if err := repo.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	dup := &Item{
		Fingerprint: fingerprint("reminder:000007:2026-08-31"),
		Recipient:   "j.smith@school.example",
		Subject:     "Reminder",
		Heading:     "Reminder",
		Body:        "body",
		Tag:         "Staff",
	}
	if err := repo.Enqueue(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Enqueue duplicate = %v, want ErrDuplicate", err)
	}

	due, err := repo.Due(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("queue holds %d items, want 1", len(due))
	}
}

func TestFutureItemsNotDue(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	later := time.Now().UTC().Add(time.Hour)
	item := &Item{
		Recipient: "j.smith@school.example",
		Subject:   "s", Heading: "h", Body: "b", Tag: "Staff",
		DueTime: &later,
	}
	if err := repo.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	due, err := repo.Due(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("future item reported as due: %+v", due)
	}
}

func TestRecordFailureAndAbandoned(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	item := &Item{Recipient: "r@example.com", Subject: "s", Heading: "h", Body: "b", Tag: "Staff"}
	if err := repo.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for i := 0; i < 3; i++ {
		next := time.Now().UTC().Add(Backoff(i))
		if err := repo.RecordFailure(ctx, item.ID, errors.New("connection refused"), next); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	abandoned, err := repo.Abandoned(ctx, 3, 10)
	if err != nil {
		t.Fatalf("Abandoned: %v", err)
	}
	if len(abandoned) != 1 {
		t.Fatalf("got %d abandoned items, want 1", len(abandoned))
	}
	if abandoned[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", abandoned[0].Attempts)
	}
	if abandoned[0].LastError == nil || *abandoned[0].LastError != "connection refused" {
		t.Errorf("last error = %v", abandoned[0].LastError)
	}
}

func TestDeleteAfterDelivery(t *testing.T) {
	repo := NewRepository(testDB(t))
	ctx := context.Background()

	item := &Item{Recipient: "r@example.com", Subject: "s", Heading: "h", Body: "b", Tag: "Staff"}
	if err := repo.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := repo.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	due, err := repo.Due(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("queue should be empty after delete, got %+v", due)
	}
}

func TestBackoffGrows(t *testing.T) {
	if Backoff(0) != time.Minute {
		t.Errorf("Backoff(0) = %v", Backoff(0))
	}
	if Backoff(2) != 9*time.Minute {
		t.Errorf("Backoff(2) = %v", Backoff(2))
	}
	for i := 1; i < 5; i++ {
		if Backoff(i) <= Backoff(i-1) {
			t.Errorf("Backoff not increasing at %d", i)
		}
	}
}
