// Package mailqueue persists outbound notifications so delivery survives SMTP
// outages and restarts. Items carry a fingerprint so periodic tasks (such as
// the overdue-ticket reminder) cannot queue the same notification twice.
package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when an item with the same fingerprint is already
// queued.
var ErrDuplicate = errors.New("notification already queued")

// Item is one pending outbound notification.
type Item struct {
	ID          int64      `db:"id"`
	Fingerprint *string    `db:"fingerprint"`
	Recipient   string     `db:"recipient"`
	Subject     string     `db:"subject"`
	Heading     string     `db:"heading"`
	Body        string     `db:"body"`
	Tag         string     `db:"tag"`
	ThreadID    *string    `db:"thread_id"`
	Attempts    int        `db:"attempts"`
	DueTime     *time.Time `db:"due_time"`
	LastError   *string    `db:"last_error"`
	CreateTime  time.Time  `db:"create_time"`
}

// Repository handles database operations for the mail queue.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new mail queue repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Enqueue adds a notification to the queue. A duplicate fingerprint yields
// ErrDuplicate without modifying the queue.
func (r *Repository) Enqueue(ctx context.Context, item *Item) error {
	if item.CreateTime.IsZero() {
		item.CreateTime = time.Now().UTC()
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO mail_queue (
			fingerprint, recipient, subject, heading, body, tag,
			thread_id, attempts, due_time, create_time
		) VALUES (
			:fingerprint, :recipient, :subject, :heading, :body, :tag,
			:thread_id, :attempts, :due_time, :create_time
		)`, item)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		item.ID = id
	}
	return nil
}

// Due returns notifications ready to send, oldest first.
func (r *Repository) Due(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	var items []*Item
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT * FROM mail_queue
		WHERE due_time IS NULL OR due_time <= ?
		ORDER BY create_time ASC
		LIMIT ?`), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	return items, nil
}

// Delete removes a successfully delivered notification.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM mail_queue WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item %d: %w", id, err)
	}
	return nil
}

// RecordFailure increments the attempt count and reschedules delivery.
func (r *Repository) RecordFailure(ctx context.Context, id int64, sendErr error, nextDue time.Time) error {
	msg := sendErr.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE mail_queue
		SET attempts = attempts + 1, last_error = ?, due_time = ?
		WHERE id = ?`), msg, nextDue, id)
	if err != nil {
		return fmt.Errorf("failed to record delivery failure for item %d: %w", id, err)
	}
	return nil
}

// Abandoned returns notifications that have exhausted their retries.
func (r *Repository) Abandoned(ctx context.Context, maxAttempts, limit int) ([]*Item, error) {
	var items []*Item
	err := r.db.SelectContext(ctx, &items, r.db.Rebind(`
		SELECT * FROM mail_queue
		WHERE attempts >= ?
		ORDER BY create_time ASC
		LIMIT ?`), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned notifications: %w", err)
	}
	return items, nil
}

// Backoff returns the delay before the next attempt: 1m, 4m, 9m, ...
func Backoff(attempts int) time.Duration {
	n := attempts + 1
	return time.Duration(n*n) * time.Minute
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// SQLite reports constraint violations in the message text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
