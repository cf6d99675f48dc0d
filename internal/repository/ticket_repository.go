// Package repository provides SQL-backed persistence for tickets and messages.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// TicketRepository handles database operations for tickets.
type TicketRepository struct {
	db *sqlx.DB

	// createMu serializes ticket creation so sequential numbers stay unique
	// on engines without a native sequence for this table.
	createMu sync.Mutex
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a new ticket with the next sequential number and returns it.
// The caller fills everything except Number, Created, and LastUpdated.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(number), 0) + 1 FROM tickets"); err != nil {
		return fmt.Errorf("failed to allocate ticket number: %w", err)
	}
	now := time.Now().UTC()
	ticket.Number = next
	ticket.Created = now
	ticket.LastUpdated = now
	ticket.WaitingSince = &now

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO tickets (
			number, title, is_closed, created, last_updated, waiting_since,
			assignee_email, assignee_name, parent_name, parent_email,
			parent_phone, parent_relationship, student_first_name,
			student_last_name, tutor_group
		) VALUES (
			:number, :title, :is_closed, :created, :last_updated, :waiting_since,
			:assignee_email, :assignee_name, :parent_name, :parent_email,
			:parent_phone, :parent_relationship, :student_first_name,
			:student_last_name, :tutor_group
		)`, ticket)
	if err != nil {
		return fmt.Errorf("failed to insert ticket %d: %w", next, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket %d: %w", next, err)
	}
	return nil
}

// GetByNumber returns the ticket with the given number, or nil if none exists.
func (r *TicketRepository) GetByNumber(ctx context.Context, number int) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t,
		r.db.Rebind("SELECT * FROM tickets WHERE number = ?"), number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %d: %w", number, err)
	}
	return &t, nil
}

// ListOpen returns all open tickets, most recently updated first.
func (r *TicketRepository) ListOpen(ctx context.Context) ([]models.Ticket, error) {
	return r.list(ctx, "SELECT * FROM tickets WHERE is_closed = ? ORDER BY last_updated DESC", false)
}

// ListClosed returns all closed tickets, most recently updated first.
func (r *TicketRepository) ListClosed(ctx context.Context) ([]models.Ticket, error) {
	return r.list(ctx, "SELECT * FROM tickets WHERE is_closed = ? ORDER BY last_updated DESC", true)
}

// ListForAssignee returns open tickets assigned to the given staff address.
func (r *TicketRepository) ListForAssignee(ctx context.Context, email string) ([]models.Ticket, error) {
	return r.list(ctx,
		"SELECT * FROM tickets WHERE is_closed = ? AND LOWER(assignee_email) = LOWER(?) ORDER BY last_updated DESC",
		false, email)
}

// ListWaiting returns open tickets whose parent has been waiting since before
// the cutoff. Used by the overdue reminder task.
func (r *TicketRepository) ListWaiting(ctx context.Context, cutoff time.Time) ([]models.Ticket, error) {
	return r.list(ctx,
		"SELECT * FROM tickets WHERE is_closed = ? AND waiting_since IS NOT NULL AND waiting_since < ? ORDER BY waiting_since ASC",
		false, cutoff)
}

func (r *TicketRepository) list(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Reassign moves a ticket to a different staff member.
func (r *TicketRepository) Reassign(ctx context.Context, number int, assigneeEmail, assigneeName string) error {
	return r.update(ctx, number,
		"UPDATE tickets SET assignee_email = ?, assignee_name = ?, last_updated = ? WHERE number = ?",
		assigneeEmail, assigneeName, time.Now().UTC(), number)
}

// Rename changes a ticket's title.
func (r *TicketRepository) Rename(ctx context.Context, number int, title string) error {
	return r.update(ctx, number,
		"UPDATE tickets SET title = ?, last_updated = ? WHERE number = ?",
		title, time.Now().UTC(), number)
}

// SetClosed opens or closes a ticket. Closing clears the waiting marker.
func (r *TicketRepository) SetClosed(ctx context.Context, number int, closed bool) error {
	now := time.Now().UTC()
	if closed {
		return r.update(ctx, number,
			"UPDATE tickets SET is_closed = ?, waiting_since = NULL, last_updated = ? WHERE number = ?",
			true, now, number)
	}
	return r.update(ctx, number,
		"UPDATE tickets SET is_closed = ?, last_updated = ? WHERE number = ?",
		false, now, number)
}

// SetParentStudent fills in parent and student details resolved after creation.
func (r *TicketRepository) SetParentStudent(ctx context.Context, number int, parent models.Parent, student models.Student) error {
	return r.update(ctx, number, `
		UPDATE tickets SET
			parent_name = ?, parent_phone = ?, parent_relationship = ?,
			student_first_name = ?, student_last_name = ?, tutor_group = ?,
			last_updated = ?
		WHERE number = ?`,
		parent.Name, parent.Phone, student.Relationship,
		student.FirstName, student.LastName, student.TutorGroup,
		time.Now().UTC(), number)
}

// UpdateForNewParentMessage records that the parent has written: the ticket is
// reopened if it was closed, and the waiting clock starts from the message time.
func (r *TicketRepository) UpdateForNewParentMessage(ctx context.Context, number int, at time.Time) error {
	return r.update(ctx, number,
		"UPDATE tickets SET is_closed = ?, waiting_since = ?, last_updated = ? WHERE number = ?",
		false, at, at, number)
}

// UpdateForStaffReply clears the waiting marker after staff respond.
func (r *TicketRepository) UpdateForStaffReply(ctx context.Context, number int, at time.Time) error {
	return r.update(ctx, number,
		"UPDATE tickets SET waiting_since = NULL, last_updated = ? WHERE number = ?",
		at, number)
}

func (r *TicketRepository) update(ctx context.Context, number int, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("ticket %d not found", number)
	}
	return nil
}
