package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// MessageRepository handles database operations for ticket messages.
// Appends to the same ticket are serialized so interleaved webhook deliveries
// cannot reorder a conversation.
type MessageRepository struct {
	db *sqlx.DB

	mu    sync.Mutex
	locks map[int]*sync.Mutex
	inUse map[int]int
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{
		db:    db,
		locks: make(map[int]*sync.Mutex),
		inUse: make(map[int]int),
	}
}

func (r *MessageRepository) lockTicket(number int) func() {
	r.mu.Lock()
	l, ok := r.locks[number]
	if !ok {
		l = &sync.Mutex{}
		r.locks[number] = l
	}
	r.inUse[number]++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		r.inUse[number]--
		if r.inUse[number] == 0 {
			delete(r.locks, number)
			delete(r.inUse, number)
		}
		r.mu.Unlock()
	}
}

// Append stores a message at the end of a ticket's history. The message ID and
// timestamp are assigned here if unset.
func (r *MessageRepository) Append(ctx context.Context, msg *models.Message) error {
	unlock := r.lockTicket(msg.TicketNumber)
	defer unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO messages (
			id, ticket_number, timestamp, author_name, is_employee,
			is_private, content, original_email
		) VALUES (
			:id, :ticket_number, :timestamp, :author_name, :is_employee,
			:is_private, :content, :original_email
		)`, msg)
	if err != nil {
		return fmt.Errorf("failed to append message to ticket %d: %w", msg.TicketNumber, err)
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if att.ID == "" {
			att.ID = uuid.NewString()
		}
		att.MessageID = msg.ID
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO attachments (id, message_id, file_name, size)
			VALUES (:id, :message_id, :file_name, :size)`, att)
		if err != nil {
			return fmt.Errorf("failed to store attachment %q: %w", att.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message to ticket %d: %w", msg.TicketNumber, err)
	}
	return nil
}

// List returns a ticket's messages in chronological order, with attachments.
func (r *MessageRepository) List(ctx context.Context, ticketNumber int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.SelectContext(ctx, &messages,
		r.db.Rebind("SELECT * FROM messages WHERE ticket_number = ? ORDER BY timestamp ASC, id ASC"),
		ticketNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for ticket %d: %w", ticketNumber, err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]string, len(messages))
	byID := make(map[string]*models.Message, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		byID[messages[i].ID] = &messages[i]
	}
	query, args, err := sqlx.In("SELECT * FROM attachments WHERE message_id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build attachment query: %w", err)
	}
	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list attachments for ticket %d: %w", ticketNumber, err)
	}
	for _, att := range attachments {
		if m, ok := byID[att.MessageID]; ok {
			m.Attachments = append(m.Attachments, att)
		}
	}
	return messages, nil
}
