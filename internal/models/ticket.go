package models

import (
	"fmt"
	"time"
)

// Ticket represents a single parent enquiry and its message history.
type Ticket struct {
	Number             int        `json:"number" db:"number"`
	Title              string     `json:"title" db:"title"`
	IsClosed           bool       `json:"is_closed" db:"is_closed"`
	Created            time.Time  `json:"created" db:"created"`
	LastUpdated        time.Time  `json:"last_updated" db:"last_updated"`
	WaitingSince       *time.Time `json:"waiting_since,omitempty" db:"waiting_since"`
	AssigneeEmail      string     `json:"assignee_email" db:"assignee_email"`
	AssigneeName       string     `json:"assignee_name" db:"assignee_name"`
	ParentName         *string    `json:"parent_name,omitempty" db:"parent_name"`
	ParentEmail        string     `json:"parent_email" db:"parent_email"`
	ParentPhone        *string    `json:"parent_phone,omitempty" db:"parent_phone"`
	ParentRelationship *string    `json:"parent_relationship,omitempty" db:"parent_relationship"`
	StudentFirstName   *string    `json:"student_first_name,omitempty" db:"student_first_name"`
	StudentLastName    *string    `json:"student_last_name,omitempty" db:"student_last_name"`
	TutorGroup         *string    `json:"tutor_group,omitempty" db:"tutor_group"`
}

// Message is a single entry in a ticket's conversation history.
type Message struct {
	ID            string       `json:"id" db:"id"`
	TicketNumber  int          `json:"ticket_number" db:"ticket_number"`
	Timestamp     time.Time    `json:"timestamp" db:"timestamp"`
	AuthorName    string       `json:"author_name" db:"author_name"`
	IsEmployee    bool         `json:"is_employee" db:"is_employee"`
	IsPrivate     bool         `json:"is_private" db:"is_private"`
	Content       string       `json:"content" db:"content"`
	OriginalEmail *string      `json:"original_email,omitempty" db:"original_email"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// Attachment is a stored file linked to a message.
type Attachment struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"message_id" db:"message_id"`
	FileName  string `json:"file_name" db:"file_name"`
	Size      int64  `json:"size" db:"size"`
}

// TicketUpdateAction identifies the staff notification being sent for a ticket.
type TicketUpdateAction string

const (
	ActionAssigned   TicketUpdateAction = "assigned"
	ActionNewReply   TicketUpdateAction = "new_reply"
	ActionReassigned TicketUpdateAction = "reassigned"
	ActionReminder   TicketUpdateAction = "reminder"
)

// FormatTicketNumber renders a ticket number in the canonical zero-padded
// form used in storage keys and subject tags.
func FormatTicketNumber(n int) string {
	return fmt.Sprintf("%06d", n)
}
