package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/gb"
	"github.com/xeonx/timeago"

	"github.com/jamesgurung/school-helpdesk/internal/email"
	"github.com/jamesgurung/school-helpdesk/internal/mailqueue"
	"github.com/jamesgurung/school-helpdesk/internal/models"
	"github.com/jamesgurung/school-helpdesk/internal/repository"
	"github.com/jamesgurung/school-helpdesk/internal/runner"
)

// waitingThreshold is how long a parent can be left without a staff reply
// before the assignee is reminded.
const waitingThreshold = 16 * time.Hour

// ReminderTask nudges staff about tickets where a parent is still waiting.
// It fires on school-day mornings only; reminders are fingerprinted per
// ticket per day so reruns cannot double-send.
type ReminderTask struct {
	tickets  *repository.TicketRepository
	queue    *mailqueue.Repository
	location *time.Location
	calendar *cal.BusinessCalendar
	logf     func(format string, args ...any)
}

// NewReminderTask creates the overdue-ticket reminder task.
func NewReminderTask(tickets *repository.TicketRepository, queue *mailqueue.Repository, location *time.Location, logger *log.Logger) runner.Task {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(gb.Holidays...)
	logf := func(string, ...any) {}
	if logger != nil {
		logf = logger.Printf
	}
	return &ReminderTask{
		tickets:  tickets,
		queue:    queue,
		location: location,
		calendar: calendar,
		logf:     logf,
	}
}

func (t *ReminderTask) Name() string { return "overdue-reminder" }

// Schedule fires at 07:30 in the runner's timezone, Monday to Friday.
func (t *ReminderTask) Schedule() string { return "0 30 7 * * 1-5" }

func (t *ReminderTask) Timeout() time.Duration { return 2 * time.Minute }

// Run queues a reminder for every open ticket whose parent has been waiting
// longer than the threshold.
func (t *ReminderTask) Run(ctx context.Context) error {
	now := time.Now().In(t.location)
	if !t.calendar.IsWorkday(now) {
		return nil
	}

	waiting, err := t.tickets.ListWaiting(ctx, now.Add(-waitingThreshold).UTC())
	if err != nil {
		return err
	}
	var firstErr error
	for _, ticket := range waiting {
		if err := t.remind(ctx, ticket, now); err != nil {
			t.logf("failed to queue reminder for ticket %d: %v", ticket.Number, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (t *ReminderTask) remind(ctx context.Context, ticket models.Ticket, now time.Time) error {
	waitingFor := "some time"
	if ticket.WaitingSince != nil {
		waitingFor = timeago.English.Format(*ticket.WaitingSince)
	}
	heading := "Reminder: " + ticket.Title
	body := fmt.Sprintf(
		"%s is waiting for a reply on ticket %s. Their last message arrived %s.",
		parentDisplayName(ticket), models.FormatTicketNumber(ticket.Number), waitingFor)

	fp := fmt.Sprintf("reminder:%s:%s", models.FormatTicketNumber(ticket.Number), now.Format("2006-01-02"))
	err := t.queue.Enqueue(ctx, &mailqueue.Item{
		Fingerprint: &fp,
		Recipient:   ticket.AssigneeEmail,
		Subject:     email.TagSubject(heading, ticket.Number),
		Heading:     heading,
		Body:        body,
		Tag:         models.EmailTagStaff,
	})
	if errors.Is(err, mailqueue.ErrDuplicate) {
		return nil
	}
	return err
}

func parentDisplayName(ticket models.Ticket) string {
	if ticket.ParentName != nil && *ticket.ParentName != "" {
		return *ticket.ParentName
	}
	return "A parent"
}
