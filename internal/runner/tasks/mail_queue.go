// Package tasks holds the concrete background jobs run by the scheduler.
package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jamesgurung/school-helpdesk/internal/email"
	"github.com/jamesgurung/school-helpdesk/internal/mailqueue"
	"github.com/jamesgurung/school-helpdesk/internal/metrics"
	"github.com/jamesgurung/school-helpdesk/internal/runner"
)

const (
	// maxDeliveryAttempts is how many sends are tried before an item is
	// left for cleanup.
	maxDeliveryAttempts = 5

	// queueBatchSize caps items per run so a backlog cannot hold the SMTP
	// connection open indefinitely.
	queueBatchSize = 10
)

// MailQueueTask drains pending notifications from the queue.
type MailQueueTask struct {
	repo     *mailqueue.Repository
	composer *email.Composer
	sender   *email.Sender
	logf     func(format string, args ...any)
}

// NewMailQueueTask creates the queue drain task.
func NewMailQueueTask(repo *mailqueue.Repository, composer *email.Composer, sender *email.Sender, logger *log.Logger) runner.Task {
	logf := func(string, ...any) {}
	if logger != nil {
		logf = logger.Printf
	}
	return &MailQueueTask{repo: repo, composer: composer, sender: sender, logf: logf}
}

func (t *MailQueueTask) Name() string { return "mail-queue" }

// Schedule runs every 30 seconds.
func (t *MailQueueTask) Schedule() string { return "*/30 * * * * *" }

func (t *MailQueueTask) Timeout() time.Duration { return 5 * time.Minute }

// Run sends due notifications, rescheduling failures with backoff and
// discarding items that have exhausted their attempts after a week.
func (t *MailQueueTask) Run(ctx context.Context) error {
	due, err := t.repo.Due(ctx, time.Now().UTC(), queueBatchSize)
	if err != nil {
		return err
	}
	var firstErr error
	for _, item := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := t.deliver(ctx, item); err != nil {
			t.logf("failed to deliver queue item %d: %v", item.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := t.cleanup(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (t *MailQueueTask) deliver(ctx context.Context, item *mailqueue.Item) error {
	html, err := t.composer.Notification(item.Heading, item.Body)
	if err != nil {
		return err
	}
	msg := &email.OutboundMessage{
		To:       []string{item.Recipient},
		Subject:  item.Subject,
		HTMLBody: html,
		Tag:      item.Tag,
	}
	if item.ThreadID != nil {
		msg.InReplyTo = *item.ThreadID
	}
	if err := t.sender.Send(msg); err != nil {
		metrics.QueueDeliveries.WithLabelValues("failure").Inc()
		next := time.Now().UTC().Add(mailqueue.Backoff(item.Attempts))
		if recordErr := t.repo.RecordFailure(ctx, item.ID, err, next); recordErr != nil {
			return fmt.Errorf("failed to record delivery failure: %w", recordErr)
		}
		return err
	}
	metrics.QueueDeliveries.WithLabelValues("success").Inc()
	return t.repo.Delete(ctx, item.ID)
}

// cleanup discards items that exhausted their retries more than a week ago.
func (t *MailQueueTask) cleanup(ctx context.Context) error {
	abandoned, err := t.repo.Abandoned(ctx, maxDeliveryAttempts, 100)
	if err != nil {
		return err
	}
	for _, item := range abandoned {
		if time.Since(item.CreateTime) < 7*24*time.Hour {
			continue
		}
		if err := t.repo.Delete(ctx, item.ID); err != nil {
			t.logf("failed to drop abandoned queue item %d: %v", item.ID, err)
		}
	}
	return nil
}
