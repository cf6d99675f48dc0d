// Package runner schedules the helpdesk's background jobs: draining the mail
// queue and sending overdue-ticket reminders.
package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner executes registered tasks on their cron schedules.
type Runner struct {
	cron     *cron.Cron
	registry *Registry
	logf     func(format string, args ...any)
	wg       sync.WaitGroup
}

// Option configures a Runner.
type Option func(*options)

type options struct {
	location *time.Location
	logger   *log.Logger
}

// WithLocation sets the timezone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithLogger directs diagnostic output to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a runner for the registry's tasks.
func New(registry *Registry, opts ...Option) *Runner {
	o := options{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	logf := func(string, ...any) {}
	if o.logger != nil {
		logf = o.logger.Printf
	}
	return &Runner{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(o.location)),
		registry: registry,
		logf:     logf,
	}
}

// Start schedules every registered task and begins execution. It returns once
// scheduling is set up; Stop drains in-flight tasks.
func (r *Runner) Start(ctx context.Context) error {
	for _, task := range r.registry.All() {
		task := task
		r.logf("scheduling task %s (%s)", task.Name(), task.Schedule())
		_, err := r.cron.AddFunc(task.Schedule(), func() {
			r.execute(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", task.Name(), err)
		}
	}
	r.cron.Start()
	return nil
}

func (r *Runner) execute(ctx context.Context, task Task) {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	if err := task.Run(taskCtx); err != nil {
		r.logf("task %s failed after %v: %v", task.Name(), time.Since(start), err)
		return
	}
	r.logf("task %s completed in %v", task.Name(), time.Since(start))
}

// Stop halts scheduling and waits for running tasks to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	r.wg.Wait()
	<-ctx.Done()
}
