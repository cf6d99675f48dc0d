package runner

import (
	"context"
	"time"
)

// Task is a scheduled background job.
type Task interface {
	// Name identifies the task in logs.
	Name() string

	// Schedule is the cron expression (with seconds) for this task.
	Schedule() string

	// Run executes one invocation.
	Run(ctx context.Context) error

	// Timeout bounds a single invocation.
	Timeout() time.Duration
}

// Registry holds the tasks to schedule.
type Registry struct {
	tasks []Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a task. Registration order is preserved.
func (r *Registry) Register(task Task) {
	r.tasks = append(r.tasks, task)
}

// All returns the registered tasks.
func (r *Registry) All() []Task {
	return r.tasks
}
