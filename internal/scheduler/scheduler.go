package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TaskFunc is one schedulable pipeline entry point.
type TaskFunc func(ctx context.Context) error

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task tracks one registered cron job.
type Task struct {
	Name        string
	Schedule    string
	LastRunTime time.Time
	LastError   string
	Status      TaskStatus
}

// Scheduler drives the pipeline entry points on cron schedules. Task
// failures and panics are contained so one bad cycle never cancels
// future runs.
type Scheduler struct {
	cron  *cron.Cron
	tasks map[string]*Task
	log   *logrus.Logger
	mu    sync.RWMutex
}

// New creates a scheduler with second-resolution cron expressions.
func New(log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		tasks: make(map[string]*Task),
		log:   log,
	}
}

// Register adds a named task on a cron schedule.
func (s *Scheduler) Register(name, schedule string, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	task := &Task{Name: name, Schedule: schedule, Status: TaskStatusPending}
	_, err := s.cron.AddFunc(schedule, func() {
		s.run(task, fn)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", name, err)
	}

	s.tasks[name] = task
	return nil
}

func (s *Scheduler) run(task *Task, fn TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.setStatus(task, TaskStatusFailed, fmt.Sprintf("panic: %v", r))
			s.log.WithFields(logrus.Fields{
				"task":  task.Name,
				"panic": fmt.Sprintf("%v", r),
			}).Error("scheduled task panicked")
		}
	}()

	s.setStatus(task, TaskStatusRunning, "")
	if err := fn(context.Background()); err != nil {
		s.setStatus(task, TaskStatusFailed, err.Error())
		s.log.WithFields(logrus.Fields{
			"task":  task.Name,
			"error": err.Error(),
		}).Error("scheduled task failed")
		return
	}
	s.setStatus(task, TaskStatusCompleted, "")
}

func (s *Scheduler) setStatus(task *Task, status TaskStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.Status = status
	task.LastError = errMsg
	if status == TaskStatusRunning {
		task.LastRunTime = time.Now().UTC()
	}
}

// Tasks returns a snapshot of all registered tasks.
func (s *Scheduler) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
