package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a named piece of work executed once per day at a fixed local hour.
type Task struct {
	Name string
	Hour int
	Run  func(context.Context) error
}

// Scheduler runs registered daily tasks on their own goroutines.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	tasks   []Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	// now is swappable for tests.
	now func() time.Time
}

// New builds an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger, now: time.Now}
}

// AddDaily registers a task to run every day at the given local hour.
func (s *Scheduler) AddDaily(name string, hour int, run func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hour < 0 || hour > 23 {
		hour = 0
	}
	s.tasks = append(s.tasks, Task{Name: name, Hour: hour, Run: run})
}

// Start launches one goroutine per registered task. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(task)
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.tasks))
}

// Stop cancels all task loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) loop(task Task) {
	defer s.wg.Done()
	for {
		wait := time.Until(NextRun(s.now(), task.Hour))
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := task.Run(s.ctx); err != nil {
			s.logger.Sugar().Errorw("scheduled task failed", "task", task.Name, "error", err)
		} else {
			s.logger.Sugar().Infow("scheduled task completed", "task", task.Name)
		}
	}
}

// NextRun returns the next occurrence of the given local hour strictly after now.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
