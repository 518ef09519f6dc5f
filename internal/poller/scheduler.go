package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"nmsview/internal/domain"
)

// Scheduler owns a set of independently running tasks
type Scheduler struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	ctx     context.Context
	cancel  context.CancelFunc
	log     zerolog.Logger
	started bool
}

// NewScheduler creates a new scheduler
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Task),
		log:   log,
	}
}

// Add registers a task, starting it at once if the scheduler is running
func (s *Scheduler) Add(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name()]; exists {
		return fmt.Errorf("task %s already registered", task.Name())
	}
	s.tasks[task.Name()] = task

	if s.started {
		if err := task.Start(s.ctx); err != nil {
			delete(s.tasks, task.Name())
			return err
		}
	}

	s.log.Info().Str("task", task.Name()).Dur("interval", task.interval).Msg("Registered task")
	return nil
}

// Remove stops and forgets a task. Its loop has exited when Remove returns.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	task, exists := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("task %s: %w", name, domain.ErrNotFound)
	}

	task.Stop()
	s.log.Info().Str("task", name).Msg("Removed task")
	return nil
}

// Has reports whether a task is registered
func (s *Scheduler) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[name]
	return ok
}

// Start begins every registered task
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrTaskRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for name, task := range s.tasks {
		if err := task.Start(s.ctx); err != nil {
			s.log.Error().Err(err).Str("task", name).Msg("Failed to start task")
		}
	}
	return nil
}

// Stop cancels every task and waits for their loops to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.started = false
	s.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

// Trigger requests an immediate cycle of the named task
func (s *Scheduler) Trigger(name string) (<-chan struct{}, error) {
	s.mu.RLock()
	task, exists := s.tasks[name]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("task %s: %w", name, domain.ErrNotFound)
	}
	return task.Trigger(), nil
}

// List returns stats for every task sorted by name
func (s *Scheduler) List() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
