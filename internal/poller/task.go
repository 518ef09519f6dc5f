// Package poller runs periodic fetch-and-apply cycles, one goroutine per
// polled resource.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle position of a task's current cycle
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateApplying    State = "applying"
	StateFetchFailed State = "fetch-failed"
)

var (
	// ErrTaskRunning is returned when starting a task twice
	ErrTaskRunning = errors.New("task already running")
	// ErrInvalidInterval rejects non-positive periods
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Job describes one polled resource. Fetch runs on the task goroutine and its
// result is handed to Apply on the same goroutine, so at most one fetch is in
// flight and results apply in fetch-start order.
type Job[T any] struct {
	Name     string
	Interval time.Duration
	// Timeout bounds each fetch (0 means no limit)
	Timeout time.Duration
	// Immediate runs one cycle as soon as the task starts
	Immediate bool

	Fetch   func(ctx context.Context) (T, error)
	Apply   func(result T)
	OnError func(err error)
}

// Stats is a point-in-time view of a task
type Stats struct {
	Name        string        `json:"name"`
	State       State         `json:"state"`
	Interval    time.Duration `json:"interval"`
	Cycles      int64         `json:"cycles"`
	Failures    int64         `json:"failures"`
	LastRunID   string        `json:"last_run_id,omitempty"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}

// Task drives one Job on a fixed period until stopped
type Task struct {
	name      string
	interval  time.Duration
	immediate bool
	cycle     func(ctx context.Context) error
	clock     Clock
	log       zerolog.Logger

	// cycleMu serialises cycles from the loop and from RunOnce
	cycleMu sync.Mutex

	mu      sync.Mutex
	state   State
	stats   Stats
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	waiters []chan struct{}
	kick    chan struct{}
}

// NewTask binds a job to a clock and logger
func NewTask[T any](job Job[T], clock Clock, log zerolog.Logger) (*Task, error) {
	if job.Interval <= 0 {
		return nil, fmt.Errorf("task %s: %w", job.Name, ErrInvalidInterval)
	}
	if job.Fetch == nil || job.Apply == nil {
		return nil, fmt.Errorf("task %s: fetch and apply are required", job.Name)
	}
	if clock == nil {
		clock = RealClock()
	}

	t := &Task{
		name:      job.Name,
		interval:  job.Interval,
		immediate: job.Immediate,
		clock:     clock,
		log:       log.With().Str("task", job.Name).Logger(),
		state:     StateIdle,
		kick:      make(chan struct{}, 1),
	}
	t.stats.Name = job.Name
	t.stats.Interval = job.Interval

	t.cycle = func(ctx context.Context) error {
		fetchCtx := ctx
		if job.Timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, job.Timeout)
			defer cancel()
		}

		result, err := job.Fetch(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.setState(StateFetchFailed)
			if job.OnError != nil {
				job.OnError(err)
			}
			return err
		}

		t.setState(StateApplying)
		job.Apply(result)
		return nil
	}

	return t, nil
}

// Name returns the task name
func (t *Task) Name() string {
	return t.name
}

// State returns the current cycle state
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns a copy of the task counters
func (t *Task) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.State = t.state
	return s
}

// Running reports whether the loop is active
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Start launches the polling loop. It stops when ctx is cancelled or Stop
// is called.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("task %s: %w", t.name, ErrTaskRunning)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(loopCtx, t.done)

	t.log.Debug().Dur("interval", t.interval).Msg("Started polling loop")
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish
func (t *Task) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed once the loop has exited
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

// Trigger requests an out-of-schedule cycle. The returned channel closes once
// a cycle that started after the request has finished. Requests made while a
// cycle is running coalesce into the next one.
func (t *Task) Trigger() <-chan struct{} {
	ch := make(chan struct{})

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case t.kick <- struct{}{}:
	default:
	}
	return ch
}

// RunOnce performs one cycle on the caller's goroutine and returns its
// error. It never overlaps a cycle run by the loop.
func (t *Task) RunOnce(ctx context.Context) error {
	return t.runCycle(ctx)
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		t.mu.Lock()
		t.running = false
		t.cancel = nil
		t.state = StateIdle
		waiters := t.waiters
		t.waiters = nil
		t.mu.Unlock()

		for _, w := range waiters {
			close(w)
		}
		close(done)
		t.log.Debug().Msg("Stopped polling loop")
	}()

	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()

	if t.immediate {
		_ = t.runCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = t.runCycle(ctx)
		case <-t.kick:
			_ = t.runCycle(ctx)
		}
	}
}

// runCycle performs one fetch-and-apply and releases any waiters that were
// registered before it started.
func (t *Task) runCycle(ctx context.Context) error {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	runID := uuid.NewString()
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = nil
	t.state = StateFetching
	t.stats.LastRunID = runID
	t.mu.Unlock()

	defer func() {
		for _, w := range waiters {
			close(w)
		}
	}()

	started := t.clock.Now()
	err := t.safeCycle(ctx)

	t.mu.Lock()
	t.stats.Cycles++
	switch {
	case err == nil:
		t.stats.LastSuccess = t.clock.Now()
		t.stats.LastError = ""
	case ctx.Err() != nil:
	default:
		t.stats.Failures++
		t.stats.LastError = err.Error()
	}
	t.state = StateIdle
	t.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn().Err(err).Str("run_id", runID).Msg("Poll cycle failed, keeping previous result")
		}
		return err
	}
	t.log.Debug().Str("run_id", runID).Dur("took", t.clock.Now().Sub(started)).Msg("Poll cycle complete")
	return nil
}

// safeCycle runs one cycle, converting a panic into an error so the loop
// keeps ticking.
func (t *Task) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poll cycle: %v", r)
		}
	}()
	return t.cycle(ctx)
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}
