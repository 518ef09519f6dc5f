package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel")
	}
}

func TestNewTaskValidation(t *testing.T) {
	_, err := NewTask(Job[int]{Name: "x", Fetch: func(context.Context) (int, error) { return 0, nil }, Apply: func(int) {}}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewTask(Job[int]{Name: "x", Interval: time.Second}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestTaskImmediateCycle(t *testing.T) {
	clock := newManualClock()
	applied := make(chan int, 1)

	task, err := NewTask(Job[int]{
		Name:      "list",
		Interval:  time.Hour,
		Immediate: true,
		Fetch:     func(context.Context) (int, error) { return 42, nil },
		Apply:     func(v int) { applied <- v },
	}, clock, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()

	select {
	case v := <-applied:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("immediate cycle did not run")
	}

	assert.ErrorIs(t, task.Start(context.Background()), ErrTaskRunning)
}

func TestTaskTickAndFailure(t *testing.T) {
	clock := newManualClock()

	var (
		mu      sync.Mutex
		current = "none"
		calls   int
		errs    []error
	)
	cycles := make(chan struct{}, 10)
	boom := errors.New("connection refused")

	task, err := NewTask(Job[string]{
		Name:     "metrics",
		Interval: 2 * time.Second,
		Fetch: func(context.Context) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			switch calls {
			case 2:
				return "", boom
			default:
				return "v" + string(rune('0'+calls)), nil
			}
		},
		Apply: func(v string) {
			mu.Lock()
			current = v
			mu.Unlock()
			cycles <- struct{}{}
		},
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			cycles <- struct{}{}
		},
	}, clock, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()
	require.True(t, clock.waitTickers(1))

	read := func() string {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	clock.Tick()
	<-cycles
	assert.Equal(t, "v1", read())

	clock.Tick()
	<-cycles
	assert.Equal(t, "v1", read(), "failed fetch keeps the previous result")
	mu.Lock()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	mu.Unlock()

	clock.Tick()
	<-cycles
	assert.Equal(t, "v3", read(), "loop keeps running after a failure")

	waitClosed(t, task.Trigger())
	stats := task.Stats()
	assert.Equal(t, int64(4), stats.Cycles)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Empty(t, stats.LastError)
	assert.NotEmpty(t, stats.LastRunID)
	assert.Equal(t, StateIdle, stats.State)
}

func TestTaskSingleFlight(t *testing.T) {
	var inFlight, maxInFlight int32
	var applied []int
	var mu sync.Mutex
	release := make(chan struct{})
	var seq int32

	task, err := NewTask(Job[int]{
		Name:     "view",
		Interval: time.Hour,
		Fetch: func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			defer atomic.AddInt32(&inFlight, -1)
			id := int(atomic.AddInt32(&seq, 1))
			if id == 1 {
				<-release
			}
			return id, nil
		},
		Apply: func(v int) {
			mu.Lock()
			applied = append(applied, v)
			mu.Unlock()
		},
	}, newManualClock(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()

	first := task.Trigger()
	require.Eventually(t, func() bool { return task.State() == StateFetching }, time.Second, time.Millisecond)

	second := task.Trigger()
	third := task.Trigger()
	close(release)

	waitClosed(t, first)
	waitClosed(t, second)
	waitClosed(t, third)

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, applied, "requests made during a cycle coalesce into one")
}

func TestTaskRunOnce(t *testing.T) {
	var inFlight, maxInFlight, calls int32
	boom := errors.New("unreachable")

	task, err := NewTask(Job[int32]{
		Name:      "view",
		Interval:  time.Hour,
		Immediate: true,
		Fetch: func(ctx context.Context) (int32, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			defer atomic.AddInt32(&inFlight, -1)
			time.Sleep(5 * time.Millisecond)
			if atomic.AddInt32(&calls, 1) == 1 {
				return 0, boom
			}
			return atomic.LoadInt32(&calls), nil
		},
		Apply: func(int32) {},
	}, newManualClock(), zerolog.Nop())
	require.NoError(t, err)

	assert.ErrorIs(t, task.RunOnce(context.Background()), boom)
	assert.Equal(t, int64(1), task.Stats().Failures)

	// cycles from callers and from a loop starting underneath them never overlap
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, task.RunOnce(context.Background()))
		}()
	}
	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()
	waitClosed(t, task.Trigger())
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(6))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, task.RunOnce(ctx), context.Canceled)
}

func TestTaskStop(t *testing.T) {
	clock := newManualClock()
	var calls int32

	task, err := NewTask(Job[int]{
		Name:     "stop",
		Interval: time.Second,
		Fetch: func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, nil
		},
		Apply: func(int) {},
	}, clock, zerolog.Nop())
	require.NoError(t, err)

	waitClosed(t, task.Trigger())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "trigger on a stopped task is a no-op")

	require.NoError(t, task.Start(context.Background()))
	assert.True(t, task.Running())
	task.Stop()
	waitClosed(t, task.Done())
	assert.False(t, task.Running())

	clock.Tick()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	t.Run("parent cancellation stops the loop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, task.Start(ctx))
		cancel()
		waitClosed(t, task.Done())
		assert.False(t, task.Running())
	})
}

func TestTaskRecoversPanic(t *testing.T) {
	var calls int32
	var errs int32

	task, err := NewTask(Job[int]{
		Name:     "panicky",
		Interval: time.Hour,
		Fetch: func(context.Context) (int, error) {
			return int(atomic.AddInt32(&calls, 1)), nil
		},
		Apply: func(v int) {
			if v == 1 {
				panic("bad apply")
			}
		},
		OnError: func(error) { atomic.AddInt32(&errs, 1) },
	}, newManualClock(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()

	waitClosed(t, task.Trigger())
	waitClosed(t, task.Trigger())

	stats := task.Stats()
	assert.Equal(t, int64(2), stats.Cycles)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTaskFetchTimeout(t *testing.T) {
	failed := make(chan error, 1)

	task, err := NewTask(Job[int]{
		Name:     "slow",
		Interval: time.Hour,
		Timeout:  10 * time.Millisecond,
		Fetch: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		Apply:   func(int) {},
		OnError: func(err error) { failed <- err },
	}, newManualClock(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, task.Start(context.Background()))
	defer task.Stop()

	waitClosed(t, task.Trigger())
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	default:
		t.Fatal("timeout was not reported")
	}
}
