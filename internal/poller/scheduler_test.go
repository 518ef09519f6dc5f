package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmsview/internal/domain"
)

func countingTask(t *testing.T, name string, counter *int32) *Task {
	t.Helper()
	task, err := NewTask(Job[int]{
		Name:     name,
		Interval: time.Hour,
		Fetch: func(context.Context) (int, error) {
			return int(atomic.AddInt32(counter, 1)), nil
		},
		Apply: func(int) {},
	}, newManualClock(), zerolog.Nop())
	require.NoError(t, err)
	return task
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var a, b int32

	require.NoError(t, s.Add(countingTask(t, "a", &a)))
	assert.Error(t, s.Add(countingTask(t, "a", &a)), "duplicate names are rejected")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.Add(countingTask(t, "b", &b)))
	assert.True(t, s.Has("b"))

	done, err := s.Trigger("a")
	require.NoError(t, err)
	waitClosed(t, done)
	done, err = s.Trigger("b")
	require.NoError(t, err)
	waitClosed(t, done)

	assert.Equal(t, int32(1), atomic.LoadInt32(&a))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b))

	stats := s.List()
	require.Len(t, stats, 2)
	assert.Equal(t, "a", stats[0].Name)
	assert.Equal(t, "b", stats[1].Name)

	require.NoError(t, s.Remove("b"))
	assert.False(t, s.Has("b"))

	_, err = s.Trigger("b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Remove("b"), domain.ErrNotFound)
}

func TestSchedulerStopStopsTasks(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var n int32
	task := countingTask(t, "a", &n)
	require.NoError(t, s.Add(task))
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	waitClosed(t, task.Done())
	assert.False(t, task.Running())
}
