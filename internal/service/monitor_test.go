package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nmsview/internal/domain"
	"nmsview/internal/metrics"
	"nmsview/internal/poller"
)

func snapshot(ts int64, cpu string) domain.MetricSnapshot {
	return domain.MetricSnapshot{
		Timestamp: ts,
		Counters: domain.Counters{
			domain.CounterCPUPercent: cpu,
			domain.CounterSystemName: "web-01",
		},
	}
}

func newTestMonitor(t *testing.T, source domain.Source, cfg MonitorConfig) (*MonitorService, chan Event) {
	t.Helper()
	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)

	scheduler := poller.NewScheduler(zerolog.Nop())
	require.NoError(t, scheduler.Start(context.Background()))
	t.Cleanup(scheduler.Stop)

	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	cfg.Series.Location = time.UTC
	return NewMonitorService(source, bus, scheduler, nil, cfg, zerolog.Nop()), events
}

// refreshTwice guarantees that a cycle started after Open has completed
func refreshTwice(t *testing.T, svc *MonitorService, objectID int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Refresh(ctx, objectID))
	require.NoError(t, svc.Refresh(ctx, objectID))
}

func TestMonitorSeedsFromHistory(t *testing.T) {
	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return([]domain.MetricSnapshot{
		snapshot(3000, "20"),
		snapshot(1000, "10"),
		snapshot(3000, "99"),
	}, nil).Once()
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return([]domain.MetricSnapshot{
		snapshot(1000, "10"),
		snapshot(3000, "99"),
		snapshot(5000, "30"),
	}, nil)

	svc, events := newTestMonitor(t, m, MonitorConfig{})

	opened, err := svc.Open(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, opened)
	waitEvent(t, events, EventMonitorOpened)

	refreshTwice(t, svc, 7)

	series, err := svc.Series(7)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len(), "duplicate timestamps are skipped")
	assert.Equal(t, []float64{10, 20, 30}, []float64{
		series.CPUUsage[0].Usage, series.CPUUsage[1].Usage, series.CPUUsage[2].Usage,
	})
	assert.Equal(t, "12:00:05", series.CPUUsage[2].Label)
	assert.Len(t, series.Network, 3)

	summary, err := svc.Summary(7)
	require.NoError(t, err)
	assert.Equal(t, "web-01", summary[domain.CounterSystemName])
	assert.Equal(t, metrics.NotAvailable, summary[domain.CounterThreads])

	sessions := svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(7), sessions[0].ObjectID)
	assert.Equal(t, 3, sessions[0].Points)
	assert.Empty(t, sessions[0].LastError)
}

func TestMonitorKeepsSamplesBetweenTicks(t *testing.T) {
	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return([]domain.MetricSnapshot{
		snapshot(1000, "1"),
	}, nil).Once()
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return(nil, errors.New("status 500")).Once()
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return([]domain.MetricSnapshot{
		snapshot(1000, "1"),
		snapshot(5000, "5"),
		snapshot(3000, "3"),
	}, nil)

	svc, _ := newTestMonitor(t, m, MonitorConfig{})

	_, err := svc.Open(context.Background(), 7)
	require.NoError(t, err)
	refreshTwice(t, svc, 7)

	series, err := svc.Series(7)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len(), "samples recorded between ticks are not dropped")
	assert.Equal(t, []float64{1, 3, 5}, []float64{
		series.CPUUsage[0].Usage, series.CPUUsage[1].Usage, series.CPUUsage[2].Usage,
	})
	assert.Equal(t, "12:00:03", series.CPUUsage[1].Label)
	m.AssertNotCalled(t, "GetMetricSnapshot", mock.Anything, mock.Anything)
}

func TestMonitorOpenDoesNotBlockOtherSessions(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, int64(1)).Return([]domain.MetricSnapshot{
		snapshot(1000, "10"),
	}, nil)
	m.On("ListMetricSnapshots", mock.Anything, int64(2)).Run(func(mock.Arguments) {
		once.Do(func() { close(started) })
		<-release
	}).Return(nil, nil)

	svc, _ := newTestMonitor(t, m, MonitorConfig{})
	ctx := context.Background()

	_, err := svc.Open(ctx, 1)
	require.NoError(t, err)

	opened := make(chan bool, 1)
	go func() {
		ok, err := svc.Open(ctx, 2)
		assert.NoError(t, err)
		opened <- ok
	}()
	waitClosed(t, started)

	reads := make(chan struct{})
	go func() {
		defer close(reads)
		series, err := svc.Series(1)
		assert.NoError(t, err)
		assert.Equal(t, 1, series.Len())
		_, err = svc.Summary(1)
		assert.NoError(t, err)
		assert.Len(t, svc.Sessions(), 1)
	}()
	select {
	case <-reads:
	case <-time.After(time.Second):
		t.Fatal("reads of an open session waited on another session's history fetch")
	}

	close(release)
	select {
	case ok := <-opened:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("open did not finish")
	}
	assert.Len(t, svc.Sessions(), 2)
}

func TestMonitorOpenTwice(t *testing.T) {
	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, mock.Anything).Return(nil, nil)
	m.On("GetMetricSnapshot", mock.Anything, mock.Anything).Return(domain.MetricSnapshot{}, domain.ErrNotFound)

	svc, _ := newTestMonitor(t, m, MonitorConfig{})
	ctx := context.Background()

	opened, err := svc.Open(ctx, 7)
	require.NoError(t, err)
	assert.True(t, opened)

	opened, err = svc.Open(ctx, 7)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Len(t, svc.Sessions(), 1)
}

func TestMonitorNoDataYet(t *testing.T) {
	m := &MockSource{}
	m.On("GetMetricSnapshot", mock.Anything, int64(9)).Return(domain.MetricSnapshot{}, domain.ErrNotFound)

	svc, _ := newTestMonitor(t, readOnlySource{m: m}, MonitorConfig{})

	_, err := svc.Open(context.Background(), 9)
	require.NoError(t, err)
	refreshTwice(t, svc, 9)

	series, err := svc.Series(9)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySeriesSet(), series)

	summary, err := svc.Summary(9)
	require.NoError(t, err)
	assert.Equal(t, metrics.NotAvailable, summary[domain.CounterSystemName])

	sessions := svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Empty(t, sessions[0].LastError, "a missing snapshot is not a failure")
	m.AssertNotCalled(t, "ListMetricSnapshots", mock.Anything, mock.Anything)
}

func TestMonitorFetchFailureKeepsSeries(t *testing.T) {
	m := &MockSource{}
	m.On("GetMetricSnapshot", mock.Anything, int64(7)).Return(snapshot(1000, "10"), nil).Once()
	m.On("GetMetricSnapshot", mock.Anything, int64(7)).Return(domain.MetricSnapshot{}, errors.New("timeout"))

	svc, events := newTestMonitor(t, readOnlySource{m: m}, MonitorConfig{})

	_, err := svc.Open(context.Background(), 7)
	require.NoError(t, err)
	refreshTwice(t, svc, 7)

	ev := waitEvent(t, events, EventFetchFailed)
	failure, ok := ev.Payload.(FetchFailure)
	require.True(t, ok)
	assert.Equal(t, int64(7), failure.ObjectID)
	assert.Contains(t, failure.Error, "timeout")

	series, err := svc.Series(7)
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
	assert.Contains(t, svc.Sessions()[0].LastError, "timeout")
}

func TestMonitorWindowRetention(t *testing.T) {
	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, int64(7)).Return([]domain.MetricSnapshot{
		snapshot(1000, "1"),
		snapshot(2000, "2"),
		snapshot(3000, "3"),
		snapshot(4000, "4"),
	}, nil)
	m.On("GetMetricSnapshot", mock.Anything, int64(7)).Return(snapshot(4000, "4"), nil)

	svc, _ := newTestMonitor(t, m, MonitorConfig{Window: metrics.WindowConfig{Retention: 2}})

	_, err := svc.Open(context.Background(), 7)
	require.NoError(t, err)

	series, err := svc.Series(7)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 3.0, series.CPUUsage[0].Usage)
	assert.Equal(t, 4.0, series.CPUUsage[1].Usage)
}

func TestMonitorClose(t *testing.T) {
	m := &MockSource{}
	m.On("ListMetricSnapshots", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))
	m.On("GetMetricSnapshot", mock.Anything, mock.Anything).Return(domain.MetricSnapshot{}, domain.ErrNotFound)

	svc, events := newTestMonitor(t, m, MonitorConfig{})
	ctx := context.Background()

	_, err := svc.Open(ctx, 7)
	require.NoError(t, err, "history failure does not prevent opening")
	_, err = svc.Open(ctx, 8)
	require.NoError(t, err)

	require.NoError(t, svc.Close(7))
	waitEvent(t, events, EventMonitorClosed)

	_, err = svc.Series(7)
	assert.ErrorIs(t, err, domain.ErrNotMonitored)
	_, err = svc.Summary(7)
	assert.ErrorIs(t, err, domain.ErrNotMonitored)
	assert.ErrorIs(t, svc.Close(7), domain.ErrNotMonitored)
	assert.ErrorIs(t, svc.Refresh(ctx, 7), domain.ErrNotMonitored)

	svc.Forget(7)
	svc.Forget(8)
	assert.Empty(t, svc.Sessions())

	_, err = svc.Open(ctx, 9)
	require.NoError(t, err)
	svc.CloseAll()
	assert.Empty(t, svc.Sessions())
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel")
	}
}
