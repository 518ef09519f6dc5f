package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nmsview/internal/domain"
	"nmsview/internal/metrics"
	"nmsview/internal/poller"
)

// MonitorConfig controls per-object metric polling
type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Window   metrics.WindowConfig
	Series   metrics.SeriesOptions
}

// SessionInfo describes one open monitor session
type SessionInfo struct {
	ObjectID  int64     `json:"object_id"`
	Points    int       `json:"points"`
	OpenedAt  time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// session is the state of one monitored object. The window belongs to the
// session's poll task; readers only see the published series and latest.
type session struct {
	objectID int64
	window   *metrics.Window
	task     *poller.Task
	openedAt time.Time

	mu        sync.RWMutex
	series    domain.SeriesSet
	latest    *domain.MetricSnapshot
	updatedAt time.Time
	lastErr   string
}

// MonitorService runs one metric poller per monitored object
type MonitorService struct {
	source    domain.Source
	history   domain.HistorySource
	eventBus  *EventBus
	scheduler *poller.Scheduler
	clock     poller.Clock
	cfg       MonitorConfig
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewMonitorService creates a new monitor service. Windows are seeded from
// history when source also implements domain.HistorySource.
func NewMonitorService(source domain.Source, eventBus *EventBus, scheduler *poller.Scheduler, clock poller.Clock, cfg MonitorConfig, log zerolog.Logger) *MonitorService {
	if clock == nil {
		clock = poller.RealClock()
	}
	s := &MonitorService{
		source:    source,
		eventBus:  eventBus,
		scheduler: scheduler,
		clock:     clock,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[int64]*session),
	}
	s.history, _ = source.(domain.HistorySource)
	return s
}

func taskName(objectID int64) string {
	return "monitor/" + strconv.FormatInt(objectID, 10)
}

// Open starts monitoring an object. It reports false when a session for
// the object already exists. The history fetch runs without holding the
// service lock so other sessions stay readable.
func (s *MonitorService) Open(ctx context.Context, objectID int64) (bool, error) {
	if s.isOpen(objectID) {
		return false, nil
	}

	sess := &session{
		objectID: objectID,
		window:   metrics.NewWindow(s.cfg.Window),
		openedAt: s.clock.Now(),
		series:   domain.EmptySeriesSet(),
	}
	log := s.log.With().Int64("object_id", objectID).Logger()

	if s.history != nil {
		snaps, err := s.history.ListMetricSnapshots(ctx, objectID)
		if err != nil {
			log.Warn().Err(err).Msg("Could not seed monitor window from history")
		} else {
			seeded := appendNewer(sess.window, snaps)
			if seeded > 0 {
				s.publish(sess)
			}
			log.Debug().Int("snapshots", seeded).Msg("Seeded monitor window")
		}
	}

	task, err := poller.NewTask(poller.Job[[]domain.MetricSnapshot]{
		Name:      taskName(objectID),
		Interval:  s.cfg.Interval,
		Timeout:   s.cfg.Timeout,
		Immediate: true,
		Fetch: func(ctx context.Context) ([]domain.MetricSnapshot, error) {
			return s.fetchSnapshots(ctx, objectID)
		},
		Apply: func(snaps []domain.MetricSnapshot) {
			if appendNewer(sess.window, snaps) > 0 {
				s.publish(sess)
			}
		},
		OnError: func(err error) {
			sess.mu.Lock()
			sess.lastErr = err.Error()
			sess.mu.Unlock()
			s.eventBus.Publish(Event{
				Type:    EventFetchFailed,
				Payload: FetchFailure{Resource: "monitor", ObjectID: objectID, Error: err.Error()},
			})
		},
	}, s.clock, s.log)
	if err != nil {
		return false, err
	}
	sess.task = task

	s.mu.Lock()
	if _, ok := s.sessions[objectID]; ok {
		// a concurrent Open won
		s.mu.Unlock()
		return false, nil
	}
	if err := s.scheduler.Add(task); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.sessions[objectID] = sess
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventMonitorOpened,
		Payload: map[string]int64{"object_id": objectID},
	})
	log.Info().Dur("interval", s.cfg.Interval).Msg("Monitor opened")
	return true, nil
}

func (s *MonitorService) isOpen(objectID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[objectID]
	return ok
}

// fetchSnapshots returns the object's samples. Sources with history return
// every retained sample so anything recorded between ticks is kept.
func (s *MonitorService) fetchSnapshots(ctx context.Context, objectID int64) ([]domain.MetricSnapshot, error) {
	if s.history != nil {
		snaps, err := s.history.ListMetricSnapshots(ctx, objectID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, domain.NewTransportError("list metric snapshots", err)
		}
		return snaps, nil
	}

	snap, err := s.source.GetMetricSnapshot(ctx, objectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewTransportError("get metric snapshot", err)
	}
	return []domain.MetricSnapshot{snap}, nil
}

// Close stops monitoring an object and drops its history
func (s *MonitorService) Close(objectID int64) error {
	s.mu.Lock()
	sess, ok := s.sessions[objectID]
	delete(s.sessions, objectID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("object %d: %w", objectID, domain.ErrNotMonitored)
	}
	if err := s.scheduler.Remove(sess.task.Name()); err != nil {
		s.log.Warn().Err(err).Int64("object_id", objectID).Msg("Monitor task already gone")
	}

	s.eventBus.Publish(Event{
		Type:    EventMonitorClosed,
		Payload: map[string]int64{"object_id": objectID},
	})
	s.log.Info().Int64("object_id", objectID).Msg("Monitor closed")
	return nil
}

// CloseAll stops every session
func (s *MonitorService) CloseAll() {
	for _, info := range s.Sessions() {
		_ = s.Close(info.ObjectID)
	}
}

// Forget closes the session for a deleted object, if any
func (s *MonitorService) Forget(objectID int64) {
	if err := s.Close(objectID); err != nil && !errors.Is(err, domain.ErrNotMonitored) {
		s.log.Warn().Err(err).Int64("object_id", objectID).Msg("Failed to close monitor")
	}
}

// Series returns the six chart series of a monitored object
func (s *MonitorService) Series(objectID int64) (domain.SeriesSet, error) {
	sess, err := s.session(objectID)
	if err != nil {
		return domain.EmptySeriesSet(), err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.series, nil
}

// Summary returns the display fields of the newest snapshot
func (s *MonitorService) Summary(objectID int64) (map[string]string, error) {
	sess, err := s.session(objectID)
	if err != nil {
		return nil, err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return metrics.Summary(sess.latest), nil
}

// Refresh polls one object now and waits for the result
func (s *MonitorService) Refresh(ctx context.Context, objectID int64) error {
	sess, err := s.session(objectID)
	if err != nil {
		return err
	}
	select {
	case <-sess.task.Trigger():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sessions lists open sessions ordered by object id
func (s *MonitorService) Sessions() []SessionInfo {
	s.mu.Lock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		sess.mu.RLock()
		out = append(out, SessionInfo{
			ObjectID:  sess.objectID,
			Points:    sess.series.Len(),
			OpenedAt:  sess.openedAt,
			UpdatedAt: sess.updatedAt,
			LastError: sess.lastErr,
		})
		sess.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID < out[j].ObjectID })
	return out
}

func (s *MonitorService) session(objectID int64) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[objectID]
	if !ok {
		return nil, fmt.Errorf("object %d: %w", objectID, domain.ErrNotMonitored)
	}
	return sess, nil
}

// publish derives series from the window and swaps them in
func (s *MonitorService) publish(sess *session) {
	history := sess.window.History()
	series := metrics.DeriveSeriesWith(history, s.cfg.Series)
	var latest *domain.MetricSnapshot
	if len(history) > 0 {
		l := history[len(history)-1]
		latest = &l
	}

	sess.mu.Lock()
	sess.series = series
	sess.latest = latest
	sess.updatedAt = s.clock.Now()
	sess.lastErr = ""
	sess.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventSeriesUpdated,
		Payload: map[string]int64{"object_id": sess.objectID, "points": int64(series.Len())},
	})
}

// appendIfNewer appends snap unless it is not newer than the latest retained
// sample
func appendIfNewer(w *metrics.Window, snap domain.MetricSnapshot) bool {
	if latest, ok := w.Latest(); ok && snap.Timestamp <= latest.Timestamp {
		return false
	}
	w.Append(snap)
	return true
}

// appendNewer appends, oldest first, every snapshot newer than the window's
// latest and returns how many were appended
func appendNewer(w *metrics.Window, snaps []domain.MetricSnapshot) int {
	n := 0
	for _, snap := range sortedByTime(snaps) {
		if appendIfNewer(w, snap) {
			n++
		}
	}
	return n
}

func sortedByTime(snaps []domain.MetricSnapshot) []domain.MetricSnapshot {
	out := append([]domain.MetricSnapshot(nil), snaps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
