package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nmsview/internal/domain"
	"nmsview/internal/poller"
	"nmsview/internal/reconcile"
)

// DashboardTask is the scheduler name of the merged-view poller
const DashboardTask = "dashboard"

// DashboardConfig controls the merged-view poller
type DashboardConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DashboardView is the published merged view
type DashboardView struct {
	Rows      []domain.MergedViewRow `json:"rows"`
	UpdatedAt time.Time              `json:"updated_at"`
	LastError string                 `json:"last_error,omitempty"`
	Stale     bool                   `json:"stale"`
}

// recordSet is one fetch of both collaborator lists
type recordSet struct {
	discoveries []domain.DiscoveryRecord
	objects     []domain.ManagedObject
}

// DashboardService keeps the reconciled view of discoveries and objects
// current and forwards provisioning operations to the collaborator.
type DashboardService struct {
	source     domain.Source
	writer     domain.ObjectWriter
	runner     domain.DiscoveryRunner
	creds      domain.CredentialSource
	reconciler *reconcile.Reconciler
	eventBus   *EventBus
	task       *poller.Task
	clock      poller.Clock
	log        zerolog.Logger

	mu        sync.RWMutex
	view      DashboardView
	onDeleted []func(objectID int64)
}

// NewDashboardService creates the service and registers its poller with
// the scheduler. Write operations are available when source implements
// the matching collaborator interfaces.
func NewDashboardService(source domain.Source, eventBus *EventBus, scheduler *poller.Scheduler, clock poller.Clock, cfg DashboardConfig, log zerolog.Logger) (*DashboardService, error) {
	if clock == nil {
		clock = poller.RealClock()
	}
	s := &DashboardService{
		source:     source,
		reconciler: reconcile.NewReconciler(log),
		eventBus:   eventBus,
		clock:      clock,
		log:        log,
		view:       DashboardView{Rows: []domain.MergedViewRow{}},
	}
	s.writer, _ = source.(domain.ObjectWriter)
	s.runner, _ = source.(domain.DiscoveryRunner)
	s.creds, _ = source.(domain.CredentialSource)

	task, err := poller.NewTask(poller.Job[recordSet]{
		Name:      DashboardTask,
		Interval:  cfg.Interval,
		Timeout:   cfg.Timeout,
		Immediate: true,
		Fetch:     s.fetch,
		Apply:     s.apply,
		OnError:   s.fail,
	}, clock, log)
	if err != nil {
		return nil, err
	}
	if err := scheduler.Add(task); err != nil {
		return nil, err
	}
	s.task = task
	return s, nil
}

// MergedView returns the latest published view
func (s *DashboardService) MergedView() DashboardView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Rows = append([]domain.MergedViewRow(nil), s.view.Rows...)
	return v
}

// TaskStats returns the poller counters
func (s *DashboardService) TaskStats() poller.Stats {
	return s.task.Stats()
}

// OnObjectDeleted registers a callback run after a successful delete
func (s *DashboardService) OnObjectDeleted(fn func(objectID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeleted = append(s.onDeleted, fn)
}

// Refresh runs a poll cycle now and waits for it. When the poller is not
// running the cycle runs on the caller's goroutine, still serialised with
// the poller's own cycles.
func (s *DashboardService) Refresh(ctx context.Context) error {
	if !s.task.Running() {
		return s.task.RunOnce(ctx)
	}

	select {
	case <-s.task.Trigger():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Provision promotes a completed discovery and refreshes the view
func (s *DashboardService) Provision(ctx context.Context, req domain.ProvisionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.writer == nil {
		return fmt.Errorf("provision: %w", domain.ErrUnsupported)
	}
	if err := s.writer.Provision(ctx, req); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventObjectProvisioned,
		Payload: map[string]interface{}{"ip": req.IP, "poll_interval_ms": req.PollIntervalMs},
	})
	s.refreshAfterWrite(ctx)
	return nil
}

// Delete removes a managed object and refreshes the view
func (s *DashboardService) Delete(ctx context.Context, objectID int64) error {
	if s.writer == nil {
		return fmt.Errorf("delete: %w", domain.ErrUnsupported)
	}
	if err := s.writer.DeleteObject(ctx, objectID); err != nil {
		return err
	}

	s.mu.RLock()
	hooks := append([]func(int64){}, s.onDeleted...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(objectID)
	}

	s.eventBus.Publish(Event{
		Type:    EventObjectDeleted,
		Payload: map[string]int64{"object_id": objectID},
	})
	s.refreshAfterWrite(ctx)
	return nil
}

// RunDiscovery asks the collaborator to execute a discovery and refreshes
func (s *DashboardService) RunDiscovery(ctx context.Context, discoveryID int64) error {
	if s.runner == nil {
		return fmt.Errorf("run discovery: %w", domain.ErrUnsupported)
	}
	if err := s.runner.RunDiscovery(ctx, discoveryID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventDiscoveryRun,
		Payload: map[string]int64{"discovery_id": discoveryID},
	})
	s.refreshAfterWrite(ctx)
	return nil
}

// refreshAfterWrite refreshes without failing the write that preceded it
func (s *DashboardService) refreshAfterWrite(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Refresh after write failed")
	}
}

// fetch loads both lists concurrently
func (s *DashboardService) fetch(ctx context.Context) (recordSet, error) {
	var set recordSet
	var creds []domain.Credential

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.source.ListDiscoveries(gctx)
		if err != nil {
			return domain.NewTransportError("list discoveries", err)
		}
		set.discoveries = d
		return nil
	})
	g.Go(func() error {
		o, err := s.source.ListManagedObjects(gctx)
		if err != nil {
			return domain.NewTransportError("list objects", err)
		}
		set.objects = o
		return nil
	})
	if s.creds != nil {
		g.Go(func() error {
			c, err := s.creds.ListCredentials(gctx)
			if err != nil {
				s.log.Debug().Err(err).Msg("Credential labels unavailable")
				return nil
			}
			creds = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return recordSet{}, err
	}

	if len(creds) > 0 {
		set.discoveries = labelDiscoveries(set.discoveries, creds)
	}
	return set, nil
}

// labelDiscoveries fills missing credential names from the credential list.
// The input slice belongs to the source and is not modified.
func labelDiscoveries(in []domain.DiscoveryRecord, creds []domain.Credential) []domain.DiscoveryRecord {
	discoveries := append([]domain.DiscoveryRecord(nil), in...)
	byID := make(map[int64]domain.Credential, len(creds))
	for _, c := range creds {
		byID[c.ID] = c
	}
	for i := range discoveries {
		d := &discoveries[i]
		if d.CredentialName != "" || d.CredentialID == 0 {
			continue
		}
		if c, ok := byID[d.CredentialID]; ok {
			d.CredentialName = c.Label()
			if d.DeviceType == "" {
				d.DeviceType = c.DeviceType
			}
		}
	}
	return discoveries
}

func (s *DashboardService) apply(set recordSet) {
	rows := s.reconciler.Reconcile(set.discoveries, set.objects)

	s.mu.Lock()
	s.view = DashboardView{
		Rows:      rows,
		UpdatedAt: s.clock.Now(),
	}
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventMergedViewUpdated,
		Payload: map[string]int{"rows": len(rows)},
	})
}

// fail keeps the previous rows and records the error
func (s *DashboardService) fail(err error) {
	s.mu.Lock()
	s.view.LastError = err.Error()
	s.view.Stale = true
	s.mu.Unlock()

	s.eventBus.Publish(Event{
		Type:    EventFetchFailed,
		Payload: FetchFailure{Resource: DashboardTask, Error: err.Error()},
	})
}
