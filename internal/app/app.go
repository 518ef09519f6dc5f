// Package app wires the configured collaborator source to the polling
// services. Both binaries build their runtime through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nmsview/internal/config"
	"nmsview/internal/domain"
	"nmsview/internal/poller"
	"nmsview/internal/repository"
	"nmsview/internal/repository/sqlite"
	"nmsview/internal/seed"
	"nmsview/internal/service"
	"nmsview/internal/source/httpapi"
	"nmsview/internal/watcher"
)

// App holds the running services
type App struct {
	Config    *config.Config
	Source    domain.Source
	Store     repository.Repository // nil unless source.kind is sqlite
	EventBus  *service.EventBus
	Scheduler *poller.Scheduler
	Dashboard *service.DashboardService
	Monitor   *service.MonitorService

	log zerolog.Logger
}

// New builds the source and services described by cfg. Nothing polls until
// Start is called.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		EventBus: service.NewEventBus(),
		log:      log,
	}

	switch cfg.Source.Kind {
	case config.SourceSQLite:
		opts := []sqlite.Option{sqlite.WithLogger(component(log, "store"))}
		if cfg.Store.SecretKey != "" {
			opts = append(opts, sqlite.WithSecretKey(cfg.Store.SecretKey))
		}
		repo, err := sqlite.New(cfg.Store.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.Store = repo
		a.Source = repo
		log.Info().Str("path", cfg.Store.Path).Msg("Using local store")

	case config.SourceHTTP:
		client, err := httpapi.New(httpapi.Config{
			BaseURL: cfg.Source.BaseURL,
			Timeout: cfg.Source.Timeout.Duration(),
			Logger:  component(log, "source"),
		})
		if err != nil {
			return nil, fmt.Errorf("create api client: %w", err)
		}
		a.Source = client
		log.Info().Str("base_url", cfg.Source.BaseURL).Msg("Using collaborator API")

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}

	a.Scheduler = poller.NewScheduler(component(log, "poller"))

	dashboard, err := service.NewDashboardService(a.Source, a.EventBus, a.Scheduler, nil, service.DashboardConfig{
		Interval: cfg.Polling.DashboardInterval.Duration(),
		Timeout:  cfg.Polling.FetchTimeout.Duration(),
	}, component(log, "dashboard"))
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.Dashboard = dashboard

	a.Monitor = service.NewMonitorService(a.Source, a.EventBus, a.Scheduler, nil, service.MonitorConfig{
		Interval: cfg.Polling.MetricsInterval.Duration(),
		Timeout:  cfg.Polling.FetchTimeout.Duration(),
		Window:   cfg.WindowConfig(),
		Series:   cfg.SeriesOptions(),
	}, component(log, "monitor"))

	// deleting an object ends its monitor session
	a.Dashboard.OnObjectDeleted(a.Monitor.Forget)

	return a, nil
}

// Start applies the seed, starts the pollers and, when configured, watches
// the seed file. It returns once polling has started.
func (a *App) Start(ctx context.Context) error {
	if a.Store != nil && a.Config.Store.Seed != "" {
		if err := a.ApplySeed(ctx); err != nil {
			return err
		}
		if a.Config.Store.WatchSeed {
			w := watcher.New(a.Config.Store.Seed, func() {
				if err := a.ApplySeed(ctx); err != nil {
					a.log.Error().Err(err).Msg("Seed reload failed")
					return
				}
				if err := a.Dashboard.Refresh(ctx); err != nil {
					a.log.Warn().Err(err).Msg("Refresh after seed reload failed")
				}
			}, component(a.log, "watcher"))
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.log.Error().Err(err).Msg("Seed watcher stopped")
				}
			}()
		}
	}

	return a.Scheduler.Start(ctx)
}

// ApplySeed loads the configured seed file into the local store and trims
// stored history to the window retention.
func (a *App) ApplySeed(ctx context.Context) error {
	if a.Store == nil {
		return fmt.Errorf("seed: %w", domain.ErrUnsupported)
	}
	y, err := seed.LoadYAML(a.Config.Store.Seed)
	if err != nil {
		return err
	}
	sum, err := seed.Apply(ctx, a.Store, y, time.Now(), component(a.log, "seed"))
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}

	objects, err := a.Store.ListManagedObjects(ctx)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	var pruned int64
	for _, o := range objects {
		n, err := a.Store.PruneSnapshots(ctx, o.ID, a.Config.Series.Retention)
		if err != nil {
			return fmt.Errorf("prune snapshots of object %d: %w", o.ID, err)
		}
		pruned += n
	}

	a.log.Info().
		Str("path", a.Config.Store.Seed).
		Int("credentials", sum.Credentials).
		Int("discoveries", sum.Discoveries).
		Int("objects", sum.Objects).
		Int("snapshots", sum.Snapshots).
		Int64("pruned", pruned).
		Msg("Applied seed")
	return nil
}

// ExportSeed renders the local store as seed YAML without passwords
func (a *App) ExportSeed(ctx context.Context) ([]byte, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("export seed: %w", domain.ErrUnsupported)
	}
	creds, err := a.Store.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	discoveries, err := a.Store.ListDiscoveries(ctx)
	if err != nil {
		return nil, err
	}
	objects, err := a.Store.ListManagedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return seed.ExportYAML(creds, discoveries, objects)
}

// Close stops polling and releases the store
func (a *App) Close() error {
	a.Monitor.CloseAll()
	a.Scheduler.Stop()
	return a.closeStore()
}

func (a *App) closeStore() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
