package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nmsview/internal/app"
	"nmsview/internal/config"
	"nmsview/internal/handler"
	"nmsview/internal/hub"
	"nmsview/internal/logger"
	"nmsview/internal/service"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "config file path (default: search $NMSVIEW_CONFIG, ./nmsview.yaml, XDG, /etc)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	sourceKind := flag.String("source", "", "collaborator source: http or sqlite (overrides source.kind)")
	baseURL := flag.String("base-url", "", "collaborator API base URL (overrides source.base_url)")
	dbPath := flag.String("db", "", "SQLite store path (overrides store.path)")
	seedPath := flag.String("seed", "", "YAML seed applied to the SQLite store (overrides store.seed)")
	exportSeed := flag.Bool("export-seed", false, "print the SQLite store as seed YAML and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmsview: %v\n", err)
		os.Exit(1)
	}

	// Flags override file values
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *sourceKind != "" {
		cfg.Source.Kind = config.SourceKind(*sourceKind)
	}
	if *baseURL != "" {
		cfg.Source.BaseURL = *baseURL
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *seedPath != "" {
		cfg.Store.Seed = *seedPath
	}
	if *debug {
		cfg.Logging.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "nmsview: invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "nmsview: init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("main")
	if path != "" {
		log.Info().Str("path", path).Msg("Loaded config")
	}
	log.Info().Msg(cfg.Summary())

	rt, err := app.New(cfg, logger.Get())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer rt.Close()

	if *exportSeed {
		ctx := context.Background()
		if cfg.Store.Seed != "" {
			if err := rt.ApplySeed(ctx); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply seed")
			}
		}
		out, err := rt.ExportSeed(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export seed")
		}
		os.Stdout.Write(out)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize SSE hub
	sseHub := hub.New(logger.WithComponent("hub"))
	go sseHub.Run(ctx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	rt.EventBus.Subscribe(eventChan)
	go hub.Relay[service.Event](ctx, sseHub, eventChan)

	if err := rt.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start pollers")
	}

	// Setup routes
	mux := http.NewServeMux()
	handler.New(rt.Dashboard, rt.Monitor, sseHub, logger.WithComponent("api")).Register(mux)

	// Apply middleware
	httpLog := logger.WithComponent("http")
	finalHandler := handler.Chain(mux,
		handler.Recover(httpLog),
		handler.CORS,
		handler.Logger(httpLog),
	)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     finalHandler,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /events streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop pollers and disconnect SSE clients before draining requests
	cancel()
	rt.EventBus.Unsubscribe(eventChan)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
}

// loadConfig reads an explicit path or searches the default locations
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
