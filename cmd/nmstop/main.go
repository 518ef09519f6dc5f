package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nmsview/internal/app"
	"nmsview/internal/config"
	"nmsview/internal/logger"
	"nmsview/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	baseURL := flag.String("base-url", "", "collaborator API base URL (overrides source.base_url)")
	dbPath := flag.String("db", "", "use the SQLite store at this path instead of the API")
	seedPath := flag.String("seed", "", "YAML seed applied to the SQLite store")
	logFile := flag.String("log", "", "write logs to this file (default: discard)")
	refresh := flag.Duration("refresh", time.Second, "screen refresh interval")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, _, err = config.LoadFromPath(*configPath)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: %v\n", err)
		os.Exit(1)
	}

	if *baseURL != "" {
		cfg.Source.Kind = config.SourceHTTP
		cfg.Source.BaseURL = *baseURL
	}
	if *dbPath != "" {
		cfg.Source.Kind = config.SourceSQLite
		cfg.Store.Path = *dbPath
	}
	if *seedPath != "" {
		cfg.Store.Seed = *seedPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: invalid config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file or nowhere
	var out io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nmstop: open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := logger.InitWithWriter(cfg.Logging, out); err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: init logger: %v\n", err)
		os.Exit(1)
	}

	rt, err := app.New(cfg, logger.Get())
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: %v\n", err)
		os.Exit(1)
	}

	m := tui.New(rt.Dashboard, rt.Monitor, *refresh)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "nmstop: %v\n", err)
		os.Exit(1)
	}
}
