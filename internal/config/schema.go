package config

import (
	"time"

	"nmsview/internal/logger"
)

// Config is the root configuration structure
type Config struct {
	Version int           `yaml:"version"`
	Server  ServerConfig  `yaml:"server"`
	Source  SourceConfig  `yaml:"source"`
	Store   StoreConfig   `yaml:"store"`
	Polling PollingConfig `yaml:"polling"`
	Series  SeriesConfig  `yaml:"series"`
	Logging logger.Config `yaml:"logging"`
}

// SourceKind selects the collaborator implementation
type SourceKind string

const (
	// SourceHTTP talks to the remote collaborator API
	SourceHTTP SourceKind = "http"
	// SourceSQLite uses the local store
	SourceSQLite SourceKind = "sqlite"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
}

// SourceConfig selects and configures the collaborator
type SourceConfig struct {
	Kind    SourceKind `yaml:"kind"`
	BaseURL string     `yaml:"base_url,omitempty"`
	Timeout Duration   `yaml:"timeout,omitempty"`
}

// StoreConfig holds local store settings, used when source.kind is sqlite
type StoreConfig struct {
	Path      string `yaml:"path"`
	SecretKey string `yaml:"secret_key,omitempty"` // seals stored passwords when set
	Seed      string `yaml:"seed,omitempty"`       // YAML seed applied at startup
	WatchSeed bool   `yaml:"watch_seed,omitempty"` // reapply the seed when the file changes
}

// PollingConfig holds poll periods and per-fetch timeouts
type PollingConfig struct {
	DashboardInterval Duration `yaml:"dashboard_interval"`
	MetricsInterval   Duration `yaml:"metrics_interval"`
	FetchTimeout      Duration `yaml:"fetch_timeout,omitempty"`
}

// SeriesConfig controls the metrics window and chart labels
type SeriesConfig struct {
	Retention   int      `yaml:"retention"`
	MaxAge      Duration `yaml:"max_age,omitempty"`
	LabelFormat string   `yaml:"label_format"` // 12h | 24h
	Timezone    string   `yaml:"timezone,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
