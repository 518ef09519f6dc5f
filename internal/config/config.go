// Package config provides configuration management for nmsview.
//
// Config file locations (priority order):
//  1. $NMSVIEW_CONFIG
//  2. ./nmsview.yaml
//  3. $XDG_CONFIG_HOME/nmsview/config.yaml
//  4. ~/.config/nmsview/config.yaml
//  5. /etc/nmsview/config.yaml
//
// Missing values are filled with defaults after parsing; command line flags
// override file values in cmd/.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nmsview/internal/metrics"
)

// Defaults
const (
	DefaultAddr              = ":3000"
	DefaultBaseURL           = "http://localhost:8080"
	DefaultSourceTimeout     = 10 * time.Second
	DefaultStorePath         = "./nmsview.db"
	DefaultDashboardInterval = 5 * time.Second
	DefaultMetricsInterval   = 2 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes YAML config and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceHTTP
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(DefaultSourceTimeout)
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Polling.DashboardInterval == 0 {
		c.Polling.DashboardInterval = Duration(DefaultDashboardInterval)
	}
	if c.Polling.MetricsInterval == 0 {
		c.Polling.MetricsInterval = Duration(DefaultMetricsInterval)
	}
	if c.Series.Retention <= 0 {
		c.Series.Retention = metrics.DefaultRetention
	}
	if c.Series.LabelFormat == "" {
		c.Series.LabelFormat = string(metrics.Label12h)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects settings that cannot run
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceHTTP:
		u, err := url.Parse(c.Source.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("source.base_url %q must be an http(s) URL", c.Source.BaseURL))
		}
	case SourceSQLite:
	default:
		errs = append(errs, fmt.Errorf("source.kind %q must be http or sqlite", c.Source.Kind))
	}

	if c.Polling.DashboardInterval < 0 || c.Polling.MetricsInterval < 0 {
		errs = append(errs, errors.New("polling intervals must be positive"))
	}
	if c.Series.MaxAge < 0 {
		errs = append(errs, errors.New("series.max_age must not be negative"))
	}
	if f := c.Series.LabelFormat; f != string(metrics.Label12h) && f != string(metrics.Label24h) {
		errs = append(errs, fmt.Errorf("series.label_format %q must be 12h or 24h", f))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location returns the configured label time zone, defaulting to local time
func (c *Config) Location() (*time.Location, error) {
	if c.Series.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Series.Timezone)
	if err != nil {
		return nil, fmt.Errorf("series.timezone: %w", err)
	}
	return loc, nil
}

// WindowConfig returns the metrics window settings
func (c *Config) WindowConfig() metrics.WindowConfig {
	return metrics.WindowConfig{
		Retention: c.Series.Retention,
		MaxAge:    c.Series.MaxAge.Duration(),
	}
}

// SeriesOptions returns the chart label settings
func (c *Config) SeriesOptions() metrics.SeriesOptions {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	return metrics.SeriesOptions{
		LabelFormat: metrics.ParseLabelFormat(c.Series.LabelFormat),
		Location:    loc,
	}
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Source: %s", c.Source.Kind)
	if c.Source.Kind == SourceHTTP {
		summary += fmt.Sprintf(" (%s)", c.Source.BaseURL)
	} else {
		summary += fmt.Sprintf(" (%s)", c.Store.Path)
	}
	summary += fmt.Sprintf("\nPolling: dashboard %s, metrics %s\n",
		c.Polling.DashboardInterval.Duration(), c.Polling.MetricsInterval.Duration())
	summary += fmt.Sprintf("Series: retention %d, labels %s", c.Series.Retention, c.Series.LabelFormat)
	if c.Series.MaxAge > 0 {
		summary += fmt.Sprintf(", max age %s", c.Series.MaxAge.Duration())
	}

	return summary
}
