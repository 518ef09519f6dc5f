// Package seed loads demo collaborator data from YAML into the local store.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"nmsview/internal/domain"
)

// defaultSampleSpacing spaces samples that carry no timestamp
const defaultSampleSpacing = 2 * time.Second

// SeedYAML represents the YAML file structure
type SeedYAML struct {
	Version     string           `yaml:"version"`
	Credentials []CredentialYAML `yaml:"credentials,omitempty"`
	Discoveries []DiscoveryYAML  `yaml:"discoveries,omitempty"`
	Objects     []ObjectYAML     `yaml:"objects,omitempty"`
	Snapshots   []SnapshotsYAML  `yaml:"snapshots,omitempty"`
}

// CredentialYAML represents a stored credential
type CredentialYAML struct {
	Name       string `yaml:"name"`
	SystemType string `yaml:"system_type,omitempty"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
}

// DiscoveryYAML represents a discovery, referencing its credential by name
type DiscoveryYAML struct {
	IP         string `yaml:"ip"`
	Port       int    `yaml:"port,omitempty"`
	Credential string `yaml:"credential,omitempty"`
	Status     string `yaml:"status,omitempty"`
}

// ObjectYAML represents an already provisioned object
type ObjectYAML struct {
	IP           string `yaml:"ip"`
	PollInterval int64  `yaml:"poll_interval_ms"`
	Credential   string `yaml:"credential,omitempty"`
	PluginEngine string `yaml:"plugin_engine,omitempty"`
}

// SnapshotsYAML represents stored samples for one object
type SnapshotsYAML struct {
	IP      string       `yaml:"ip"`
	Samples []SampleYAML `yaml:"samples"`
}

// SampleYAML represents one sample; a zero timestamp is filled at load time
type SampleYAML struct {
	Timestamp int64          `yaml:"timestamp,omitempty"`
	Counters  map[string]any `yaml:"counters"`
}

// Store is the subset of the repository the loader writes to
type Store interface {
	UpsertCredential(ctx context.Context, cred *domain.Credential) error
	UpsertDiscovery(ctx context.Context, d *domain.DiscoveryRecord) error
	UpsertObject(ctx context.Context, obj *domain.ManagedObject) error
	ListDiscoveries(ctx context.Context) ([]domain.DiscoveryRecord, error)
	AppendSnapshot(ctx context.Context, objectID int64, snap domain.MetricSnapshot) error
}

// Summary counts what Apply wrote
type Summary struct {
	Credentials int
	Discoveries int
	Objects     int
	Snapshots   int
}

// LoadYAML loads seed data from a YAML file
func LoadYAML(path string) (*SeedYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseYAML(data)
}

// ParseYAML parses seed data from YAML bytes
func ParseYAML(data []byte) (*SeedYAML, error) {
	var y SeedYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := y.validate(); err != nil {
		return nil, err
	}
	return &y, nil
}

func (y *SeedYAML) validate() error {
	names := make(map[string]bool, len(y.Credentials))
	for i, c := range y.Credentials {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("credentials[%d]: name required", i)
		}
		names[c.Name] = true
	}
	for i, d := range y.Discoveries {
		if d.IP == "" {
			return fmt.Errorf("discoveries[%d]: ip required", i)
		}
		if d.Credential != "" && !names[d.Credential] {
			return fmt.Errorf("discoveries[%d]: unknown credential %q", i, d.Credential)
		}
		if d.Status != "" && !domain.DiscoveryStatus(d.Status).Valid() {
			return fmt.Errorf("discoveries[%d]: invalid status %q", i, d.Status)
		}
	}
	objectIPs := make(map[string]bool, len(y.Objects))
	for i, o := range y.Objects {
		if o.IP == "" {
			return fmt.Errorf("objects[%d]: ip required", i)
		}
		if o.PollInterval <= 0 {
			return fmt.Errorf("objects[%d]: %w", i, domain.ErrInvalidPollInterval)
		}
		if o.Credential != "" && !names[o.Credential] {
			return fmt.Errorf("objects[%d]: unknown credential %q", i, o.Credential)
		}
		objectIPs[o.IP] = true
	}
	for i, s := range y.Snapshots {
		if !objectIPs[s.IP] {
			return fmt.Errorf("snapshots[%d]: no object with ip %s", i, s.IP)
		}
	}
	return nil
}

// Apply writes the seed into store. Samples without a timestamp are spaced
// two seconds apart ending at now.
func Apply(ctx context.Context, store Store, y *SeedYAML, now time.Time, log zerolog.Logger) (Summary, error) {
	var sum Summary

	creds := make(map[string]domain.Credential, len(y.Credentials))
	for _, c := range y.Credentials {
		cred := domain.Credential{
			Name:       c.Name,
			DeviceType: domain.ParseDeviceType(c.SystemType),
			Username:   c.Username,
			Password:   c.Password,
		}
		if err := store.UpsertCredential(ctx, &cred); err != nil {
			return sum, fmt.Errorf("credential %s: %w", c.Name, err)
		}
		creds[c.Name] = cred
		sum.Credentials++
	}

	existing, err := store.ListDiscoveries(ctx)
	if err != nil {
		return sum, fmt.Errorf("list discoveries: %w", err)
	}
	known := make(map[string]int64, len(existing))
	for _, d := range existing {
		known[d.IP] = d.ID
	}

	for _, d := range y.Discoveries {
		rec := domain.DiscoveryRecord{
			ID:     known[d.IP],
			IP:     d.IP,
			Port:   d.Port,
			Status: domain.DiscoveryStatus(d.Status),
		}
		if rec.Port == 0 {
			rec.Port = 22
		}
		if d.Credential != "" {
			rec.CredentialID = creds[d.Credential].ID
		}
		if err := store.UpsertDiscovery(ctx, &rec); err != nil {
			return sum, fmt.Errorf("discovery %s: %w", d.IP, err)
		}
		sum.Discoveries++
	}

	objectIDs := make(map[string]int64, len(y.Objects))
	for _, o := range y.Objects {
		obj := domain.ManagedObject{
			IP:             o.IP,
			PollIntervalMs: o.PollInterval,
			PluginEngine:   o.PluginEngine,
			Status:         domain.ProvisioningActive,
		}
		if c, ok := creds[o.Credential]; ok {
			obj.Username = c.Username
			obj.Password = c.Password
			obj.DeviceType = c.DeviceType
			obj.CredentialName = c.Name
		}
		if err := store.UpsertObject(ctx, &obj); err != nil {
			return sum, fmt.Errorf("object %s: %w", o.IP, err)
		}
		objectIDs[o.IP] = obj.ID
		sum.Objects++
	}

	for _, s := range y.Snapshots {
		id := objectIDs[s.IP]
		n := len(s.Samples)
		for i, sample := range s.Samples {
			ts := sample.Timestamp
			if ts == 0 {
				ts = now.Add(-time.Duration(n-1-i) * defaultSampleSpacing).UnixMilli()
			}
			snap := domain.MetricSnapshot{Timestamp: ts, Counters: domain.Counters(sample.Counters)}
			if err := store.AppendSnapshot(ctx, id, snap); err != nil {
				return sum, fmt.Errorf("snapshot for %s: %w", s.IP, err)
			}
			sum.Snapshots++
		}
	}

	log.Info().
		Int("credentials", sum.Credentials).
		Int("discoveries", sum.Discoveries).
		Int("objects", sum.Objects).
		Int("snapshots", sum.Snapshots).
		Msg("Applied seed data")

	return sum, nil
}

// ExportYAML renders the current store contents as seed YAML
func ExportYAML(creds []domain.Credential, discoveries []domain.DiscoveryRecord, objects []domain.ManagedObject) ([]byte, error) {
	y := SeedYAML{Version: "1"}
	for _, c := range creds {
		y.Credentials = append(y.Credentials, CredentialYAML{
			Name:       c.Name,
			SystemType: string(c.DeviceType),
			Username:   c.Username,
		})
	}
	for _, d := range discoveries {
		y.Discoveries = append(y.Discoveries, DiscoveryYAML{
			IP:         d.IP,
			Port:       d.Port,
			Credential: d.CredentialName,
			Status:     string(d.Status),
		})
	}
	for _, o := range objects {
		y.Objects = append(y.Objects, ObjectYAML{
			IP:           o.IP,
			PollInterval: o.PollIntervalMs,
			Credential:   o.CredentialName,
			PluginEngine: o.PluginEngine,
		})
	}
	return yaml.Marshal(&y)
}
