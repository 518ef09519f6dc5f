// Package httpapi implements the collaborator contracts over the dashboard
// backend's REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nmsview/internal/domain"
	"nmsview/internal/metrics"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 2048
)

// Config controls how the API client behaves.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	HTTP    *http.Client
}

// Client talks to the collaborator REST API
type Client struct {
	base   string
	client *http.Client
	log    zerolog.Logger
}

var (
	_ domain.Source           = (*Client)(nil)
	_ domain.HistorySource    = (*Client)(nil)
	_ domain.ObjectWriter     = (*Client)(nil)
	_ domain.DiscoveryRunner  = (*Client)(nil)
	_ domain.CredentialSource = (*Client)(nil)
)

// New constructs a client for the API rooted at cfg.BaseURL
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api base url is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:   strings.TrimRight(parsed.String(), "/"),
		client: httpClient,
		log:    cfg.Logger,
	}, nil
}

// ListDiscoveries fetches every discovery record
func (c *Client) ListDiscoveries(ctx context.Context) ([]domain.DiscoveryRecord, error) {
	var wire []discoveryDTO
	if err := c.do(ctx, http.MethodGet, "api/discovery/", nil, &wire); err != nil {
		return nil, domain.NewTransportError("list discoveries", err)
	}
	out := make([]domain.DiscoveryRecord, 0, len(wire))
	for _, d := range wire {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// ListManagedObjects fetches every managed object
func (c *Client) ListManagedObjects(ctx context.Context) ([]domain.ManagedObject, error) {
	var wire []objectDTO
	if err := c.do(ctx, http.MethodGet, "api/object/", nil, &wire); err != nil {
		return nil, domain.NewTransportError("list objects", err)
	}
	out := make([]domain.ManagedObject, 0, len(wire))
	for _, o := range wire {
		out = append(out, o.toDomain())
	}
	return out, nil
}

// ListCredentials fetches every stored credential
func (c *Client) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	var wire []credentialDTO
	if err := c.do(ctx, http.MethodGet, "api/credentials/", nil, &wire); err != nil {
		return nil, domain.NewTransportError("list credentials", err)
	}
	out := make([]domain.Credential, 0, len(wire))
	for _, cr := range wire {
		out = append(out, cr.toDomain())
	}
	return out, nil
}

// ListMetricSnapshots fetches the retained polling data for an object, oldest first
func (c *Client) ListMetricSnapshots(ctx context.Context, objectID int64) ([]domain.MetricSnapshot, error) {
	var raw json.RawMessage
	route := "api/object/pollingdata/" + strconv.FormatInt(objectID, 10)
	if err := c.do(ctx, http.MethodGet, route, nil, &raw); err != nil {
		return nil, domain.NewTransportError("polling data", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return []domain.MetricSnapshot{}, nil
	}
	snaps, err := metrics.DecodeRecords(raw)
	if err != nil {
		return nil, domain.NewTransportError("polling data", err)
	}
	return snaps, nil
}

// GetMetricSnapshot returns the newest polled sample for an object
func (c *Client) GetMetricSnapshot(ctx context.Context, objectID int64) (domain.MetricSnapshot, error) {
	snaps, err := c.ListMetricSnapshots(ctx, objectID)
	if err != nil {
		return domain.MetricSnapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.MetricSnapshot{}, fmt.Errorf("polling data for object %d: %w", objectID, domain.ErrNotFound)
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.Timestamp >= latest.Timestamp {
			latest = s
		}
	}
	return latest, nil
}

// Provision promotes a completed discovery into a managed object
func (c *Client) Provision(ctx context.Context, req domain.ProvisionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	body := provisionDTO{IP: req.IP, PollInterval: req.PollIntervalMs}
	if err := c.do(ctx, http.MethodPost, "api/object/provision/", body, nil); err != nil {
		return domain.NewTransportError("provision", err)
	}
	c.log.Info().Str("ip", req.IP).Int64("poll_interval_ms", req.PollIntervalMs).Msg("Provisioned object")
	return nil
}

// DeleteObject removes a managed object
func (c *Client) DeleteObject(ctx context.Context, objectID int64) error {
	route := "api/object/" + strconv.FormatInt(objectID, 10)
	if err := c.do(ctx, http.MethodDelete, route, nil, nil); err != nil {
		return domain.NewTransportError("delete object", err)
	}
	c.log.Info().Int64("object_id", objectID).Msg("Deleted object")
	return nil
}

// RunDiscovery asks the collaborator to execute a discovery
func (c *Client) RunDiscovery(ctx context.Context, discoveryID int64) error {
	body := runDiscoveryDTO{DiscoveryID: discoveryID}
	if err := c.do(ctx, http.MethodPost, "api/discovery/run", body, nil); err != nil {
		return domain.NewTransportError("run discovery", err)
	}
	c.log.Info().Int64("discovery_id", discoveryID).Msg("Discovery run requested")
	return nil
}

// StatusError is a non-2xx collaborator response
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api response status %d", e.Code)
	}
	return fmt.Sprintf("api response status %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, route string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/"+route, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Message: statusMessage(msg)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s response: %w", route, err)
	}
	return nil
}

// statusMessage extracts the collaborator's statusMsg, falling back to the raw body
func statusMessage(body []byte) string {
	var env struct {
		StatusMsg string `json:"statusMsg"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.StatusMsg != "" {
			return env.StatusMsg
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return strings.TrimSpace(string(body))
}
