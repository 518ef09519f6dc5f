package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"nmsview/internal/domain"
	"nmsview/internal/poller"
	"nmsview/internal/service"
)

// Dashboard is the merged-view service used by the handlers
type Dashboard interface {
	MergedView() service.DashboardView
	TaskStats() poller.Stats
	Refresh(ctx context.Context) error
	Provision(ctx context.Context, req domain.ProvisionRequest) error
	Delete(ctx context.Context, objectID int64) error
	RunDiscovery(ctx context.Context, discoveryID int64) error
}

// Monitor is the per-object metrics service used by the handlers
type Monitor interface {
	Open(ctx context.Context, objectID int64) (bool, error)
	Close(objectID int64) error
	Series(objectID int64) (domain.SeriesSet, error)
	Summary(objectID int64) (map[string]string, error)
	Sessions() []service.SessionInfo
}

// Handler serves the nmsview API
type Handler struct {
	dashboard Dashboard
	monitor   Monitor
	events    http.Handler
	log       zerolog.Logger
}

// New creates a new handler. events serves the SSE stream and may be nil.
func New(dashboard Dashboard, monitor Monitor, events http.Handler, log zerolog.Logger) *Handler {
	return &Handler{
		dashboard: dashboard,
		monitor:   monitor,
		events:    events,
		log:       log,
	}
}

// Register adds the API routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	// Merged view
	mux.HandleFunc("GET /api/view", h.GetView)
	mux.HandleFunc("POST /api/view/refresh", h.RefreshView)

	// Provisioning
	mux.HandleFunc("POST /api/objects/provision", h.Provision)
	mux.HandleFunc("DELETE /api/objects/{id}", h.DeleteObject)
	mux.HandleFunc("POST /api/discoveries/{id}/run", h.RunDiscovery)

	// Monitor sessions
	mux.HandleFunc("GET /api/monitor", h.ListSessions)
	mux.HandleFunc("POST /api/monitor/{id}", h.OpenMonitor)
	mux.HandleFunc("DELETE /api/monitor/{id}", h.CloseMonitor)
	mux.HandleFunc("GET /api/monitor/{id}/series", h.GetSeries)
	mux.HandleFunc("GET /api/monitor/{id}/summary", h.GetSummary)

	mux.HandleFunc("GET /api/health", h.Health)

	if h.events != nil {
		mux.Handle("GET /events", h.events)
	}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

// writeServiceError maps a service error to its HTTP status
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	}
	h.writeError(w, msg, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingIP), errors.Is(err, domain.ErrInvalidPollInterval):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotMonitored):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented
	case domain.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses the {id} wildcard as a positive integer
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
