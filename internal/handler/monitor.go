package handler

import (
	"net/http"

	"nmsview/internal/metrics"
	"nmsview/internal/poller"
	"nmsview/internal/service"
)

// SummaryItem is one labelled summary field
type SummaryItem struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Group string `json:"group"`
	Value string `json:"value"`
}

// HealthResponse reports liveness and poller state
type HealthResponse struct {
	Status    string                `json:"status"`
	Dashboard poller.Stats          `json:"dashboard"`
	Sessions  []service.SessionInfo `json:"sessions"`
}

// ListSessions returns the open monitor sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.monitor.Sessions(), http.StatusOK)
}

// OpenMonitor starts polling metrics for an object
func (h *Handler) OpenMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid object ID", err.Error(), http.StatusBadRequest)
		return
	}

	opened, err := h.monitor.Open(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to open monitor", err)
		return
	}

	status := http.StatusOK
	if opened {
		status = http.StatusCreated
	}
	h.writeJSON(w, map[string]any{"object_id": id, "opened": opened}, status)
}

// CloseMonitor stops polling metrics for an object
func (h *Handler) CloseMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid object ID", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.monitor.Close(id); err != nil {
		h.writeServiceError(w, "Failed to close monitor", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSeries returns the six chart series of a monitored object
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid object ID", err.Error(), http.StatusBadRequest)
		return
	}

	series, err := h.monitor.Series(id)
	if err != nil {
		h.writeServiceError(w, "Failed to get series", err)
		return
	}

	h.writeJSON(w, series, http.StatusOK)
}

// GetSummary returns the labelled summary fields in display order
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid object ID", err.Error(), http.StatusBadRequest)
		return
	}

	values, err := h.monitor.Summary(id)
	if err != nil {
		h.writeServiceError(w, "Failed to get summary", err)
		return
	}

	items := make([]SummaryItem, 0, len(metrics.SummaryLayout))
	for _, f := range metrics.SummaryLayout {
		items = append(items, SummaryItem{
			Key:   f.Key,
			Label: f.Label,
			Group: f.Group,
			Value: values[f.Key],
		})
	}
	h.writeJSON(w, items, http.StatusOK)
}

// Health reports liveness and poller state
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, HealthResponse{
		Status:    "ok",
		Dashboard: h.dashboard.TaskStats(),
		Sessions:  h.monitor.Sessions(),
	}, http.StatusOK)
}
