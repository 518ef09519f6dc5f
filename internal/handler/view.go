package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nmsview/internal/domain"
)

// refreshTimeout bounds a background refresh started by RefreshView
const refreshTimeout = 30 * time.Second

// GetView returns the merged view of discoveries and managed objects
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dashboard.MergedView(), http.StatusOK)
}

// RefreshView triggers an immediate dashboard poll. With ?wait=true the
// response is the refreshed view.
func (h *Handler) RefreshView(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		if err := h.dashboard.Refresh(r.Context()); err != nil {
			h.writeServiceError(w, "Failed to refresh view", err)
			return
		}
		h.writeJSON(w, h.dashboard.MergedView(), http.StatusOK)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := h.dashboard.Refresh(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Background refresh failed")
		}
	}()

	h.writeJSON(w, map[string]string{"status": "refresh_triggered"}, http.StatusAccepted)
}

// Provision promotes a completed discovery into a managed object
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.dashboard.Provision(r.Context(), req); err != nil {
		h.writeServiceError(w, "Failed to provision object", err)
		return
	}

	h.log.Info().Str("ip", req.IP).Int64("poll_interval_ms", req.PollIntervalMs).Msg("Provisioned object")
	h.writeJSON(w, map[string]any{
		"status":           "provisioned",
		"ip":               req.IP,
		"poll_interval_ms": req.PollIntervalMs,
	}, http.StatusCreated)
}

// DeleteObject removes a managed object
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid object ID", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.dashboard.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to delete object", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunDiscovery asks the collaborator to execute a discovery
func (h *Handler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, "Invalid discovery ID", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.dashboard.RunDiscovery(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to run discovery", err)
		return
	}

	h.writeJSON(w, map[string]any{"status": "discovery_triggered", "discovery_id": id}, http.StatusAccepted)
}
