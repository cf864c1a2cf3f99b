package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/operations"
	"sidrapanel/pkg/contracts"
)

// Health statuses
const (
	HealthOK       = "ok"
	HealthStarting = "starting"
	HealthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status  string                `json:"status"`
	Version contracts.VersionInfo `json:"version"`
	RunID   string                `json:"run_id,omitempty"`
	Run     operations.RunStatus  `json:"run_status,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	store  *Store
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: infrastructure.WithComponent(logger, "health_handler"),
	}
}

// HealthCheck handles GET /api/health. The server is healthy once a run has
// been published and degraded when that run failed; it always answers 200.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: HealthStarting, Version: contracts.GetVersionInfo()}

	if snap := h.store.Current(); snap != nil {
		resp.RunID = snap.RunID
		resp.Run = snap.Status
		resp.Status = HealthOK
		if snap.Status != operations.RunStatusCompleted {
			resp.Status = HealthDegraded
		}
	}
	render.JSON(w, r, resp)
}

// LatestRun handles GET /api/runs/latest
func (h *HealthHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	snap, ok := requireSnapshot(w, r, h.store)
	if !ok {
		return
	}
	render.JSON(w, r, snap)
}
