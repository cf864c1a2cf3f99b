package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"sidrapanel/internal/analysis"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
)

// ForecastsResponse is the body of GET /api/forecasts
type ForecastsResponse struct {
	RunID     string                  `json:"run_id"`
	Forecasts []analysis.Forecast     `json:"forecasts"`
	Skipped   []analysis.SkippedState `json:"skipped"`
}

// ClustersResponse is the body of GET /api/clusters
type ClustersResponse struct {
	RunID string `json:"run_id"`
	*analysis.Clustering
	ByLabel map[string][]string `json:"by_label"`
}

// AnalysisHandler serves the forecast and clustering results
type AnalysisHandler struct {
	store  *Store
	logger *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(store *Store, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		store:  store,
		logger: infrastructure.WithComponent(logger, "analysis_handler"),
	}
}

// GetForecasts handles GET /api/forecasts. ?state= narrows the result to
// one state.
func (h *AnalysisHandler) GetForecasts(w http.ResponseWriter, r *http.Request) {
	snap, ok := requirePanel(w, r, h.store)
	if !ok {
		return
	}

	forecasts := snap.Forecasts
	skipped := skippedOf(snap.Skipped, "forecast")

	if raw := r.URL.Query().Get("state"); raw != "" {
		var one []analysis.Forecast
		for _, f := range forecasts {
			if textnorm.EqualFold(f.State, raw) {
				one = append(one, f)
			}
		}
		var oneSkipped []analysis.SkippedState
		for _, s := range skipped {
			if textnorm.EqualFold(s.State, raw) {
				oneSkipped = append(oneSkipped, s)
			}
		}
		if len(one) == 0 && len(oneSkipped) == 0 {
			apperrors.RenderError(w, r, apperrors.NotFoundError("forecast for "+raw))
			return
		}
		forecasts, skipped = one, oneSkipped
	}

	if forecasts == nil {
		forecasts = []analysis.Forecast{}
	}
	if skipped == nil {
		skipped = []analysis.SkippedState{}
	}
	render.JSON(w, r, ForecastsResponse{RunID: snap.RunID, Forecasts: forecasts, Skipped: skipped})
}

// GetClusters handles GET /api/clusters
func (h *AnalysisHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	snap, ok := requireSnapshot(w, r, h.store)
	if !ok {
		return
	}
	if snap.Clustering == nil {
		h.logger.DebugContext(r.Context(), "No clustering in run", slog.String("run_id", snap.RunID))
		apperrors.RenderError(w, r, apperrors.NotFoundError("clustering"))
		return
	}
	render.JSON(w, r, ClustersResponse{
		RunID:      snap.RunID,
		Clustering: snap.Clustering,
		ByLabel:    snap.Clustering.ByLabel(),
	})
}

func skippedOf(all []analysis.SkippedState, name string) []analysis.SkippedState {
	var out []analysis.SkippedState
	for _, s := range all {
		if s.Analysis == name {
			out = append(out, s)
		}
	}
	return out
}
