package http

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/internal/validation"
	"sidrapanel/pkg/contracts/domain"
)

// PanelResponse is the body of GET /api/panel
type PanelResponse struct {
	RunID string        `json:"run_id"`
	Count int           `json:"count"`
	Rows  *domain.Panel `json:"rows"`
}

// StatesResponse is the body of GET /api/panel/states
type StatesResponse struct {
	States []string      `json:"states"`
	Years  []domain.Year `json:"years"`
}

// DiagnosticsResponse is the body of GET /api/diagnostics
type DiagnosticsResponse struct {
	domain.Diagnostics
	Coverage        *float64            `json:"coverage"`
	HasCoverageGaps bool                `json:"has_coverage_gaps"`
	Reports         []validation.Report `json:"null_reports"`
}

// PanelHandler serves the reconciled panel and its diagnostics
type PanelHandler struct {
	store  *Store
	logger *slog.Logger
}

// NewPanelHandler creates a new panel handler
func NewPanelHandler(store *Store, logger *slog.Logger) *PanelHandler {
	return &PanelHandler{
		store:  store,
		logger: infrastructure.WithComponent(logger, "panel_handler"),
	}
}

// Routes returns the panel routes
func (h *PanelHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetPanel)
	r.Get("/states", h.GetStates)
	return r
}

// GetPanel handles GET /api/panel
func (h *PanelHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	snap, ok := requirePanel(w, r, h.store)
	if !ok {
		return
	}

	q := r.URL.Query()
	panel := snap.Panel

	if raw := q.Get("finite"); raw != "" {
		finite, err := strconv.ParseBool(raw)
		if err != nil {
			apperrors.RenderError(w, r, apperrors.InvalidParameter("finite", raw, err))
			return
		}
		if finite {
			panel = panel.Finite()
		}
	}

	if raw := q.Get("year"); raw != "" {
		year, err := domain.ParseYear(raw)
		if err != nil {
			apperrors.RenderError(w, r, apperrors.InvalidParameter("year", raw, err))
			return
		}
		panel = panel.Filter(func(row domain.PanelRow) bool { return row.Year == year })
	}

	if raw := q.Get("state"); raw != "" {
		state, found := matchState(snap.Panel.States(), raw)
		if !found {
			apperrors.RenderError(w, r, apperrors.NotFoundError("state "+raw))
			return
		}
		panel = panel.Filter(func(row domain.PanelRow) bool { return row.Local == state })
	}

	h.logger.DebugContext(r.Context(), "Panel served",
		slog.String("run_id", snap.RunID),
		slog.Int("rows", panel.Len()))

	render.JSON(w, r, PanelResponse{RunID: snap.RunID, Count: panel.Len(), Rows: panel})
}

// GetStates handles GET /api/panel/states
func (h *PanelHandler) GetStates(w http.ResponseWriter, r *http.Request) {
	snap, ok := requirePanel(w, r, h.store)
	if !ok {
		return
	}
	render.JSON(w, r, StatesResponse{States: snap.Panel.States(), Years: snap.Panel.Years()})
}

// GetDiagnostics handles GET /api/diagnostics
func (h *PanelHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	snap, ok := requireSnapshot(w, r, h.store)
	if !ok {
		return
	}
	if snap.Diagnostics == nil {
		apperrors.RenderError(w, r, apperrors.NotFoundError("diagnostics"))
		return
	}

	d := *snap.Diagnostics
	var coverage *float64
	if c := d.Coverage(); !math.IsNaN(c) {
		coverage = &c
	}
	render.JSON(w, r, DiagnosticsResponse{
		Diagnostics:     d,
		Coverage:        coverage,
		HasCoverageGaps: d.HasCoverageGaps(),
		Reports:         snap.Reports,
	})
}

// matchState finds the panel state equal to raw up to case, accents and
// surrounding space
func matchState(states []string, raw string) (string, bool) {
	for _, s := range states {
		if textnorm.EqualFold(s, raw) {
			return s, true
		}
	}
	return "", false
}

func requireSnapshot(w http.ResponseWriter, r *http.Request, store *Store) (*Snapshot, bool) {
	snap := store.Current()
	if snap == nil {
		apperrors.RenderError(w, r, apperrors.NotFoundError("run"))
		return nil, false
	}
	return snap, true
}

func requirePanel(w http.ResponseWriter, r *http.Request, store *Store) (*Snapshot, bool) {
	snap, ok := requireSnapshot(w, r, store)
	if !ok {
		return nil, false
	}
	if snap.Panel == nil {
		// a typed run failure tells the client more than a bare 404
		if apperrors.TypeOf(snap.failure) != "" {
			apperrors.RenderError(w, r, apperrors.FromAppError(snap.failure))
		} else {
			apperrors.RenderError(w, r, apperrors.NotFoundError("panel"))
		}
		return nil, false
	}
	return snap, true
}
