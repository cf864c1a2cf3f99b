package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/middleware"
)

// RouterConfig carries what NewRouter wires. Tracer, Metrics and
// MetricsHandler may be nil; a zero RateLimitRPS disables rate limiting.
type RouterConfig struct {
	Store          *Store
	Logger         *slog.Logger
	Tracer         trace.Tracer
	Metrics        *infrastructure.PipelineMetrics
	MetricsHandler http.Handler
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the API router
func NewRouter(cfg RouterConfig) http.Handler {
	logger := infrastructure.LoggerOrDefault(cfg.Logger)
	store := cfg.Store
	if store == nil {
		store = NewStore()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewTelemetry(cfg.Tracer, cfg.Metrics, logger).Handler)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, burst, logger).Handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RenderError(w, r, apperrors.NotFoundError(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RenderError(w, r, apperrors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed"))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	health := NewHealthHandler(store, logger)
	panel := NewPanelHandler(store, logger)
	results := NewAnalysisHandler(store, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", health.HealthCheck)
		r.Get("/runs/latest", health.LatestRun)
		r.Mount("/panel", panel.Routes())
		r.Get("/diagnostics", panel.GetDiagnostics)
		r.Get("/forecasts", results.GetForecasts)
		r.Get("/clusters", results.GetClusters)
	})

	return r
}
