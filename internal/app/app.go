package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"sidrapanel/internal/analysis"
	"sidrapanel/internal/config"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/operations"
	transport "sidrapanel/internal/transport/http"
	"sidrapanel/pkg/contracts"
)

// AppName is the human readable application name
const AppName = "SIDRA panel"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Components    *operations.Components
	Manager       *operations.Manager
	Store         *transport.Store
	Router        http.Handler
	Server        *http.Server
}

// NewApplication wires the pipeline and the API from cfg. providers may be
// nil, in which case tracing and metrics are no-ops.
func NewApplication(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	logger = infrastructure.LoggerOrDefault(logger)

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Store:         transport.NewStore(),
	}

	if err := a.initializePipeline(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.setupRouter()
	a.createServer()

	logger.Info("Application initialized",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("output_dir", cfg.Output.Dir))

	return a, nil
}

func (a *Application) initializePipeline() error {
	a.Metrics = infrastructure.NoopPipelineMetrics()
	var managerOpts []operations.ManagerOption
	if a.OTelProviders != nil {
		m, err := infrastructure.CreatePipelineMetrics(a.OTelProviders.Meter)
		if err != nil {
			return fmt.Errorf("failed to create pipeline metrics: %w", err)
		}
		a.Metrics = m
		managerOpts = append(managerOpts, operations.WithTracer(a.OTelProviders.Tracer))
	}

	a.Components = operations.NewComponents(a.Config, a.Logger, a.Metrics)
	registry, err := operations.NewPipeline(a.Components)
	if err != nil {
		return err
	}

	managerOpts = append(managerOpts,
		operations.WithLogger(a.Logger),
		operations.WithPipelineMetrics(a.Metrics))
	a.Manager = operations.NewManager(registry, managerOpts...)
	return nil
}

func (a *Application) setupRouter() {
	rc := transport.RouterConfig{
		Store:          a.Store,
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		RateLimitRPS:   a.Config.Server.RateLimitRPS,
		RateLimitBurst: a.Config.Server.RateLimitBurst,
	}
	if a.OTelProviders != nil {
		rc.Tracer = a.OTelProviders.Tracer
		rc.MetricsHandler = a.OTelProviders.MetricsHandler
	}
	a.Router = transport.NewRouter(rc)
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// RunPipeline executes one pipeline run and publishes its snapshot, failed
// or not, to the API store. The run's error is returned unchanged.
func (a *Application) RunPipeline(ctx context.Context) (*operations.RunState, error) {
	state, err := a.Manager.Execute(ctx, "")
	a.Store.Publish(transport.NewSnapshot(state))
	return state, err
}

// PrintSummary writes the diagnostics, the cluster table and the skipped
// states of a run to w
func (a *Application) PrintSummary(w io.Writer, state *operations.RunState) {
	if state == nil || state.Reconciled == nil {
		return
	}
	analysis.PrintDiagnostics(w, state.Reconciled.Diagnostics)
	if state.Clustering != nil {
		analysis.PrintClusters(w, state.Clustering)
	}
	analysis.PrintSkipped(w, state.SkippedStates())
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "Starting server",
			slog.String("addr", a.Server.Addr),
			slog.String("version", contracts.Version))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Stop shuts the server and the telemetry providers down
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
