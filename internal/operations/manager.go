package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sidrapanel/internal/infrastructure"
)

// Manager runs the registered steps of a pipeline
type Manager struct {
	registry *Registry
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
	logger   *slog.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithTracer sets the tracer used for run and step spans
func WithTracer(t trace.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// WithPipelineMetrics records run and step metrics on pm
func WithPipelineMetrics(pm *infrastructure.PipelineMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = pm }
}

// WithLogger sets the manager's logger
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager for registry
func NewManager(registry *Registry, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	m := &Manager{registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(infrastructure.InstrumentationName)
	}
	m.logger = infrastructure.WithComponent(m.logger, "operations")
	return m
}

// Registry returns the manager's registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Execute runs every step sequentially in dependency order. The first step
// error fails the run and no later step runs; a step returning a SkipError is
// marked skipped and the run continues. An empty runID gets a UUID. The
// returned state is complete even on failure, for inspection, but only a
// state whose Status is completed carries a publishable panel.
func (m *Manager) Execute(ctx context.Context, runID string) (*RunState, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx = infrastructure.WithRunID(ctx, runID)
	ctx = infrastructure.EnsureTraceID(ctx)

	state := NewRunState(runID)

	ctx, span := m.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	steps, err := m.registry.DependencyOrder()
	if err != nil {
		m.logger.ErrorContext(ctx, "invalid_step_graph", slog.String("error", err.Error()))
		state.Fail(err)
		infrastructure.RecordError(ctx, err)
		return state, err
	}

	for _, s := range steps {
		state.SetStep(NewStepState(s.ID(), s.Name()))
	}

	m.logger.InfoContext(ctx, "executing_pipeline",
		slog.String("run_id", runID),
		slog.Int("step_count", len(steps)))

	state.Start()
	err = m.executeSequential(ctx, state, steps)
	if err != nil {
		state.Fail(err)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		m.logger.ErrorContext(ctx, "pipeline_failed",
			slog.String("run_id", runID),
			slog.Duration("duration", state.Duration()),
			slog.String("error", err.Error()))
	} else {
		state.Complete()
		span.SetStatus(codes.Ok, "pipeline completed")
		m.logger.InfoContext(ctx, "pipeline_completed",
			slog.String("run_id", runID),
			slog.Duration("duration", state.Duration()))
	}

	infrastructure.RecordRunMetrics(ctx, m.metrics, state.Duration(), err)
	return state, err
}

func (m *Manager) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("run_id", state.ID),
				slog.String("step", s.ID()))
			state.Step(s.ID()).Skip("run cancelled")
			return NewCancellationError(s.ID(), err)
		}

		if reason, blocked := m.blockedBy(state, s); blocked {
			state.Step(s.ID()).Skip(reason)
			m.logger.InfoContext(ctx, "step_skipped",
				slog.String("run_id", state.ID),
				slog.String("step", s.ID()),
				slog.String("reason", reason))
			continue
		}

		m.logger.InfoContext(ctx, "step_started",
			slog.String("run_id", state.ID),
			slog.String("step", s.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := m.executeStep(ctx, state, s); err != nil {
			return err
		}
	}
	return nil
}

// blockedBy reports whether a dependency of s did not complete
func (m *Manager) blockedBy(state *RunState, s Step) (string, bool) {
	for _, dep := range s.Dependencies() {
		ds := state.Step(dep)
		if ds == nil || ds.GetStatus() != StepStatusCompleted {
			return fmt.Sprintf("dependency %s did not complete", dep), true
		}
	}
	return "", false
}

func (m *Manager) executeStep(ctx context.Context, state *RunState, s Step) error {
	stepState := state.Step(s.ID())

	ctx, span := m.tracer.Start(ctx, "pipeline.step."+s.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", s.ID()),
		))
	defer span.End()

	stepState.Start()
	start := time.Now()
	err := s.Execute(ctx, state)
	duration := time.Since(start)

	if skip, ok := IsSkip(err); ok {
		stepState.Skip(skip.Reason)
		span.SetAttributes(attribute.String("step.status", string(StepStatusSkipped)))
		infrastructure.RecordStepMetrics(ctx, m.metrics, state.ID, s.ID(), duration, string(StepStatusSkipped))
		m.logger.InfoContext(ctx, "step_skipped",
			slog.String("run_id", state.ID),
			slog.String("step", s.ID()),
			slog.String("reason", skip.Reason))
		return nil
	}

	if err != nil {
		stepState.Fail(err)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		infrastructure.RecordStepMetrics(ctx, m.metrics, state.ID, s.ID(), duration, string(StepStatusFailed))
		m.logger.ErrorContext(ctx, "step_failed",
			slog.String("run_id", state.ID),
			slog.String("step", s.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return NewExecutionError(s.ID(), err)
	}

	stepState.Complete()
	span.SetStatus(codes.Ok, "")
	infrastructure.RecordStepMetrics(ctx, m.metrics, state.ID, s.ID(), duration, string(StepStatusCompleted))
	m.logger.InfoContext(ctx, "step_completed",
		slog.String("run_id", state.ID),
		slog.String("step", s.ID()),
		slog.Duration("duration", duration))
	return nil
}
