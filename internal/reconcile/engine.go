package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"sidrapanel/internal/config"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// Options are the reconciliation parameters. They are copied into the Engine
// and never mutated afterwards.
type Options struct {
	AllowedStates   []string
	AgeMin          int
	AgeMax          int
	YearStart       int
	YearEnd         int
	BothSexesMarker string
}

// DefaultOptions mirrors the defaults of the reconcile config section
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Reconcile)
}

// OptionsFromConfig builds Options from the reconcile config section
func OptionsFromConfig(cfg config.ReconcileConfig) Options {
	return Options{
		AllowedStates:   append([]string(nil), cfg.AllowedStates...),
		AgeMin:          cfg.AgeMin,
		AgeMax:          cfg.AgeMax,
		YearStart:       cfg.YearStart,
		YearEnd:         cfg.YearEnd,
		BothSexesMarker: cfg.BothSexesMarker,
	}
}

func (o Options) allowedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(o.AllowedStates))
	for _, s := range o.AllowedStates {
		set[textnorm.Key(s)] = struct{}{}
	}
	return set
}

// Result is the reconciled panel with the intermediate long-form population
// and the diagnostics of the run
type Result struct {
	Panel       *domain.Panel
	Population  []domain.PopulationPoint
	Diagnostics domain.Diagnostics
}

// Engine reconciles the economic and population sources into a panel
type Engine struct {
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewEngine creates an engine. metrics may be nil.
func NewEngine(opts Options, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Engine {
	opts.AllowedStates = append([]string(nil), opts.AllowedStates...)
	return &Engine{
		opts:    opts,
		logger:  infrastructure.WithComponent(logger, "reconcile"),
		metrics: metrics,
	}
}

// Options returns a copy of the engine's options
func (e *Engine) Options() Options {
	o := e.opts
	o.AllowedStates = append([]string(nil), e.opts.AllowedStates...)
	return o
}

// Reconcile runs the full reconciliation. Only type coercion failures are
// returned as errors; key mismatches and zero business counts are reported in
// the diagnostics and the run continues. Empty inputs give an empty panel.
func (e *Engine) Reconcile(ctx context.Context, econ domain.EconomicTable, pop domain.PopulationTable) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	filtered := FilterPopulation(pop.Records, e.opts)
	population := AggregatePopulation(filtered, pop.YearColumns, e.opts)

	e.logger.DebugContext(ctx, "Population aggregated",
		slog.Int("raw_records", len(pop.Records)),
		slog.Int("filtered_records", len(filtered)),
		slog.Int("points", len(population)))

	mismatch := CompareKeys(econ, population)
	if !mismatch.Empty() {
		e.logger.WarnContext(ctx, "State keys differ between sources",
			slog.Any("only_in_economic", mismatch.OnlyInEconomic),
			slog.Any("only_in_population", mismatch.OnlyInPopulation))
	}

	economic, err := ProjectEconomic(econ)
	if err != nil {
		e.logger.ErrorContext(ctx, "Economic table normalization failed", slog.String("error", err.Error()))
		return nil, err
	}

	joined, droppedEcon, droppedPop := Join(economic, population)
	rows, sentinels := DeriveRatios(joined)

	for _, s := range sentinels {
		e.logger.WarnContext(ctx, "Zero business count, ratio recorded as sentinel",
			slog.String("local", s.Local),
			slog.Int("year", s.Year.Int()),
			slog.Float64("population", s.Population))
	}

	result := &Result{
		Panel:      domain.NewPanel(rows),
		Population: population,
		Diagnostics: domain.Diagnostics{
			KeyMismatch:           mismatch,
			DivisionSentinels:     sentinels,
			EconomicRows:          len(econ),
			PopulationRows:        len(population),
			JoinedRows:            len(joined),
			DroppedEconomicRows:   droppedEcon,
			DroppedPopulationRows: droppedPop,
		},
	}

	e.record(ctx, result)

	e.logger.InfoContext(ctx, "Reconciliation complete",
		slog.Int("panel_rows", result.Panel.Len()),
		slog.Int("states", len(result.Panel.States())),
		slog.Int("dropped_economic_rows", droppedEcon),
		slog.Int("dropped_population_rows", droppedPop),
		slog.Int("division_sentinels", len(sentinels)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

func (e *Engine) record(ctx context.Context, r *Result) {
	if e.metrics == nil {
		return
	}
	d := r.Diagnostics
	e.metrics.PanelRows.Record(ctx, int64(r.Panel.Len()))
	e.metrics.KeyMismatchStates.Add(ctx, int64(len(d.KeyMismatch.OnlyInEconomic)),
		metric.WithAttributes(attribute.String("side", "economic")))
	e.metrics.KeyMismatchStates.Add(ctx, int64(len(d.KeyMismatch.OnlyInPopulation)),
		metric.WithAttributes(attribute.String("side", "population")))
	e.metrics.DivisionSentinels.Add(ctx, int64(len(d.DivisionSentinels)))
}
