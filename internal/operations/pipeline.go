package operations

import (
	"log/slog"

	"sidrapanel/internal/analysis"
	"sidrapanel/internal/config"
	"sidrapanel/internal/exporter"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/reconcile"
	"sidrapanel/internal/sources"
	"sidrapanel/internal/validation"
)

// Components are the collaborators the pipeline steps call. Files may be
// nil to skip the file system checks.
type Components struct {
	Config     *config.Config
	Economic   EconomicSource
	Population PopulationSource
	Validator  *validation.Validator
	Files      *validation.FileValidator
	Engine     *reconcile.Engine
	Exporter   *exporter.PanelExporter
	Charter    *analysis.Charter
	Decomposer *analysis.Decomposer
	Forecaster *analysis.Forecaster
	Clusterer  *analysis.Clusterer
	Logger     *slog.Logger
}

// NewComponents wires the production collaborators from cfg. metrics may be
// nil.
func NewComponents(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Components {
	logger = infrastructure.LoggerOrDefault(logger)
	a := cfg.Analysis

	charter := analysis.NewCharter(a.ChartWidthCM, a.ChartHeightCM, logger)
	return &Components{
		Config:     cfg,
		Economic:   sources.NewSidraClient(cfg.Sources, logger, sources.WithMetrics(metrics)),
		Population: sources.NewPopulationLoader(cfg.Sources, logger),
		Validator:  validation.NewValidator(logger),
		Files:      validation.NewFileValidator(logger),
		Engine:     reconcile.NewEngine(reconcile.OptionsFromConfig(cfg.Reconcile), logger, metrics),
		Exporter:   exporter.NewPanelExporter("", logger),
		Charter:    charter,
		Decomposer: analysis.NewDecomposer(a.DecompositionPeriod, charter, logger, metrics),
		Forecaster: analysis.NewForecaster(a.ForecastHorizon, a.IntervalWidth, charter, logger, metrics),
		Clusterer:  analysis.NewClusterer(a.Clusters, charter, logger),
		Logger:     logger,
	}
}

func (c *Components) logger() *slog.Logger {
	return infrastructure.LoggerOrDefault(c.Logger)
}

// NewPipeline registers the pipeline steps. Both sources are fetched first,
// the analyses all read the reconciled panel and clustering reads the
// forecasts.
func NewPipeline(c *Components) (*Registry, error) {
	steps := []Step{
		&fetchEconomicStep{BaseStep: NewBaseStep(StepIDFetchEconomic, StepNameFetchEconomic), c: c},
		&loadPopulationStep{BaseStep: NewBaseStep(StepIDLoadPopulation, StepNameLoadPopulation), c: c},
		&validateSourcesStep{BaseStep: NewBaseStep(StepIDValidateSources, StepNameValidateSources,
			StepIDFetchEconomic, StepIDLoadPopulation), c: c},
		&reconcileStep{BaseStep: NewBaseStep(StepIDReconcile, StepNameReconcile, StepIDValidateSources), c: c},
		&exportPanelStep{BaseStep: NewBaseStep(StepIDExportPanel, StepNameExportPanel, StepIDReconcile), c: c},
		&descriptiveChartStep{BaseStep: NewBaseStep(StepIDDescriptiveChart, StepNameDescriptiveChart, StepIDReconcile), c: c},
		&stateChartsStep{BaseStep: NewBaseStep(StepIDStateCharts, StepNameStateCharts, StepIDReconcile), c: c},
		&decompositionStep{BaseStep: NewBaseStep(StepIDDecomposition, StepNameDecomposition, StepIDReconcile), c: c},
		&forecastStep{BaseStep: NewBaseStep(StepIDForecast, StepNameForecast, StepIDReconcile), c: c},
		&clusteringStep{BaseStep: NewBaseStep(StepIDClustering, StepNameClustering, StepIDForecast), c: c},
	}

	registry := NewRegistry()
	for _, s := range steps {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	if err := registry.ValidateDependencies(); err != nil {
		return nil, err
	}
	return registry, nil
}
