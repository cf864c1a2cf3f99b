package operations

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "sidrapanel/internal/errors"
)

type fetchEconomicStep struct {
	BaseStep
	c *Components
}

func (s *fetchEconomicStep) Execute(ctx context.Context, state *RunState) error {
	table, err := s.c.Economic.FetchEconomic(ctx)
	if err != nil {
		return err
	}
	state.Economic = table
	state.Note(s.ID(), "%d economic rows", len(table))
	return nil
}

type loadPopulationStep struct {
	BaseStep
	c *Components
}

func (s *loadPopulationStep) Execute(ctx context.Context, state *RunState) error {
	if s.c.Files != nil {
		if err := s.c.Files.ValidateWorkbookFile(s.c.Config.Sources.PopulationFile); err != nil {
			return err
		}
	}
	table, err := s.c.Population.Load(ctx)
	if err != nil {
		return err
	}
	state.Population = table
	state.Note(s.ID(), "%d population rows, %d year columns", table.Len(), len(table.YearColumns))
	return nil
}

// validateSourcesStep is advisory; it never fails the run
type validateSourcesStep struct {
	BaseStep
	c *Components
}

func (s *validateSourcesStep) Execute(ctx context.Context, state *RunState) error {
	state.Reports = append(state.Reports[:0],
		s.c.Validator.Validate(ctx, state.Economic, "Economic table"),
		s.c.Validator.Validate(ctx, state.Population, "Population table"),
	)

	nulls := 0
	for _, r := range state.Reports {
		nulls += r.NullCells
	}
	state.Note(s.ID(), "%d null cells", nulls)
	return nil
}

type reconcileStep struct {
	BaseStep
	c *Components
}

func (s *reconcileStep) Execute(ctx context.Context, state *RunState) error {
	result, err := s.c.Engine.Reconcile(ctx, state.Economic, state.Population)
	if err != nil {
		return err
	}
	state.Reconciled = result
	state.Note(s.ID(), "%d panel rows across %d states", result.Panel.Len(), len(result.Panel.States()))
	return nil
}

type exportPanelStep struct {
	BaseStep
	c *Components
}

func (s *exportPanelStep) Execute(ctx context.Context, state *RunState) error {
	if state.Reconciled == nil {
		return NewMissingInputError(s.ID(), "reconciled panel")
	}
	cfg := s.c.Config

	if s.c.Files != nil {
		if err := s.c.Files.ValidateOutputDirectory(cfg.Output.Dir); err != nil {
			return err
		}
	}

	panel, diag := state.Reconciled.Panel, state.Reconciled.Diagnostics

	if err := s.c.Exporter.WritePanelCSV(cfg.PanelCSVPath(), panel); err != nil {
		return err
	}
	state.AddArtifact(ArtifactPanelCSV, cfg.PanelCSVPath())

	if cfg.Output.WriteWorkbook {
		if err := s.c.Exporter.WritePanelWorkbook(cfg.PanelWorkbookPath(), panel, diag); err != nil {
			return err
		}
		state.AddArtifact(ArtifactPanelWorkbook, cfg.PanelWorkbookPath())
	}

	if err := s.c.Exporter.WriteDiagnosticsJSON(cfg.DiagnosticsPath(), diag); err != nil {
		return err
	}
	state.AddArtifact(ArtifactDiagnostics, cfg.DiagnosticsPath())

	state.Note(s.ID(), "panel written to %s", cfg.Output.Dir)
	return nil
}

type descriptiveChartStep struct {
	BaseStep
	c *Components
}

func (s *descriptiveChartStep) Execute(ctx context.Context, state *RunState) error {
	if !s.c.Config.Output.Charts {
		return Skip("charts disabled")
	}
	if state.Reconciled == nil {
		return NewMissingInputError(s.ID(), "reconciled panel")
	}

	path := s.c.Config.ChartPath("descriptive.png")
	if err := s.c.Charter.DescriptiveChart(state.Panel(), nil, path); err != nil {
		return chartSkip(ctx, s.c, s.ID(), err)
	}
	state.AddArtifact(ArtifactDescriptive, path)
	return nil
}

type stateChartsStep struct {
	BaseStep
	c *Components
}

func (s *stateChartsStep) Execute(ctx context.Context, state *RunState) error {
	if !s.c.Config.Output.Charts {
		return Skip("charts disabled")
	}
	if state.Reconciled == nil {
		return NewMissingInputError(s.ID(), "reconciled panel")
	}

	paths, err := s.c.Charter.StateCharts(state.Panel(), nil, s.c.Config.ChartPath("states"))
	addArtifacts(state, "states/", paths)
	if err != nil && len(paths) == 0 {
		return chartSkip(ctx, s.c, s.ID(), err)
	}
	state.Note(s.ID(), "%d state charts%s", len(paths), failedCharts(err))
	return nil
}

type decompositionStep struct {
	BaseStep
	c *Components
}

func (s *decompositionStep) Execute(ctx context.Context, state *RunState) error {
	if state.Reconciled == nil {
		return NewMissingInputError(s.ID(), "reconciled panel")
	}

	outcomes, err := s.c.Decomposer.DecomposeStates(ctx, state.Panel(), nil)
	if err != nil {
		return err
	}
	state.Decompositions = outcomes
	state.Note(s.ID(), "%d decomposed, %d skipped", len(outcomes.Successful()), len(outcomes.Skipped()))

	if !s.c.Config.Output.Charts {
		return nil
	}
	paths, err := s.c.Decomposer.Charts(outcomes, s.c.Config.ChartPath("decomposition"))
	addArtifacts(state, "decomposition/", paths)
	if err != nil {
		chartFailed(ctx, s.c, s.ID(), err)
		state.Note(s.ID(), "%d decomposed, %d skipped%s",
			len(outcomes.Successful()), len(outcomes.Skipped()), failedCharts(err))
	}
	return nil
}

type forecastStep struct {
	BaseStep
	c *Components
}

func (s *forecastStep) Execute(ctx context.Context, state *RunState) error {
	if state.Reconciled == nil {
		return NewMissingInputError(s.ID(), "reconciled panel")
	}

	outcomes, err := s.c.Forecaster.ForecastStates(ctx, state.Panel(), nil)
	if err != nil {
		return err
	}
	state.Forecasts = outcomes
	state.Note(s.ID(), "%d forecast, %d skipped", len(outcomes.Successful()), len(outcomes.Skipped()))

	if !s.c.Config.Output.Charts {
		return nil
	}
	paths, err := s.c.Forecaster.Charts(outcomes, s.c.Config.ChartPath("forecast"))
	addArtifacts(state, "forecast/", paths)
	if err != nil {
		chartFailed(ctx, s.c, s.ID(), err)
		state.Note(s.ID(), "%d forecast, %d skipped%s",
			len(outcomes.Successful()), len(outcomes.Skipped()), failedCharts(err))
	}
	return nil
}

// clusteringStep turns an analysis failure, such as fewer states than
// clusters, into a skip: the panel is still valid without a clustering
type clusteringStep struct {
	BaseStep
	c *Components
}

func (s *clusteringStep) Execute(ctx context.Context, state *RunState) error {
	if state.Forecasts == nil {
		return NewMissingInputError(s.ID(), "forecasts")
	}

	result, err := s.c.Clusterer.ClusterForecasts(ctx, state.Forecasts)
	if apperrors.IsType(err, apperrors.ErrTypeAnalysis) {
		s.c.logger().WarnContext(ctx, "Clustering skipped", slog.String("reason", err.Error()))
		return Skip("%s", err.Error())
	}
	if err != nil {
		return err
	}
	state.Clustering = result
	state.Note(s.ID(), "%d states in %d clusters", len(result.Assignments), len(result.Labels))

	if !s.c.Config.Output.Charts {
		return nil
	}
	path := s.c.Config.ChartPath("clusters.png")
	if err := s.c.Clusterer.Chart(result, path); err != nil {
		chartFailed(ctx, s.c, s.ID(), err)
		return nil
	}
	state.AddArtifact(ArtifactClusters, path)
	return nil
}

func addArtifacts(state *RunState, prefix string, paths map[string]string) {
	for name, p := range paths {
		state.AddArtifact(prefix+name, p)
	}
}

// Chart output never fails a run: the panel and the analysis results stand
// without their pictures.
func chartFailed(ctx context.Context, c *Components, stepID string, err error) {
	c.logger().WarnContext(ctx, "Chart output failed",
		slog.String("step", stepID),
		slog.String("error", err.Error()))
}

func chartSkip(ctx context.Context, c *Components, stepID string, err error) error {
	chartFailed(ctx, c, stepID, err)
	return Skip("chart output failed: %s", err.Error())
}

// failedCharts is the note suffix counting the joined chart errors in err
func failedCharts(err error) string {
	if err == nil {
		return ""
	}
	n := 1
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		n = len(joined.Unwrap())
	}
	return fmt.Sprintf(", %d charts failed", n)
}
