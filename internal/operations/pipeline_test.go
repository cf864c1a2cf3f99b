package operations_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidrapanel/internal/analysis"
	"sidrapanel/internal/config"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/operations"
	"sidrapanel/internal/operations/testutil"
	sharedtest "sidrapanel/internal/shared/testutil"
	"sidrapanel/pkg/contracts/domain"
)

type pipelineFixture struct {
	cfg        *config.Config
	components *operations.Components
	economic   *testutil.StaticEconomicSource
	population *testutil.StaticPopulationSource
	logs       *sharedtest.BufferedSlogHandler
}

func newPipelineFixture(t *testing.T, states ...string) *pipelineFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()

	logger, logs := sharedtest.NewTestLogger(t)
	econ, pop := testutil.SyntheticSources(states...)

	f := &pipelineFixture{
		cfg:        cfg,
		economic:   &testutil.StaticEconomicSource{Table: econ},
		population: &testutil.StaticPopulationSource{Table: pop},
		logs:       logs,
	}
	f.components = operations.NewComponents(cfg, logger, nil)
	f.components.Economic = f.economic
	f.components.Population = f.population
	f.components.Files = nil
	return f
}

func (f *pipelineFixture) run(t *testing.T) (*operations.RunState, error) {
	t.Helper()
	registry, err := operations.NewPipeline(f.components)
	require.NoError(t, err)
	return operations.NewManager(registry, operations.WithLogger(f.components.Logger)).
		Execute(context.Background(), "pipeline-test")
}

func TestNewPipelineOrder(t *testing.T) {
	registry, err := operations.NewPipeline(newPipelineFixture(t).components)
	require.NoError(t, err)

	ordered, err := registry.DependencyOrder()
	require.NoError(t, err)
	testutil.AssertStepOrder(t, ordered,
		operations.StepIDFetchEconomic,
		operations.StepIDLoadPopulation,
		operations.StepIDValidateSources,
		operations.StepIDReconcile,
		operations.StepIDExportPanel,
		operations.StepIDDescriptiveChart,
		operations.StepIDStateCharts,
		operations.StepIDDecomposition,
		operations.StepIDForecast,
		operations.StepIDClustering,
	)
	assert.Equal(t, []string{operations.StepIDClustering}, registry.Dependents(operations.StepIDForecast))
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará", "São Paulo")

	state, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, operations.RunStatusCompleted, state.GetStatus())
	for _, info := range state.StepInfos() {
		assert.Equal(t, operations.StepStatusCompleted, info.Status, "step %s: %s", info.ID, info.Message)
	}

	panel := state.Panel()
	require.NotNil(t, panel)
	assert.Equal(t, 40, panel.Len())
	assert.Equal(t, []string{"Acre", "Bahia", "Pará", "São Paulo"}, panel.States())
	assert.Equal(t, 10.0, panel.At(0).Ratio, "Acre 2007 is 1000/100")

	assert.Len(t, state.Reports, 2)
	assert.Len(t, state.Decompositions.Successful(), 4)
	assert.Len(t, state.Forecasts.Successful(), 4)
	assert.Empty(t, state.SkippedStates())

	require.NotNil(t, state.Clustering)
	by := state.Clustering.ByLabel()
	assert.Contains(t, by[analysis.LabelOpportunity], "Acre")
	assert.Equal(t, []string{"São Paulo"}, by[analysis.LabelSaturated])

	for _, name := range []string{
		operations.ArtifactPanelCSV,
		operations.ArtifactPanelWorkbook,
		operations.ArtifactDiagnostics,
		operations.ArtifactDescriptive,
		operations.ArtifactClusters,
		"states/Acre",
		"decomposition/Bahia",
		"forecast/São Paulo",
	} {
		path, ok := state.Artifact(name)
		require.True(t, ok, "artifact %s", name)
		assert.FileExists(t, path)
	}
	assert.Equal(t, filepath.Join(f.cfg.Output.Dir, "forecast", "sao-paulo.png"), mustArtifact(t, state, "forecast/São Paulo"))

	assert.Equal(t, 1, f.economic.Calls)
	assert.Equal(t, 1, f.population.Calls)
	assert.Contains(t, state.Step(operations.StepIDReconcile).Snapshot().Message, "40 panel rows")
}

func TestPipelineChartFailuresDoNotFailRun(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará", "São Paulo")
	// a regular file where the decomposition chart directory belongs
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Output.Dir, "decomposition"), []byte("x"), 0o644))
	// a directory where the descriptive chart file belongs
	require.NoError(t, os.Mkdir(filepath.Join(f.cfg.Output.Dir, "descriptive.png"), 0o755))

	state, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, operations.RunStatusCompleted, state.GetStatus())

	testutil.AssertStepStatus(t, state, operations.StepIDDescriptiveChart, operations.StepStatusSkipped)
	testutil.AssertStepStatus(t, state, operations.StepIDDecomposition, operations.StepStatusCompleted)
	testutil.AssertStepStatus(t, state, operations.StepIDForecast, operations.StepStatusCompleted)
	testutil.AssertStepStatus(t, state, operations.StepIDClustering, operations.StepStatusCompleted)

	assert.Len(t, state.Decompositions.Successful(), 4, "results are kept without their charts")
	assert.Contains(t, state.Step(operations.StepIDDecomposition).Snapshot().Message, "4 charts failed")
	require.NotNil(t, state.Clustering)

	_, ok := state.Artifact("decomposition/Bahia")
	assert.False(t, ok)
	_, ok = state.Artifact(operations.ArtifactDescriptive)
	assert.False(t, ok)
	assert.FileExists(t, mustArtifact(t, state, "forecast/Bahia"))
	assert.FileExists(t, mustArtifact(t, state, operations.ArtifactClusters))
	assert.FileExists(t, mustArtifact(t, state, operations.ArtifactPanelCSV))
	assert.True(t, f.logs.ContainsMessage("Chart output failed"))
}

func TestPipelineChartsDisabled(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará")
	f.cfg.Output.Charts = false
	f.cfg.Output.WriteWorkbook = false

	state, err := f.run(t)
	require.NoError(t, err)

	testutil.AssertStepStatus(t, state, operations.StepIDDescriptiveChart, operations.StepStatusSkipped)
	testutil.AssertStepStatus(t, state, operations.StepIDStateCharts, operations.StepStatusSkipped)
	testutil.AssertStepStatus(t, state, operations.StepIDClustering, operations.StepStatusCompleted)

	assert.Equal(t, []string{
		operations.ArtifactDiagnostics,
		operations.ArtifactPanelCSV,
	}, state.ArtifactNames())

	_, err = os.Stat(filepath.Join(f.cfg.Output.Dir, "panel.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestPipelineTooFewStatesSkipsClustering(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia")

	state, err := f.run(t)
	require.NoError(t, err)

	assert.Equal(t, operations.RunStatusCompleted, state.GetStatus())
	testutil.AssertStepStatus(t, state, operations.StepIDForecast, operations.StepStatusCompleted)
	testutil.AssertStepStatus(t, state, operations.StepIDClustering, operations.StepStatusSkipped)
	assert.Nil(t, state.Clustering)
	assert.True(t, f.logs.ContainsMessage("Clustering skipped"))
}

func TestPipelineShortSeriesAreSkippedPerState(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará")
	f.economic.Table = append(f.economic.Table,
		domain.RawEconomicRecord{FederativeUnit: "Amapá", Year: "2010", ActiveBusinessCount: "10"})
	f.population.Table.Records = append(f.population.Table.Records, domain.RawPopulationRecord{
		Local: "Amapá", Age: 45, Sex: "Ambos", Values: map[int]float64{2010: 500},
	})

	state, err := f.run(t)
	require.NoError(t, err)

	assert.Contains(t, state.Panel().States(), "Amapá")
	skipped := state.SkippedStates()
	require.Len(t, skipped, 2)
	for _, s := range skipped {
		assert.Equal(t, "Amapá", s.State)
	}
	assert.Len(t, state.Clustering.Assignments, 3)
}

func TestPipelineTypeCoercionFailsRun(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará")
	f.economic.Table[0].ActiveBusinessCount = "X"

	state, err := f.run(t)

	testutil.AssertErrorType(t, err, operations.ErrorTypeExecution)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTypeCoercion))
	assert.Equal(t, operations.RunStatusFailed, state.GetStatus())
	assert.Nil(t, state.Panel())
	testutil.AssertStepStatus(t, state, operations.StepIDReconcile, operations.StepStatusFailed)
	testutil.AssertStepStatus(t, state, operations.StepIDExportPanel, operations.StepStatusPending)

	_, statErr := os.Stat(f.cfg.PanelCSVPath())
	assert.True(t, os.IsNotExist(statErr), "no panel is written after a failed reconciliation")
}

func TestPipelineSourceUnavailable(t *testing.T) {
	f := newPipelineFixture(t, "Acre")
	f.economic.Err = apperrors.NewSourceUnavailableError("sidra", assert.AnError)

	state, err := f.run(t)

	assert.ErrorIs(t, err, assert.AnError)
	testutil.AssertStepStatus(t, state, operations.StepIDFetchEconomic, operations.StepStatusFailed)
	assert.Equal(t, 0, f.population.Calls)
}

func TestPipelineLoadsPopulationWorkbook(t *testing.T) {
	f := newPipelineFixture(t, "Acre", "Bahia", "Pará")
	cfg := f.cfg

	rows := make([]sharedtest.PopulationRow, 0, len(f.population.Table.Records))
	for _, r := range f.population.Table.Records {
		rows = append(rows, sharedtest.PopulationRow{Age: r.AgeLabel, Sex: r.Sex, Local: r.Local, Values: r.Values})
	}
	cfg.Sources.PopulationFile = sharedtest.WritePopulationWorkbook(t, t.TempDir(), sharedtest.PopulationWorkbook{
		SkipRows: cfg.Sources.SkipRows,
		Years:    testutil.SyntheticYears,
		Rows:     rows,
	})

	economic := f.economic
	f.components = operations.NewComponents(cfg, f.components.Logger, nil)
	f.components.Economic = economic

	state, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 30, state.Panel().Len())
	assert.Equal(t, 10.0, state.Panel().At(0).Ratio)
}

func mustArtifact(t *testing.T, state *operations.RunState, name string) string {
	t.Helper()
	p, ok := state.Artifact(name)
	require.True(t, ok, "artifact %s", name)
	return p
}
