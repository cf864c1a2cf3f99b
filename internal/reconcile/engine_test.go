package reconcile

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/exporter"
	"sidrapanel/internal/shared/testutil"
	"sidrapanel/pkg/contracts/domain"
)

func testOptions(states ...string) Options {
	opts := DefaultOptions()
	if len(states) > 0 {
		opts.AllowedStates = states
	}
	return opts
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	logger, _ := testutil.NewTestLogger(t)
	return NewEngine(opts, logger, nil)
}

func popRecord(local string, age int, sex string, values map[int]float64) domain.RawPopulationRecord {
	return domain.RawPopulationRecord{Local: local, Age: age, Sex: sex, Values: values}
}

// scenarioPopulation aggregates to São Paulo 2010 = 50000 and Acre 2010 = 500
func scenarioPopulation() domain.PopulationTable {
	return domain.PopulationTable{
		YearColumns: []int{2010},
		Records: []domain.RawPopulationRecord{
			popRecord("São Paulo", 40, "Ambos", map[int]float64{2010: 30000}),
			popRecord("São Paulo", 58, "Ambos", map[int]float64{2010: 20000}),
			popRecord("São Paulo", 40, "Homens", map[int]float64{2010: 15000}),
			popRecord("São Paulo", 37, "Ambos", map[int]float64{2010: 99999}),
			popRecord("Acre", 38, "Ambos", map[int]float64{2010: 500}),
			popRecord("Acre", 59, "Ambos", map[int]float64{2010: 77}),
			popRecord("Brasil", 40, "Ambos", map[int]float64{2010: 1e6}),
		},
	}
}

func TestReconcileScenarioSaoPauloAcre(t *testing.T) {
	econ := domain.EconomicTable{
		{FederativeUnit: "São Paulo", Year: "2010", ActiveBusinessCount: "100"},
		{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "10"},
	}

	result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), econ, scenarioPopulation())
	require.NoError(t, err)

	assert.Equal(t, []domain.PanelRow{
		{Local: "Acre", Year: 2010, Ratio: 50.0},
		{Local: "São Paulo", Year: 2010, Ratio: 500.0},
	}, result.Panel.Rows())

	assert.Equal(t, []domain.PopulationPoint{
		{Local: "Acre", Year: 2010, Population: 500},
		{Local: "São Paulo", Year: 2010, Population: 50000},
	}, result.Population)

	assert.True(t, result.Diagnostics.KeyMismatch.Empty())
	assert.Empty(t, result.Diagnostics.DivisionSentinels)
	assert.Equal(t, 2, result.Diagnostics.JoinedRows)
}

func TestReconcileKeyMismatchScenario(t *testing.T) {
	econ := domain.EconomicTable{
		{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "10"},
		{FederativeUnit: "X", Year: "2010", ActiveBusinessCount: "5"},
	}
	pop := domain.PopulationTable{
		YearColumns: []int{2010},
		Records: []domain.RawPopulationRecord{
			popRecord("Acre", 40, "Ambos", map[int]float64{2010: 100}),
			popRecord("Y", 40, "Ambos", map[int]float64{2010: 300}),
		},
	}

	result, err := newTestEngine(t, testOptions("Acre", "X", "Y")).Reconcile(context.Background(), econ, pop)
	require.NoError(t, err)

	assert.Equal(t, []string{"Acre"}, result.Panel.States())
	assert.Equal(t, []string{"X"}, result.Diagnostics.KeyMismatch.OnlyInEconomic)
	assert.Equal(t, []string{"Y"}, result.Diagnostics.KeyMismatch.OnlyInPopulation)
	assert.Equal(t, 1, result.Diagnostics.DroppedEconomicRows)
	assert.Equal(t, 1, result.Diagnostics.DroppedPopulationRows)
	assert.True(t, result.Diagnostics.HasCoverageGaps())
}

func TestReconcileZeroCountSentinel(t *testing.T) {
	econ := domain.EconomicTable{
		{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "0"},
		{FederativeUnit: "Acre", Year: "2011", ActiveBusinessCount: "-"},
		{FederativeUnit: "Acre", Year: "2012", ActiveBusinessCount: "4"},
	}
	pop := domain.PopulationTable{
		YearColumns: []int{2010, 2011, 2012},
		Records: []domain.RawPopulationRecord{
			popRecord("Acre", 40, "Ambos", map[int]float64{2010: 100, 2012: 10}),
		},
	}

	logger, logs := testutil.NewTestLogger(t)
	result, err := NewEngine(testOptions(), logger, nil).Reconcile(context.Background(), econ, pop)
	require.NoError(t, err)

	rows := result.Panel.Rows()
	require.Len(t, rows, 3)
	assert.True(t, math.IsInf(rows[0].Ratio, 1))
	assert.True(t, rows[0].IsSentinel())
	assert.True(t, math.IsNaN(rows[1].Ratio), "zero population over zero count")
	assert.Equal(t, 2.5, rows[2].Ratio)

	require.Len(t, result.Diagnostics.DivisionSentinels, 2)
	assert.Equal(t, domain.DivisionSentinel{Local: "Acre", Year: 2010, Population: 100}, result.Diagnostics.DivisionSentinels[0])
	assert.Equal(t, 1, result.Panel.Finite().Len())
	assert.True(t, logs.ContainsMessage("Zero business count"))
}

func TestReconcileTypeCoercion(t *testing.T) {
	tests := []struct {
		name  string
		count string
		year  string
	}{
		{name: "suppressed value", count: "X", year: "2010"},
		{name: "not available", count: "...", year: "2010"},
		{name: "not applicable", count: "..", year: "2010"},
		{name: "text", count: "abc", year: "2010"},
		{name: "fractional", count: "1.5", year: "2010"},
		{name: "blank", count: "", year: "2010"},
		{name: "bad year", count: "10", year: "twenty ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			econ := domain.EconomicTable{{FederativeUnit: "Acre", Year: tt.year, ActiveBusinessCount: tt.count}}
			result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), econ, scenarioPopulation())
			require.Error(t, err)
			assert.Nil(t, result, "no partial panel on fatal error")
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTypeCoercion))
		})
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), nil, domain.PopulationTable{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Panel.Len())
	assert.Empty(t, result.Population)
	assert.True(t, result.Diagnostics.KeyMismatch.Empty())
}

func TestReconcileNoRowsInAgeBand(t *testing.T) {
	pop := domain.PopulationTable{
		YearColumns: []int{2010},
		Records:     []domain.RawPopulationRecord{popRecord("Acre", 10, "Ambos", map[int]float64{2010: 5})},
	}
	econ := domain.EconomicTable{{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "1"}}

	result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), econ, pop)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Panel.Len())
	assert.Equal(t, []string{"Acre"}, result.Diagnostics.KeyMismatch.OnlyInEconomic)
}

func TestReconcileNormalizesKeysAndYears(t *testing.T) {
	econ := domain.EconomicTable{
		{FederativeUnit: "São Paulo ", Year: "2010-01-01", ActiveBusinessCount: "100.0"},
	}

	result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), econ, scenarioPopulation())
	require.NoError(t, err)

	require.Equal(t, 1, result.Panel.Len())
	assert.Equal(t, "São Paulo", result.Panel.At(0).Local)
	assert.Equal(t, domain.Year(2010), result.Panel.At(0).Year)
	assert.Equal(t, 500.0, result.Panel.At(0).Ratio)
}

func TestReconcileIsIdempotent(t *testing.T) {
	econ, pop := syntheticSources()
	engine := newTestEngine(t, testOptions())

	encode := func() []byte {
		result, err := engine.Reconcile(context.Background(), econ, pop)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, exporter.EncodePanelCSV(&buf, result.Panel))
		return buf.Bytes()
	}

	first := encode()
	second := encode()
	assert.NotEmpty(t, first)
	assert.True(t, bytes.Equal(first, second), "two runs must produce byte-identical CSV")
}

func TestReconcileOutputStatesAreInBothSources(t *testing.T) {
	econ, pop := syntheticSources()
	econ = append(econ, domain.RawEconomicRecord{FederativeUnit: "Tocantins", Year: "2010", ActiveBusinessCount: "7"})

	result, err := newTestEngine(t, testOptions()).Reconcile(context.Background(), econ, pop)
	require.NoError(t, err)

	econStates := map[string]bool{}
	for _, r := range econ {
		econStates[r.FederativeUnit] = true
	}
	popStates := map[string]bool{}
	for _, p := range result.Population {
		popStates[p.Local] = true
	}

	for _, s := range result.Panel.States() {
		assert.True(t, econStates[s] && popStates[s], "state %s must be in both sources", s)
	}
	assert.NotContains(t, result.Panel.States(), "Tocantins")
	assert.Contains(t, result.Diagnostics.KeyMismatch.OnlyInEconomic, "Tocantins")
}

func TestReconcileHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(t, testOptions()).Reconcile(ctx, nil, domain.PopulationTable{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineOptionsAreCopied(t *testing.T) {
	states := []string{"Acre"}
	engine := newTestEngine(t, testOptions(states...))
	states[0] = "changed"

	opts := engine.Options()
	assert.Equal(t, []string{"Acre"}, opts.AllowedStates)
	opts.AllowedStates[0] = "again"
	assert.Equal(t, []string{"Acre"}, engine.Options().AllowedStates)
}

// syntheticSources builds three states over 2007..2012 with every age and
// all three sex categories
func syntheticSources() (domain.EconomicTable, domain.PopulationTable) {
	states := []string{"Bahia", "Acre", "Pará"}
	years := []int{2006, 2007, 2008, 2009, 2010, 2011, 2012, 2021}

	pop := domain.PopulationTable{YearColumns: years}
	for si, s := range states {
		for age := 30; age <= 65; age++ {
			for xi, sex := range []string{"Ambos", "Homens", "Mulheres"} {
				values := map[int]float64{}
				for _, y := range years {
					values[y] = float64((si+1)*1000 + age*10 + (y-2000)*3 + xi)
				}
				pop.Records = append(pop.Records, popRecord(s, age, sex, values))
			}
		}
	}

	var econ domain.EconomicTable
	for si, s := range states {
		for y := 2007; y <= 2012; y++ {
			econ = append(econ, domain.RawEconomicRecord{
				FederativeUnit:      s,
				Year:                domain.Year(y).String(),
				ActiveBusinessCount: domain.Year(300 + si*7 + y%5).String(),
			})
		}
	}
	return econ, pop
}
