package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidrapanel/pkg/contracts/domain"
)

func TestRoundRatio(t *testing.T) {
	tests := []struct {
		name       string
		population float64
		count      int64
		want       float64
	}{
		{name: "half rounds up", population: 1005, count: 1000, want: 1.01},
		{name: "half rounds up again", population: 2675, count: 1000, want: 2.68},
		{name: "exact", population: 50000, count: 100, want: 500},
		{name: "thirds down", population: 1, count: 3, want: 0.33},
		{name: "thirds up", population: 2, count: 3, want: 0.67},
		{name: "negative count", population: 1005, count: -1000, want: -1.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundRatio(tt.population, tt.count))
		})
	}
}

func TestParseBusinessCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "120", want: 120},
		{in: " 42 ", want: 42},
		{in: "-", want: 0},
		{in: "120.0", want: 120},
		{in: "0", want: 0},
		{in: "1.5", wantErr: true},
		{in: "X", wantErr: true},
		{in: "..", wantErr: true},
		{in: "...", wantErr: true},
		{in: "", wantErr: true},
		{in: "NaN", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBusinessCount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterPopulation(t *testing.T) {
	opts := testOptions("Acre", "São Paulo")
	records := []domain.RawPopulationRecord{
		popRecord("Acre", 37, "Ambos", nil),
		popRecord("Acre", 38, "Ambos", nil),
		popRecord("Acre", 58, "Ambos", nil),
		popRecord("Acre", 59, "Ambos", nil),
		popRecord("Acre", 40, "Homens", nil),
		popRecord("Acre", -1, "Ambos", nil),
		popRecord("Brasil", 40, "Ambos", nil),
		popRecord("São Paulo", 40, "Ambos", nil),
	}

	got := FilterPopulation(records, opts)

	require.Len(t, got, 3)
	assert.Equal(t, 38, got[0].Age)
	assert.Equal(t, 58, got[1].Age)
	assert.Equal(t, "São Paulo", got[2].Local, "decomposed locals are normalized")
}

// Recomputing the band sum from raw rows must match every aggregated value.
func TestAggregatePopulationMatchesRawSums(t *testing.T) {
	_, pop := syntheticSources()
	opts := testOptions()

	points := AggregatePopulation(FilterPopulation(pop.Records, opts), pop.YearColumns, opts)
	require.NotEmpty(t, points)

	for _, p := range points {
		var want float64
		for _, r := range pop.Records {
			if r.Local == p.Local && r.Sex == "Ambos" && r.Age >= 38 && r.Age <= 58 {
				want += r.Values[p.Year.Int()]
			}
		}
		assert.Equal(t, want, p.Population, "%s %s", p.Local, p.Year)
	}
}

func TestAggregatePopulationYearWindow(t *testing.T) {
	_, pop := syntheticSources()
	opts := testOptions()

	points := AggregatePopulation(FilterPopulation(pop.Records, opts), pop.YearColumns, opts)

	years := map[domain.Year]bool{}
	for _, p := range points {
		years[p.Year] = true
	}
	assert.False(t, years[2006], "before the window")
	assert.False(t, years[2021], "after the window")
	assert.True(t, years[2007])
	assert.True(t, years[2012])
	assert.Len(t, years, 6)

	assert.Equal(t, "Acre", points[0].Local)
	assert.Equal(t, domain.Year(2007), points[0].Year)
}

func TestAggregatePopulationMissingCellCountsAsZero(t *testing.T) {
	opts := testOptions()
	records := []domain.RawPopulationRecord{
		popRecord("Acre", 40, "Ambos", map[int]float64{2010: 10}),
		popRecord("Acre", 41, "Ambos", map[int]float64{2010: 5, 2011: 7}),
	}

	points := AggregatePopulation(FilterPopulation(records, opts), []int{2010, 2011, 2011}, opts)

	assert.Equal(t, []domain.PopulationPoint{
		{Local: "Acre", Year: 2010, Population: 15},
		{Local: "Acre", Year: 2011, Population: 7},
	}, points)
}

func TestCompareKeys(t *testing.T) {
	econ := domain.EconomicTable{
		{FederativeUnit: "Acre"},
		{FederativeUnit: "Acre"},
		{FederativeUnit: "Bahia"},
		{FederativeUnit: "Amapá"},
	}
	pop := []domain.PopulationPoint{
		{Local: "Acre", Year: 2010},
		{Local: "Pará", Year: 2010},
	}

	got := CompareKeys(econ, pop)
	assert.Equal(t, []string{"Amapá", "Bahia"}, got.OnlyInEconomic)
	assert.Equal(t, []string{"Pará"}, got.OnlyInPopulation)

	empty := CompareKeys(nil, nil)
	assert.NotNil(t, empty.OnlyInEconomic)
	assert.NotNil(t, empty.OnlyInPopulation)
	assert.True(t, empty.Empty())
}

func TestJoin(t *testing.T) {
	econ := []EconomicPoint{
		{Local: "Acre", Year: 2010, ActiveBusinessCount: 10},
		{Local: "Acre", Year: 2011, ActiveBusinessCount: 11},
		{Local: "Bahia", Year: 2010, ActiveBusinessCount: 20},
	}
	pop := []domain.PopulationPoint{
		{Local: "Acre", Year: 2010, Population: 100},
		{Local: "Acre", Year: 2012, Population: 120},
	}

	joined, droppedEcon, droppedPop := Join(econ, pop)

	assert.Equal(t, []JoinedRow{{Local: "Acre", Year: 2010, Population: 100, ActiveBusinessCount: 10}}, joined)
	assert.Equal(t, 2, droppedEcon)
	assert.Equal(t, 1, droppedPop)
}

func TestDeriveRatiosKeepsOnlyPanelColumns(t *testing.T) {
	rows, sentinels := DeriveRatios([]JoinedRow{
		{Local: "Acre", Year: 2010, Population: 1005, ActiveBusinessCount: 1000},
	})

	assert.Equal(t, []domain.PanelRow{{Local: "Acre", Year: 2010, Ratio: 1.01}}, rows)
	assert.NotNil(t, sentinels)
	assert.Empty(t, sentinels)
}
