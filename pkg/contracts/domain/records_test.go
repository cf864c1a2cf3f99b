package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEconomicTableIsNull(t *testing.T) {
	table := EconomicTable{
		{FederativeUnit: "Acre", Year: "2010", ActiveBusinessCount: "100"},
		{FederativeUnit: " ", Year: "2010", ActiveBusinessCount: ""},
	}

	assert.Equal(t, []string{"federative_unit", "year", "active_business_count"}, table.Columns())
	assert.Equal(t, 2, table.Len())

	assert.False(t, table.IsNull(0, 0))
	assert.False(t, table.IsNull(0, 2))
	assert.True(t, table.IsNull(1, 0))
	assert.False(t, table.IsNull(1, 1))
	assert.True(t, table.IsNull(1, 2))
	assert.True(t, table.IsNull(5, 0))
	assert.True(t, table.IsNull(0, 9))
}

func TestPopulationTableIsNull(t *testing.T) {
	table := PopulationTable{
		YearColumns: []int{2010, 2011},
		Records: []RawPopulationRecord{
			{Local: "Acre", Age: 40, AgeLabel: "40", Sex: "Ambos", Values: map[int]float64{2010: 10}},
		},
	}

	assert.Equal(t, []string{"local", "age", "sex", "2010", "2011"}, table.Columns())
	assert.False(t, table.IsNull(0, 0))
	assert.False(t, table.IsNull(0, 3))
	assert.True(t, table.IsNull(0, 4))
	assert.True(t, table.IsNull(0, 5))
	assert.True(t, table.IsNull(0, -1))
	assert.True(t, table.IsNull(1, 0))
}
