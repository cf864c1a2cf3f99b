package domain

import "math"

// KeyMismatch is the symmetric difference between the state keys of the two
// sources. The inner join silently drops every row of a state listed here.
type KeyMismatch struct {
	OnlyInEconomic   []string `json:"only_in_economic"`
	OnlyInPopulation []string `json:"only_in_population"`
}

// Empty reports whether both sources carry the same set of states
func (k KeyMismatch) Empty() bool {
	return len(k.OnlyInEconomic) == 0 && len(k.OnlyInPopulation) == 0
}

// DivisionSentinel records a (state, year) whose business count was zero.
type DivisionSentinel struct {
	Local      string  `json:"local"`
	Year       Year    `json:"year"`
	Population float64 `json:"population"`
}

// Diagnostics is the machine-readable account of what the reconciliation
// dropped or could not compute. It is returned with every panel.
type Diagnostics struct {
	KeyMismatch       KeyMismatch        `json:"key_mismatch"`
	DivisionSentinels []DivisionSentinel `json:"division_sentinels"`

	EconomicRows   int `json:"economic_rows"`
	PopulationRows int `json:"population_rows"`
	JoinedRows     int `json:"joined_rows"`

	// Rows that found no partner in the join, per side
	DroppedEconomicRows   int `json:"dropped_economic_rows"`
	DroppedPopulationRows int `json:"dropped_population_rows"`
}

// HasCoverageGaps reports whether the join dropped anything
func (d Diagnostics) HasCoverageGaps() bool {
	return !d.KeyMismatch.Empty() || d.DroppedEconomicRows > 0 || d.DroppedPopulationRows > 0
}

// Coverage returns the share of population rows that survived the join
func (d Diagnostics) Coverage() float64 {
	if d.PopulationRows == 0 {
		return math.NaN()
	}
	return float64(d.JoinedRows) / float64(d.PopulationRows)
}
