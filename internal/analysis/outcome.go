package analysis

import (
	"sort"

	"sidrapanel/pkg/contracts/domain"
)

// Outcome is the per-state result of an analysis that may skip individual
// states. Exactly one of Value or Reason is meaningful.
type Outcome[T any] struct {
	State   string `json:"state"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Value   T      `json:"value,omitempty"`
}

// Succeeded wraps a computed value
func Succeeded[T any](state string, v T) Outcome[T] {
	return Outcome[T]{State: state, Value: v}
}

// Skip records why a state produced no value
func Skip[T any](state, reason string) Outcome[T] {
	return Outcome[T]{State: state, Skipped: true, Reason: reason}
}

// Outcomes maps a state to its outcome
type Outcomes[T any] map[string]Outcome[T]

// States returns the keys in ascending order
func (o Outcomes[T]) States() []string {
	states := make([]string, 0, len(o))
	for s := range o {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Successful returns the values of the non-skipped outcomes in state order
func (o Outcomes[T]) Successful() []T {
	var out []T
	for _, s := range o.States() {
		if !o[s].Skipped {
			out = append(out, o[s].Value)
		}
	}
	return out
}

// Skipped returns the skipped outcomes in state order
func (o Outcomes[T]) Skipped() []Outcome[T] {
	var out []Outcome[T]
	for _, s := range o.States() {
		if o[s].Skipped {
			out = append(out, o[s])
		}
	}
	return out
}

// finiteSeries returns the finite year-ordered series of every requested
// state. A nil universe means every state of the panel.
func finiteSeries(panel *domain.Panel, universe []string) (states []string, series map[string][]domain.PanelRow) {
	finite := panel.Finite()
	if universe == nil {
		universe = panel.States()
	}

	states = append([]string(nil), universe...)
	sort.Strings(states)

	series = make(map[string][]domain.PanelRow, len(states))
	for _, s := range states {
		series[s] = finite.Series(s)
	}
	return states, series
}

func seriesValues(rows []domain.PanelRow) (years, ratios []float64) {
	years = make([]float64, len(rows))
	ratios = make([]float64, len(rows))
	for i, r := range rows {
		years[i] = float64(r.Year.Int())
		ratios[i] = r.Ratio
	}
	return years, ratios
}
