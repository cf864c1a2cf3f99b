package testutil

import (
	"context"
	"fmt"

	"sidrapanel/internal/operations"
	"sidrapanel/pkg/contracts/domain"
)

// CreateSuccessfulStep creates a step that always succeeds
func CreateSuccessfulStep(id, name string, deps ...string) *MockStep {
	return &MockStep{IDValue: id, NameValue: name, DependenciesValue: deps}
}

// CreateFailingStep creates a step that always returns err
func CreateFailingStep(id, name string, err error, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(context.Context, *operations.RunState) error {
			return err
		},
	}
}

// CreateSkippingStep creates a step that asks to be skipped
func CreateSkippingStep(id, name, reason string, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(context.Context, *operations.RunState) error {
			return operations.Skip("%s", reason)
		},
	}
}

// CreateRecordingStep creates a step that appends its ID to order
func CreateRecordingStep(id string, order *[]string, deps ...string) *MockStep {
	return &MockStep{
		IDValue:           id,
		NameValue:         id,
		DependenciesValue: deps,
		ExecuteFunc: func(context.Context, *operations.RunState) error {
			*order = append(*order, id)
			return nil
		},
	}
}

// Years of the synthetic sources
var SyntheticYears = []int{2007, 2008, 2009, 2010, 2011, 2012, 2013, 2014, 2015, 2016}

// SyntheticSources builds the economic and population tables of the given
// states over SyntheticYears. Each state's ratio grows linearly, faster for
// later states, so forecasts and clusters are well defined.
func SyntheticSources(states ...string) (domain.EconomicTable, domain.PopulationTable) {
	pop := domain.PopulationTable{YearColumns: append([]int(nil), SyntheticYears...)}
	var econ domain.EconomicTable

	for si, s := range states {
		values := make(map[int]float64, len(SyntheticYears))
		for i, y := range SyntheticYears {
			// 100 businesses, so the ratio is population/100
			values[y] = float64(1000*(si+1) + 100*i*(si+1))
			econ = append(econ, domain.RawEconomicRecord{
				FederativeUnit:      s,
				Year:                fmt.Sprint(y),
				ActiveBusinessCount: "100",
			})
		}
		pop.Records = append(pop.Records, domain.RawPopulationRecord{
			Local:    s,
			Age:      40,
			AgeLabel: "40",
			Sex:      "Ambos",
			Values:   values,
		})
	}
	return econ, pop
}
