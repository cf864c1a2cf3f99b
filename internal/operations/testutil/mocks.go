package testutil

import (
	"context"
	"sync"

	"sidrapanel/internal/operations"
	"sidrapanel/pkg/contracts/domain"
)

// MockStep is a configurable mock implementation of operations.Step
type MockStep struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	ExecuteFunc func(ctx context.Context, state *operations.RunState) error

	mu           sync.Mutex
	ExecuteCalls int
}

// ID returns the step ID
func (m *MockStep) ID() string {
	return m.IDValue
}

// Name returns the step name
func (m *MockStep) Name() string {
	return m.NameValue
}

// Dependencies returns the step dependencies
func (m *MockStep) Dependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs the mock execute function
func (m *MockStep) Execute(ctx context.Context, state *operations.RunState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Calls returns the number of Execute calls
func (m *MockStep) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// StaticEconomicSource returns a fixed economic table
type StaticEconomicSource struct {
	Table domain.EconomicTable
	Err   error
	Calls int
}

// FetchEconomic implements operations.EconomicSource
func (s *StaticEconomicSource) FetchEconomic(ctx context.Context) (domain.EconomicTable, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Table, ctx.Err()
}

// StaticPopulationSource returns a fixed population table
type StaticPopulationSource struct {
	Table domain.PopulationTable
	Err   error
	Calls int
}

// Load implements operations.PopulationSource
func (s *StaticPopulationSource) Load(ctx context.Context) (domain.PopulationTable, error) {
	s.Calls++
	if s.Err != nil {
		return domain.PopulationTable{}, s.Err
	}
	return s.Table, ctx.Err()
}
