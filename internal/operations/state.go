package operations

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sidrapanel/internal/analysis"
	"sidrapanel/internal/reconcile"
	"sidrapanel/internal/validation"
	"sidrapanel/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunState is the state of one pipeline run. Steps write their artifacts into
// the typed fields; once Execute returns the state is no longer written.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps     map[string]*StepState
	stepOrder []string

	Economic   domain.EconomicTable
	Population domain.PopulationTable
	Reports    []validation.Report

	// Reconciled is nil until the reconcile step succeeds
	Reconciled *reconcile.Result

	Decompositions analysis.Outcomes[analysis.Decomposition]
	Forecasts      analysis.Outcomes[analysis.Forecast]
	Clustering     *analysis.Clustering

	artifacts map[string]string
}

// NewRunState creates the state of a run
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState),
		artifacts: make(map[string]string),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// GetStatus returns the run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// Duration returns the elapsed time of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// SetStep registers the state of a Step, in execution order
func (r *RunState) SetStep(s *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[s.ID]; !ok {
		r.stepOrder = append(r.stepOrder, s.ID)
	}
	r.steps[s.ID] = s
}

// Step returns the state of a Step, or nil
func (r *RunState) Step(id string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[id]
}

// Note sets the summary message of a Step
func (r *RunState) Note(stepID, format string, args ...interface{}) {
	if s := r.Step(stepID); s != nil {
		s.SetMessage(fmt.Sprintf(format, args...))
	}
}

// StepInfos returns snapshots of every Step in execution order
func (r *RunState) StepInfos() []StepInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StepInfo, 0, len(r.stepOrder))
	for _, id := range r.stepOrder {
		out = append(out, r.steps[id].Snapshot())
	}
	return out
}

// AddArtifact records a file written by the run under a name such as
// "panel_csv" or "forecast/Acre"
func (r *RunState) AddArtifact(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[name] = path
}

// Artifact returns the path recorded under name
func (r *RunState) Artifact(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.artifacts[name]
	return p, ok
}

// ArtifactNames returns the recorded artifact names in ascending order
func (r *RunState) ArtifactNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.artifacts))
	for n := range r.artifacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Panel returns the reconciled panel, or nil before reconciliation
func (r *RunState) Panel() *domain.Panel {
	if r.Reconciled == nil {
		return nil
	}
	return r.Reconciled.Panel
}

// SkippedStates lists the states the analyses skipped
func (r *RunState) SkippedStates() []analysis.SkippedState {
	var out []analysis.SkippedState
	out = append(out, analysis.SkippedStates("decomposition", r.Decompositions)...)
	out = append(out, analysis.SkippedStates("forecast", r.Forecasts)...)
	return out
}
