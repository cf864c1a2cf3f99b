package http

import (
	"sync/atomic"
	"time"

	"sidrapanel/internal/analysis"
	"sidrapanel/internal/operations"
	"sidrapanel/internal/validation"
	"sidrapanel/pkg/contracts/domain"
)

// Snapshot is the read-only view of one finished run. Only a completed run
// carries a panel; a failed run still reports its steps.
type Snapshot struct {
	RunID       string                  `json:"run_id"`
	Status      operations.RunStatus    `json:"status"`
	Error       string                  `json:"error,omitempty"`
	FinishedAt  time.Time               `json:"finished_at"`
	Steps       []operations.StepInfo   `json:"steps"`
	Artifacts   map[string]string       `json:"artifacts"`
	Skipped     []analysis.SkippedState `json:"skipped_states,omitempty"`
	Reports     []validation.Report     `json:"-"`
	Panel       *domain.Panel           `json:"-"`
	Diagnostics *domain.Diagnostics     `json:"-"`
	Forecasts   []analysis.Forecast     `json:"-"`
	Clustering  *analysis.Clustering    `json:"-"`

	failure error
}

// NewSnapshot copies what the API exposes out of a finished run
func NewSnapshot(state *operations.RunState) *Snapshot {
	s := &Snapshot{
		RunID:      state.ID,
		Status:     state.GetStatus(),
		FinishedAt: time.Now().UTC(),
		Steps:      state.StepInfos(),
		Artifacts:  make(map[string]string),
		Reports:    append([]validation.Report(nil), state.Reports...),
	}
	if state.Error != nil {
		s.Error = state.Error.Error()
		s.failure = state.Error
	}
	for _, name := range state.ArtifactNames() {
		s.Artifacts[name], _ = state.Artifact(name)
	}

	if s.Status != operations.RunStatusCompleted || state.Reconciled == nil {
		return s
	}

	diag := state.Reconciled.Diagnostics
	s.Panel = state.Reconciled.Panel
	s.Diagnostics = &diag
	s.Forecasts = state.Forecasts.Successful()
	s.Clustering = state.Clustering
	s.Skipped = state.SkippedStates()
	return s
}

// Store holds the current snapshot. It is safe for concurrent use.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the current snapshot
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Current returns the current snapshot, or nil before the first run
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}
