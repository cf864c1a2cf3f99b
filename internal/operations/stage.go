package operations

import (
	"context"
	"sync"
	"time"
)

// Step is a single unit of work in a pipeline run
type Step interface {
	// ID returns the unique identifier for this Step
	ID() string

	// Name returns the human-readable name for this Step
	Name() string

	// Dependencies returns the IDs of steps that must complete before this Step
	Dependencies() []string

	// Execute runs the Step against the run state
	Execute(ctx context.Context, state *RunState) error
}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a Step
type StepState struct {
	mu        sync.RWMutex
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// NewStepState creates a new Step state with default values
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:     id,
		Name:   name,
		Status: StepStatusPending,
	}
}

// Start marks the Step as active and sets the start time
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the Step as completed and sets the end time
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// SetMessage records a short summary of what the Step did
func (s *StepState) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Message = message
}

// Fail marks the Step as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Skip marks the Step as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.StartTime == nil {
		s.StartTime = &now
	}
	s.EndTime = &now
	s.Status = StepStatusSkipped
	s.Message = reason
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the duration of the Step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// StepInfo is a point-in-time copy of a StepState
type StepInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Snapshot returns a copy that is safe to read and encode
func (s *StepState) Snapshot() StepInfo {
	d := s.Duration()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return StepInfo{
		ID:         s.ID,
		Name:       s.Name,
		Status:     s.Status,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		DurationMS: d.Milliseconds(),
		Message:    s.Message,
		Error:      s.Error,
	}
}

// BaseStep provides the identity half of a Step implementation
type BaseStep struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStep creates a new base Step
func NewBaseStep(id, name string, dependencies ...string) BaseStep {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStep{
		id:           id,
		name:         name,
		dependencies: dependencies,
	}
}

// ID returns the Step ID
func (b BaseStep) ID() string {
	return b.id
}

// Name returns the Step name
func (b BaseStep) Name() string {
	return b.name
}

// Dependencies returns the Step dependencies
func (b BaseStep) Dependencies() []string {
	out := make([]string, len(b.dependencies))
	copy(out, b.dependencies)
	return out
}
