package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sidrapanel/internal/operations"
)

// AssertStepStatus checks the status of a step of a run
func AssertStepStatus(t *testing.T, state *operations.RunState, stepID string, expected operations.StepStatus) {
	t.Helper()
	s := state.Step(stepID)
	require.NotNil(t, s, "step %s not in run state", stepID)
	assert.Equal(t, expected, s.GetStatus(), "step %s", stepID)
}

// AssertErrorType checks the operation error type of err
func AssertErrorType(t *testing.T, err error, expected operations.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, expected, operations.GetErrorType(err), "error: %v", err)
}

// AssertStepOrder checks the IDs of steps in order
func AssertStepOrder(t *testing.T, steps []operations.Step, expected ...string) {
	t.Helper()
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, expected, ids)
}
