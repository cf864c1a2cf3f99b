package operations

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeMissingInput ErrorType = "missing_input"
)

// OperationError is a run failure attributed to a Step
type OperationError struct {
	Type    ErrorType              `json:"type"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewDependencyError reports a missing dependency or a cycle
func NewDependencyError(step, dependsOn, message string) *OperationError {
	e := &OperationError{
		Type:    ErrorTypeDependency,
		Step:    step,
		Message: message,
	}
	if dependsOn != "" {
		e.Context = map[string]interface{}{"depends_on": dependsOn}
	}
	return e
}

// NewExecutionError wraps the error a Step returned
func NewExecutionError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: "Step execution failed",
		Cause:   cause,
	}
}

// NewCancellationError reports a run stopped before step started
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// NewMissingInputError reports a Step that found an artifact of an earlier
// step absent from the run state
func NewMissingInputError(step, artifact string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeMissingInput,
		Step:    step,
		Message: fmt.Sprintf("%s is not available", artifact),
		Context: map[string]interface{}{"artifact": artifact},
	}
}

// GetErrorType returns the type of the first OperationError in err's chain
func GetErrorType(err error) ErrorType {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ""
}

// SkipError is returned by a Step that chose not to run. The manager marks
// the step skipped and the run continues.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "step skipped: " + e.Reason
}

// Skip returns a SkipError
func Skip(format string, args ...interface{}) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err asks for the step to be marked skipped
func IsSkip(err error) (*SkipError, bool) {
	var s *SkipError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
