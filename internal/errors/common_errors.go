package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeSourceUnavailable: an upstream dataset could not be fetched or opened
	ErrTypeSourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	// ErrTypeTypeCoercion: a year or count cell could not be normalized
	ErrTypeTypeCoercion ErrorType = "TYPE_COERCION"
	// ErrTypeKeyMismatch is diagnostic only. The reconciliation never returns it.
	ErrTypeKeyMismatch      ErrorType = "KEY_MISMATCH"
	ErrTypeDivisionSentinel ErrorType = "DIVISION_SENTINEL"
	ErrTypeAnalysis         ErrorType = "ANALYSIS"
	ErrTypeParsing          ErrorType = "PARSING"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeConfig           ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the type of the outermost AppError in err's chain, or ""
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether any AppError in err's chain has type t
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// NewSourceUnavailableError creates an error for an unreachable source
func NewSourceUnavailableError(source string, cause error) *AppError {
	return NewAppError(ErrTypeSourceUnavailable, fmt.Sprintf("%s unavailable", source), cause).
		WithContext("source", source)
}

// NewTypeCoercionError creates an error for a value that could not be normalized
func NewTypeCoercionError(field, value string, cause error) *AppError {
	return NewAppError(ErrTypeTypeCoercion, fmt.Sprintf("cannot coerce %s %q", field, value), cause).
		WithContext("field", field).
		WithContext("value", value)
}

// NewAnalysisError creates an analysis error
func NewAnalysisError(message string, cause error) *AppError {
	return NewAppError(ErrTypeAnalysis, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
