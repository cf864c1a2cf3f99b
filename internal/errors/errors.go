package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors
var (
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrInternalServer    = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// InvalidParameter creates a 400 naming the offending query parameter
func InvalidParameter(name, value string, err error) *APIError {
	details := map[string]string{"parameter": name, "value": value}
	if err != nil {
		details["reason"] = err.Error()
	}
	return NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER",
		fmt.Sprintf("invalid value for %s", name), details)
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// FromAppError maps an AppError to the API error a client should see
func FromAppError(err error) *APIError {
	switch TypeOf(err) {
	case ErrTypeNotFound:
		return New(http.StatusNotFound, "NOT_FOUND", err.Error())
	case ErrTypeValidation:
		return New(http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case ErrTypeSourceUnavailable:
		return New(http.StatusServiceUnavailable, string(ErrTypeSourceUnavailable), err.Error())
	case "":
		return ErrInternalServer
	default:
		return New(http.StatusInternalServerError, string(TypeOf(err)), err.Error())
	}
}

// PanicRecovery represents panic recovery information
type PanicRecovery struct {
	Message string `json:"message"`
}

// ErrPanic creates a panic recovery error
func ErrPanic(rec interface{}) *APIError {
	return NewWithDetails(
		http.StatusInternalServerError,
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		PanicRecovery{Message: fmt.Sprintf("%v", rec)},
	)
}

// RenderError writes err as JSON with its status code
func RenderError(w http.ResponseWriter, r *http.Request, err *APIError) {
	_ = render.Render(w, r, err)
}
