package domain

import (
	"errors"
	"fmt"
)

// Error codes for categorization
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeGenerationAborted  = "GENERATION_ABORTED"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeBackendTimeout     = "BACKEND_TIMEOUT"
	ErrCodeBackendHTTP        = "BACKEND_HTTP_ERROR"
	ErrCodeUnparseableOutput  = "UNPARSEABLE_OUTPUT"
	ErrCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// DomainError is a structured error for pipeline operations.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for error comparison
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors (used with errors.Is)
var (
	ErrBackendUnavailable = &DomainError{Code: ErrCodeBackendUnavailable, Message: "generation backend unavailable"}
	ErrBackendTimeout     = &DomainError{Code: ErrCodeBackendTimeout, Message: "generation backend timed out"}
	ErrUnparseableOutput  = &DomainError{Code: ErrCodeUnparseableOutput, Message: "model output unparseable"}
	ErrInvalidInput       = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
)

// NewError creates a new DomainError
func NewError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithCause attaches the underlying error.
func (e *DomainError) WithCause(err error) *DomainError {
	e.Err = err
	return e
}

// WithDetail adds a detail key to the error.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WrapError wraps a standard error into a DomainError
func WrapError(err error, code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// GetErrorCode returns the error code for an error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternal
}

// NotFoundError marks a missing stored resource.
func NotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": fmt.Sprintf("%v", id)},
	}
}

// BackendUnavailableError marks a backend as unreachable.
func BackendUnavailableError(backend string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeBackendUnavailable,
		Message: fmt.Sprintf("backend unreachable: %s", backend),
		Details: map[string]any{"backend": backend},
		Err:     errors.Join(ErrBackendUnavailable, err),
	}
}

// BackendTimeoutError marks a backend call as timed out.
func BackendTimeoutError(backend string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeBackendTimeout,
		Message: fmt.Sprintf("backend timed out: %s", backend),
		Details: map[string]any{"backend": backend},
		Err:     errors.Join(ErrBackendTimeout, err),
	}
}

// BackendHTTPError marks a non-2xx backend response.
func BackendHTTPError(backend string, status int, body string) *DomainError {
	if len(body) > 500 {
		body = body[:500]
	}
	return &DomainError{
		Code:    ErrCodeBackendHTTP,
		Message: fmt.Sprintf("backend %s returned status %d", backend, status),
		Details: map[string]any{"backend": backend, "status": status, "body": body},
	}
}
