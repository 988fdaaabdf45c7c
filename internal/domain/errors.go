package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling in the
// handler layer without switch statements over concrete types.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// ConflictError indicates the resource already exists (e.g. duplicate
	// persona username)
	ConflictError struct {
		Message string
	}

	// UnavailableError indicates a required external collaborator is not
	// configured or not reachable (e.g. no LLM API key)
	UnavailableError struct {
		Message string
	}

	// MalformedOutputError indicates the model returned text that could not
	// be parsed into the expected structure. Kept distinct from generic
	// failures so callers can show a specific diagnostic.
	MalformedOutputError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string        { return e.Message }
func (e *ValidationError) Error() string      { return e.Message }
func (e *ConflictError) Error() string        { return e.Message }
func (e *UnavailableError) Error() string     { return e.Message }
func (e *MalformedOutputError) Error() string { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int        { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }
func (e *ConflictError) StatusCode() int        { return http.StatusConflict }
func (e *UnavailableError) StatusCode() int     { return http.StatusServiceUnavailable }
func (e *MalformedOutputError) StatusCode() int { return http.StatusBadGateway }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrValidation      = errors.New("validation failed")
	ErrUnavailable     = errors.New("unavailable")
	ErrMalformedOutput = errors.New("malformed model output")
)

// Is allows errors.Is() matching against the corresponding sentinels.
func (e *NotFoundError) Is(target error) bool        { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool      { return target == ErrValidation }
func (e *ConflictError) Is(target error) bool        { return target == ErrConflict }
func (e *UnavailableError) Is(target error) bool     { return target == ErrUnavailable }
func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }
