package api

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes an API error. The routing and dispatch taxonomy of
// the gateway maps onto these one-to-one.
type ErrorType string

const (
	// ErrorTypeInvalidRequest covers malformed requests (missing csv,
	// unknown fields, bad shapes).
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeNotFound is returned when an explicit task hint names an
	// unregistered capability, or a stored run does not exist.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRoutingAmbiguous means no classifier produced a candidate
	// and no explicit hint was given; the request is unroutable.
	ErrorTypeRoutingAmbiguous ErrorType = "routing_ambiguous"

	// ErrorTypeValidationFailed means the chosen capability's required
	// roles could not all be resolved against the request and dataset.
	ErrorTypeValidationFailed ErrorType = "validation_failed"

	// ErrorTypeBackendError means the backend process exited non-zero or
	// produced a missing/corrupt artifact.
	ErrorTypeBackendError ErrorType = "backend_error"

	// ErrorTypeBackendTimeout means the backend exceeded its execution
	// bound and was forcibly terminated.
	ErrorTypeBackendTimeout ErrorType = "backend_timeout"

	// ErrorTypeServerError covers internal failures.
	ErrorTypeServerError ErrorType = "server_error"
)

// APIError is a structured error with a taxonomy type, an optional offending
// parameter, and a message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus maps the error type to an HTTP status code.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeRoutingAmbiguous, ErrorTypeValidationFailed:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBackendTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeBackendError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError as the top-level error body.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError creates an APIError for unknown capabilities or runs.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewRoutingAmbiguousError creates an APIError for unroutable requests.
func NewRoutingAmbiguousError(message string) *APIError {
	return &APIError{Type: ErrorTypeRoutingAmbiguous, Message: message}
}

// NewValidationFailedError creates an APIError naming the unresolved roles.
func NewValidationFailedError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeValidationFailed, Param: param, Message: message}
}

// NewBackendError creates an APIError for failed backend executions.
func NewBackendError(message string) *APIError {
	return &APIError{Type: ErrorTypeBackendError, Message: message}
}

// NewBackendTimeoutError creates an APIError for timed-out backend executions.
func NewBackendTimeoutError(message string) *APIError {
	return &APIError{Type: ErrorTypeBackendTimeout, Message: message}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}
