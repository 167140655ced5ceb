// Package errors provides the application error taxonomy.
//
// AppError carries a type, a user-safe message and the HTTP status it maps to.
// Wrapping, stack capture and chain inspection are delegated to
// github.com/cockroachdb/errors, so an AppError stays discoverable with As even
// after being wrapped by lower layers.
package errors

import (
	"fmt"
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// Re-exported helpers so callers need a single errors import.
var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
	Is        = crdb.Is
	As        = crdb.As
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"

	// Application errors
	ErrorTypeInternal      ErrorType = "INTERNAL"
	ErrorTypeTimeout       ErrorType = "TIMEOUT"
	ErrorTypeRateLimit     ErrorType = "RATE_LIMIT"
	ErrorTypeUnavailable   ErrorType = "UNAVAILABLE"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION"
	ErrorTypeParse         ErrorType = "PARSE"

	// Infrastructure errors
	ErrorTypeDatabase   ErrorType = "DATABASE"
	ErrorTypeGraphQuery ErrorType = "GRAPH_QUERY"
	ErrorTypeExternal   ErrorType = "EXTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error, recording the stack at the call site.
func (e *AppError) WithCause(err error) *AppError {
	if err != nil {
		e.Cause = crdb.WithStackDepth(err, 1)
	}
	return e
}

// StackTrace renders the recorded stack of the cause, if any.
func (e *AppError) StackTrace() string {
	if e.Cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.Cause)
}

func newAppError(t ErrorType, status int, message string) *AppError {
	return &AppError{Type: t, Message: message, HTTPStatus: status}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return newAppError(ErrorTypeTimeout, http.StatusGatewayTimeout, fmt.Sprintf("operation '%s' timed out", operation))
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return newAppError(ErrorTypeRateLimit, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window))
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewConfigurationError reports a missing or invalid setting. It is raised at
// first use of the collaborator that needs the setting.
func NewConfigurationError(setting string) *AppError {
	return newAppError(ErrorTypeConfiguration, http.StatusInternalServerError,
		fmt.Sprintf("%s not configured", setting))
}

// NewParseError creates an error for undecodable upstream output.
func NewParseError(message string, err error) *AppError {
	return newAppError(ErrorTypeParse, http.StatusBadGateway, message).WithCause(err)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewGraphQueryError reports a failed traversal against the graph store.
func NewGraphQueryError(operation string, err error) *AppError {
	return newAppError(ErrorTypeGraphQuery, http.StatusBadGateway,
		fmt.Sprintf("graph query '%s' failed", operation)).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newAppError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// Helper functions

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if crdb.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsGraphQuery checks if an error came from the graph store
func IsGraphQuery(err error) bool {
	return IsType(err, ErrorTypeGraphQuery)
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return IsType(err, ErrorTypeConfiguration)
}

// GetHTTPStatus returns the status an error maps to, 500 for unknown errors.
func GetHTTPStatus(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
