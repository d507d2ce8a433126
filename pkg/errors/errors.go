package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Contract errors
	ErrorTypeInvalidArgument  ErrorType = "INVALID_ARGUMENT"
	ErrorTypeInvalidOperation ErrorType = "INVALID_OPERATION"
	ErrorTypeNotRegistered    ErrorType = "NOT_REGISTERED"
	ErrorTypeResolution       ErrorType = "RESOLUTION"

	// Request errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeDatabase    ErrorType = "DATABASE"
	ErrorTypeExternal    ErrorType = "EXTERNAL"
)

var statusByType = map[ErrorType]int{
	ErrorTypeInvalidArgument:  http.StatusBadRequest,
	ErrorTypeInvalidOperation: http.StatusInternalServerError,
	ErrorTypeNotRegistered:    http.StatusInternalServerError,
	ErrorTypeResolution:       http.StatusInternalServerError,
	ErrorTypeValidation:       http.StatusBadRequest,
	ErrorTypeNotFound:         http.StatusNotFound,
	ErrorTypeUnauthorized:     http.StatusUnauthorized,
	ErrorTypeForbidden:        http.StatusForbidden,
	ErrorTypeRateLimit:        http.StatusTooManyRequests,
	ErrorTypeInternal:         http.StatusInternalServerError,
	ErrorTypeUnavailable:      http.StatusServiceUnavailable,
	ErrorTypeDatabase:         http.StatusInternalServerError,
	ErrorTypeExternal:         http.StatusBadGateway,
}

// typeByStatus is used when only a status code is known. 400 maps to validation.
var typeByStatus = map[int]ErrorType{
	http.StatusBadRequest:         ErrorTypeValidation,
	http.StatusUnauthorized:       ErrorTypeUnauthorized,
	http.StatusForbidden:          ErrorTypeForbidden,
	http.StatusNotFound:           ErrorTypeNotFound,
	http.StatusTooManyRequests:    ErrorTypeRateLimit,
	http.StatusBadGateway:         ErrorTypeExternal,
	http.StatusServiceUnavailable: ErrorTypeUnavailable,
}

// AppError is an error with a type, an HTTP status and an optional cause.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

func newAppError(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: statusByType[errType],
		StackTrace: captureStackTrace(),
	}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode sets a machine readable code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails replaces the details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace records the caller of the exported constructor.
func captureStackTrace() string {
	var pcs [32]uintptr
	// Skip runtime.Callers, captureStackTrace, newAppError and the constructor.
	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

// NewInvalidArgumentError reports a missing or malformed argument.
func NewInvalidArgumentError(argument string) *AppError {
	err := newAppError(ErrorTypeInvalidArgument, fmt.Sprintf("invalid argument '%s'", argument))
	err.Details = map[string]interface{}{"argument": argument}
	return err
}

// NewInvalidOperationError reports an operation attempted in the wrong state,
// such as repeating a one-time initialization step.
func NewInvalidOperationError(message string) *AppError {
	return newAppError(ErrorTypeInvalidOperation, message)
}

// NewNotRegisteredError reports a service with no registration.
func NewNotRegisteredError(service string) *AppError {
	return newAppError(ErrorTypeNotRegistered, fmt.Sprintf("service '%s' is not registered", service))
}

// NewResolutionError wraps a failure raised by the container while building a service.
func NewResolutionError(service string, err error) *AppError {
	return newAppError(ErrorTypeResolution, fmt.Sprintf("failed to resolve '%s'", service)).WithCause(err)
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message)
}

func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, resource+" not found")
}

// NewUnauthorizedError defaults the message to "unauthorized".
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, message)
}

// NewForbiddenError defaults the message to "forbidden".
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newAppError(ErrorTypeForbidden, message)
}

// NewRateLimitError reports an exhausted limit for key.
func NewRateLimitError(key string) *AppError {
	return newAppError(ErrorTypeRateLimit, fmt.Sprintf("rate limit exceeded for '%s'", key))
}

func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, message)
}

// NewUnavailableError reports a dependency that cannot be reached right now.
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewDatabaseError reports a failed store call.
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewExternalError reports a failed call to another service.
func NewExternalError(service string, err error) *AppError {
	return newAppError(ErrorTypeExternal, fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// GetAppError returns the first AppError in err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// IsType reports whether err's chain holds an AppError of errType.
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsInvalidArgument(err error) bool  { return IsType(err, ErrorTypeInvalidArgument) }
func IsInvalidOperation(err error) bool { return IsType(err, ErrorTypeInvalidOperation) }
func IsNotRegistered(err error) bool    { return IsType(err, ErrorTypeNotRegistered) }
func IsValidation(err error) bool       { return IsType(err, ErrorTypeValidation) }
func IsForbidden(err error) bool        { return IsType(err, ErrorTypeForbidden) }

// Wrap prefixes err's message. An AppError keeps its type and status; the
// original is left untouched. Any other error becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		wrapped := *appErr
		wrapped.Message = message + ": " + appErr.Message
		return &wrapped
	}
	return NewInternalError(message).WithCause(err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
