// Package errors provides typed errors for the LinkedIn Ads tap. Every
// failure carries an ErrorType so callers can decide whether to retry,
// skip a stream, or abort the run.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorType is the category of an error.
type ErrorType string

const (
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypePermission     ErrorType = "permission"
	ErrorTypeConfig         ErrorType = "config"
	// ErrorTypeData covers malformed API payloads and records.
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile covers sink output I/O.
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeState covers bookmark load and save.
	ErrorTypeState ErrorType = "state"
)

// Detail keys set by this package.
const (
	DetailStatusCode = "status_code"
	DetailRetryAfter = "retry_after"
)

// Error is a typed error with optional details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail sets a detail and returns e for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap adds a type and message to err. It returns nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

var statusTypes = map[int]ErrorType{
	http.StatusTooManyRequests: ErrorTypeRateLimit,
	http.StatusUnauthorized:    ErrorTypeAuthentication,
	http.StatusForbidden:       ErrorTypePermission,
	http.StatusNotFound:        ErrorTypeNotFound,
	http.StatusRequestTimeout:  ErrorTypeTimeout,
	http.StatusGatewayTimeout:  ErrorTypeTimeout,
}

// FromHTTPStatus builds the error for a non-2xx API response. The message
// keeps the status code and the raw body so callers can inspect it.
func FromHTTPStatus(status int, body string) *Error {
	errType, ok := statusTypes[status]
	if !ok {
		errType = ErrorTypeValidation
		if status >= 500 {
			errType = ErrorTypeConnection
		}
	}
	return New(errType, fmt.Sprintf("HTTP-error-code: %d, Error: %s", status, strings.TrimSpace(body))).
		WithDetail(DetailStatusCode, status)
}

// typeOf returns the type of the outermost *Error in err's chain.
func typeOf(err error) (ErrorType, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Type, true
}

// IsType reports whether the outermost typed error in err's chain has
// type errType.
func IsType(err error, errType ErrorType) bool {
	t, ok := typeOf(err)
	return ok && t == errType
}

// IsRetryable reports whether err is worth retrying: throttling, timeouts
// and connection failures.
func IsRetryable(err error) bool {
	t, _ := typeOf(err)
	switch t {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	}
	return false
}

// StatusCode returns the HTTP status of an API error.
func StatusCode(err error) (int, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	code, ok := e.Details[DetailStatusCode].(int)
	return code, ok
}

// RetryAfter returns the delay a rate-limited response asked for, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Type != ErrorTypeRateLimit {
		return 0, false
	}
	d, ok := e.Details[DetailRetryAfter].(time.Duration)
	return d, ok
}

// Contains reports whether the error text mentions substr. API failures are
// classified by their body text in a few places (permission scopes, 429).
func Contains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}
