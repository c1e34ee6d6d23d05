// Package errors provides examples of structured error handling in the tap.
package errors_test

import (
	"fmt"
	"io"
	"time"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to reach api.linkedin.com").
		WithDetail("endpoint", "accounts").
		WithDetail("attempt", 3)

	fmt.Println(err.Error())

	// Output:
	// connection: failed to reach api.linkedin.com
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeFile, "failed to write RECORD message").
		WithDetail("stream", "campaigns")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a sink error")
	}
	fmt.Println(err)

	// Output:
	// This is a sink error
	// file: failed to write RECORD message: short write
}

// ExampleFromHTTPStatus shows how API failures are classified.
func ExampleFromHTTPStatus() {
	rateLimited := errors.FromHTTPStatus(429, `{"message":"Too Many Requests"}`)
	forbidden := errors.FromHTTPStatus(403, "Not enough permissions to access: partnerApiPostsExternal")

	fmt.Println(errors.IsType(rateLimited, errors.ErrorTypeRateLimit), errors.IsRetryable(rateLimited))
	fmt.Println(errors.IsType(forbidden, errors.ErrorTypePermission), errors.IsRetryable(forbidden))
	fmt.Println(errors.Contains(forbidden, "partnerApiPostsExternal"))
	fmt.Println(rateLimited)

	// Output:
	// true true
	// true false
	// true
	// rate_limit: HTTP-error-code: 429, Error: {"message":"Too Many Requests"}
}

// ExampleIsType demonstrates checking error types.
func ExampleIsType() {
	connErr := errors.New(errors.ErrorTypeConnection, "connection reset")
	wrappedErr := errors.Wrap(connErr, errors.ErrorTypeData, "page decode failed")

	fmt.Printf("Is connection error: %v\n", errors.IsType(connErr, errors.ErrorTypeConnection))
	fmt.Printf("Wrapped error is data type: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeData))
	fmt.Printf("Wrapped error contains connection type: %v\n", errors.IsType(wrappedErr, errors.ErrorTypeConnection))

	// Output:
	// Is connection error: true
	// Wrapped error is data type: true
	// Wrapped error contains connection type: false
}

// Example_errorChain shows how contexts accumulate in the message.
func Example_errorChain() {
	err := errors.Wrap(errors.New(errors.ErrorTypeTimeout, "request timed out"), errors.ErrorTypeData, "failed to fetch adAnalytics page")
	err = errors.Wrap(err, errors.ErrorTypeInternal, "stream sync failed").WithDetail("stream", "ad_analytics_by_campaign")

	fmt.Println(err)

	// Output:
	// internal: stream sync failed: data: failed to fetch adAnalytics page: timeout: request timed out
}

// ExampleRetryAfter reads the status and the requested back-off of a 429.
func ExampleRetryAfter() {
	err := errors.FromHTTPStatus(429, "throttled").WithDetail(errors.DetailRetryAfter, 30*time.Second)

	code, _ := errors.StatusCode(err)
	wait, ok := errors.RetryAfter(err)
	fmt.Println(code, wait, ok)

	_, ok = errors.RetryAfter(errors.FromHTTPStatus(503, "unavailable"))
	fmt.Println(ok)

	// Output:
	// 429 30s true
	// false
}
