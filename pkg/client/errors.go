package client

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is matched by an *APIError whose transient failure
	// persisted through every retry.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrChecksumMismatch is matched by a *ChecksumError.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection level errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents requests that ran past their timeout.
	ErrorClassTimeout ErrorClass = "timeout"
)

// APIError is returned for a request that did not produce a successful
// response: a non-retryable HTTP error, a non-retryable network error, or a
// transient failure that outlived the retry budget.
type APIError struct {
	Method     string
	URL        string // api_key redacted
	StatusCode int    // 0 when no response was received
	ErrorClass ErrorClass
	Attempts   int
	Exhausted  bool
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s error", e.Method, e.URL, e.ErrorClass)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Exhausted {
		fmt.Fprintf(&b, ": %v after %d attempts", ErrRetryExhausted, e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRetryExhausted and the retries ran out.
func (e *APIError) Is(target error) bool {
	return target == ErrRetryExhausted && e.Exhausted
}

// ChecksumError is returned when a response body does not match the
// expected MD5 checksum. Such responses are neither retried nor cached.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v for %s: expected md5 %s, got %s", ErrChecksumMismatch, e.URL, e.Expected, e.Actual)
}

// Is reports whether target is ErrChecksumMismatch.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// classifyStatus categorizes an HTTP status code for observability and handling.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyError categorizes a transport error.
func classifyError(err error) ErrorClass {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}
