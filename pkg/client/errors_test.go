package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "exhausted server error",
			apiError: &APIError{
				Method:     "GET",
				URL:        "https://www.openml.org/api/v1/xml/task/1",
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Attempts:   4,
				Exhausted:  true,
			},
			expected: "GET https://www.openml.org/api/v1/xml/task/1: server error (status 503): retry attempts exhausted after 4 attempts",
		},
		{
			name: "client error",
			apiError: &APIError{
				Method:     "GET",
				URL:        "https://www.openml.org/api/v1/xml/task/0",
				StatusCode: 412,
				ErrorClass: ErrorClassClient,
				Attempts:   1,
			},
			expected: "GET https://www.openml.org/api/v1/xml/task/0: client error (status 412)",
		},
		{
			name: "network error",
			apiError: &APIError{
				Method:     "POST",
				URL:        "https://www.openml.org/api/v1/xml/flow",
				ErrorClass: ErrorClassNetwork,
				Attempts:   1,
				Err:        errors.New("connection refused"),
			},
			expected: "POST https://www.openml.org/api/v1/xml/flow: network error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	exhausted := &APIError{ErrorClass: ErrorClassServer, StatusCode: 503, Exhausted: true}
	if !errors.Is(exhausted, ErrRetryExhausted) {
		t.Error("exhausted error does not match ErrRetryExhausted")
	}

	wrapped := fmt.Errorf("get task: %w", exhausted)
	if !errors.Is(wrapped, ErrRetryExhausted) {
		t.Error("wrapped exhausted error does not match ErrRetryExhausted")
	}

	permanent := &APIError{ErrorClass: ErrorClassClient, StatusCode: 404}
	if errors.Is(permanent, ErrRetryExhausted) {
		t.Error("permanent error matches ErrRetryExhausted")
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := &url.Error{Op: "Get", URL: "https://x", Err: context.DeadlineExceeded}
	apiErr := &APIError{ErrorClass: ErrorClassTimeout, Err: inner}

	if !errors.Is(apiErr, context.DeadlineExceeded) {
		t.Error("errors.Is did not reach the wrapped cause")
	}
	var urlErr *url.Error
	if !errors.As(apiErr, &urlErr) {
		t.Error("errors.As did not find *url.Error")
	}

	if (&APIError{}).Unwrap() != nil {
		t.Error("Unwrap of empty error should be nil")
	}
}

func TestChecksumError(t *testing.T) {
	err := error(&ChecksumError{URL: "https://x/data.arff", Expected: "aaa", Actual: "bbb"})

	if !errors.Is(err, ErrChecksumMismatch) {
		t.Error("ChecksumError does not match ErrChecksumMismatch")
	}
	want := "checksum mismatch for https://x/data.arff: expected md5 aaa, got bbb"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestClassify(t *testing.T) {
	if classifyStatus(404) != ErrorClassClient {
		t.Error("404 not classified as client")
	}
	if classifyStatus(502) != ErrorClassServer {
		t.Error("502 not classified as server")
	}
	if classifyStatus(200) != "" {
		t.Error("200 classified as error")
	}

	timeoutErr := &url.Error{Op: "Get", URL: "https://x", Err: context.DeadlineExceeded}
	if got := classifyError(timeoutErr); got != ErrorClassTimeout {
		t.Errorf("classifyError(timeout) = %s", got)
	}
	if got := classifyError(errors.New("connection reset")); got != ErrorClassNetwork {
		t.Errorf("classifyError(reset) = %s", got)
	}
}
