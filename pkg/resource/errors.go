package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/openml-client/pkg/client"
)

var (
	// ErrNotSupported is matched by a *NotSupportedError.
	ErrNotSupported = errors.New("operation not supported")

	// ErrCacheRequired is returned by operations that need a cache
	// directory when none is configured.
	ErrCacheRequired = errors.New("a cache directory is required")
)

// NotSupportedError signals that an API version does not offer an
// operation for a resource type.
type NotSupportedError struct {
	Version   APIVersion
	Resource  ResourceType
	Operation Operation
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s API does not support %q for resource %q", e.Version, e.Operation, e.Resource)
}

// Is reports whether target is ErrNotSupported.
func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// ServerError is an error document returned by the server, either an
// <oml:error> element (v1) or a JSON detail object (v2). It wraps the
// transport error that carried it.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
	Info       string
	Err        error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server error")
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	fmt.Fprintf(&b, " (status %d): %s", e.StatusCode, e.Message)
	if e.Info != "" {
		fmt.Fprintf(&b, " (%s)", e.Info)
	}
	return b.String()
}

// Unwrap returns the transport error.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// OperationError adds the endpoint context to a failed operation.
type OperationError struct {
	Version   APIVersion
	Resource  ResourceType
	Operation Operation
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Version, e.Resource, e.Operation, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// asServerError turns a transport error carrying an error document into a
// *ServerError. Other errors are returned unchanged.
func asServerError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return err
	}

	if code, message, info, ok := parseXMLError(apiErr.Body); ok {
		return &ServerError{StatusCode: apiErr.StatusCode, Code: code, Message: message, Info: info, Err: err}
	}
	if code, message, ok := parseJSONError(apiErr.Body); ok {
		return &ServerError{StatusCode: apiErr.StatusCode, Code: code, Message: message, Err: err}
	}
	return err
}

// parseXMLError reads an <oml:error> document.
func parseXMLError(body []byte) (code, message, info string, ok bool) {
	root, values, err := scanXML(body, "code", "message", "additional_information")
	if err != nil || root != "error" {
		return "", "", "", false
	}
	return first(values["code"]), first(values["message"]), first(values["additional_information"]), true
}

// parseJSONError reads {"detail": {"code": ..., "message": ...}} or
// {"detail": "..."}.
func parseJSONError(body []byte) (code, message string, ok bool) {
	var doc struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Detail) == 0 {
		return "", "", false
	}

	var text string
	if err := json.Unmarshal(doc.Detail, &text); err == nil {
		return "", text, true
	}

	var detail struct {
		Code    interface{} `json:"code"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(doc.Detail, &detail); err != nil {
		return "", "", false
	}
	if detail.Code != nil {
		code = fmt.Sprint(detail.Code)
	}
	return code, detail.Message, true
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
