package fallback

import (
	"fmt"

	"github.com/Sternrassler/openml-client/pkg/resource"
)

// Error is returned when the preferred endpoint does not support an
// operation and the secondary endpoint fails it as well. Only the
// secondary's failure is reachable through errors.Is and errors.As; the
// capability error of the preferred endpoint is kept for context.
type Error struct {
	Resource  resource.ResourceType
	Operation resource.Operation
	From      resource.APIVersion
	To        resource.APIVersion

	// Preferred is the capability error of the preferred endpoint. It is
	// not unwrapped.
	Preferred error

	// Secondary is the error of the secondary endpoint.
	Secondary error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: fallback from %s to %s failed: %v (preferred: %v)",
		e.Resource, e.Operation, e.From, e.To, e.Secondary, e.Preferred)
}

// Unwrap returns the secondary endpoint's error.
func (e *Error) Unwrap() error {
	return e.Secondary
}
