package chat

import (
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by backends whose executable or service is missing entirely. Unlike other backend
// failures it is not worth retrying, so interactive callers should stop.
var ErrUnavailable = errors.New("backend unavailable")

// BackendError reports a single failed completion call. The session has already been rolled back when one is
// returned.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (%s): %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ValidationError reports user input that breaks a syntactic rule
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
