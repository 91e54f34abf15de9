package bot

import (
	"errors"
	"fmt"
)

// ErrBackendFailure is matched by every error the bot package returns.
// Callers turn it into a fixed user-facing message.
var ErrBackendFailure = errors.New("backend failure")

// ErrNotConfigured indicates neither an authorization token nor a session
// token is set in the credentials file.
var ErrNotConfigured = errors.New("credentials not configured")

// BackendError records which backend operation failed and why.
type BackendError struct {
	Op     string // "load credentials", "refresh", "query"
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBackendFailure.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendFailure
}
