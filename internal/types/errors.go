package types

import (
	"errors"
	"fmt"
)

// TransportError means the remote channel failed: the session is unusable
// and the run must abort.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AnalysisError means a remote artifact could not be read or understood
type AnalysisError struct {
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// RemediationError means a step's mutation or verification failed.
// Restored is true when the pre-mutation content was put back.
type RemediationError struct {
	Key      string
	Restored bool
	Err      error
}

func (e *RemediationError) Error() string {
	if e.Restored {
		return fmt.Sprintf("step %s failed (restored): %v", e.Key, e.Err)
	}
	return fmt.Sprintf("step %s failed: %v", e.Key, e.Err)
}

func (e *RemediationError) Unwrap() error { return e.Err }

// StateCorruptionError means a state file was unreadable or belonged to
// another domain. It is logged and the store starts fresh.
type StateCorruptionError struct {
	Path string
	Err  error
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state file %s: %v", e.Path, e.Err)
}

func (e *StateCorruptionError) Unwrap() error { return e.Err }

// IsTransport reports whether err is or wraps a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
