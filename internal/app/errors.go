// Package app wires a scrollback buffer, its mark registry and the script
// host into a session driven by configuration.
package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrSessionClosed indicates the session was already closed.
	ErrSessionClosed = errors.New("session closed")
)

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name (e.g., "run", "reload")
	Target string // Target of the operation (e.g., script or config path)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
