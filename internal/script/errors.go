package script

import "errors"

// Errors for script operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTimeout is returned when a script runs past its deadline.
	ErrTimeout = errors.New("lua execution timeout")

	// ErrNotBound is returned when running a script before Bind.
	ErrNotBound = errors.New("term module not bound")
)
