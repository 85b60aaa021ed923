package mark

import (
	"errors"

	"github.com/dshills/termmark/internal/engine/interval"
)

// Errors returned by registry operations.
var (
	// ErrInvalidInterval indicates a malformed anchor or query range.
	ErrInvalidInterval = interval.ErrInvalidInterval

	// ErrNotFound indicates the id does not name a live mark. This is an
	// expected outcome when a trim evicts a mark a caller still refers to.
	ErrNotFound = errors.New("mark not found")

	// ErrWrongKind indicates an operation is not defined for the mark's variant.
	ErrWrongKind = errors.New("operation not supported for mark kind")

	// ErrAlreadyFinished indicates a command mark was finished twice.
	ErrAlreadyFinished = errors.New("command mark already finished")

	// ErrEndBeforeStart indicates an end date earlier than the start date.
	ErrEndBeforeStart = errors.New("end date before start date")

	// ErrInvalidPattern indicates a command pattern failed to compile.
	ErrInvalidPattern = errors.New("invalid command pattern")
)
