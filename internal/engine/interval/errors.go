package interval

import "errors"

// Errors returned by tree operations.
var (
	// ErrInvalidInterval indicates a malformed interval (start > end, or a
	// negative coordinate) or an impossible shift.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrDuplicateID indicates an insert reused an id already in the tree.
	ErrDuplicateID = errors.New("duplicate id")
)
