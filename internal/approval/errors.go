package approval

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no request has the given call_id.
	ErrNotFound = errors.New("approval: request not found")

	// ErrConflict is returned when a request has already been resolved.
	ErrConflict = errors.New("approval: request already resolved")

	ErrAlreadyDecided   = fmt.Errorf("function call already decided: %w", ErrConflict)
	ErrAlreadyResponded = fmt.Errorf("human contact already responded: %w", ErrConflict)

	// ErrInvalid is returned for requests missing required fields.
	ErrInvalid = errors.New("approval: invalid request")
)

func invalid(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalid, field)
}
