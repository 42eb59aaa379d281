package conflict

import (
	"errors"
	"fmt"
)

// Domain errors for the conflict package.
var (
	// ErrConflictBlocking is returned by Submit when the candidate conflicts
	// with existing schedules and was not confirmed. The concrete error is a
	// *BlockingError carrying the check result.
	ErrConflictBlocking = errors.New("conflict: confirmation required")

	// ErrConflictNotFound is returned for unknown or expired conflict IDs.
	ErrConflictNotFound = errors.New("conflict: not found")

	// ErrResolutionNotFound is returned when a conflict has no resolution
	// with the requested ID.
	ErrResolutionNotFound = errors.New("conflict: resolution not found")

	// ErrInvalidParams is returned for malformed resolution parameters.
	ErrInvalidParams = errors.New("conflict: invalid resolution parameters")
)

// BlockingError reports conflicts that must be resolved or confirmed
// before a schedule is saved.
type BlockingError struct {
	Result Result
}

func (e *BlockingError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Result.Summary)
}

// Unwrap lets errors.Is match ErrConflictBlocking.
func (e *BlockingError) Unwrap() error {
	return ErrConflictBlocking
}
