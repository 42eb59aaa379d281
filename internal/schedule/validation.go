package schedule

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 100

// Validate checks a schedule before it is checked for conflicts or saved.
func Validate(s *Schedule) error {
	if strings.TrimSpace(s.Name) == "" || len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidSchedule, maxNameLength)
	}
	if err := s.Trigger.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidSchedule)
	}
	for i, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrInvalidSchedule, i, err)
		}
	}
	return nil
}

// GenerateID creates a new schedule ID.
func GenerateID() string {
	return uuid.NewString()
}
