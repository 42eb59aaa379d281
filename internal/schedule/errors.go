package schedule

import "errors"

// Domain errors for the schedule package.
var (
	// ErrScheduleNotFound is returned when a schedule ID does not exist.
	ErrScheduleNotFound = errors.New("schedule: not found")

	// ErrScheduleExists is returned when creating a schedule whose ID is taken.
	ErrScheduleExists = errors.New("schedule: already exists")

	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("schedule: invalid")

	// ErrInvalidTrigger is returned for malformed trigger definitions.
	ErrInvalidTrigger = errors.New("schedule: invalid trigger")

	// ErrNoSunEvent is returned when the sun does not rise or set on a date
	// (polar day or night).
	ErrNoSunEvent = errors.New("schedule: no sun event on date")
)
