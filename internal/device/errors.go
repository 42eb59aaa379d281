package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package. Check with errors.Is.
var (
	ErrDeviceNotFound = errors.New("device: not found")
	ErrDeviceExists   = errors.New("device: already exists")
	ErrInvalidDevice  = errors.New("device: invalid")
	ErrGroupNotFound  = errors.New("device group: not found")
	ErrGroupExists    = errors.New("device group: already exists")
	ErrInvalidGroup   = errors.New("device group: invalid")

	// ErrUnknownTarget is returned when a target resolves to no devices.
	ErrUnknownTarget = errors.New("device: unknown target")
)

// UnknownTargetError carries the target expression that failed to resolve.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("device: unknown target %q", e.Target)
}

// Unwrap lets errors.Is match ErrUnknownTarget.
func (e *UnknownTargetError) Unwrap() error {
	return ErrUnknownTarget
}
