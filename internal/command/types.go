package command

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a correlation batch.
type State string

const (
	StatePending   State = "PENDING"
	StateConfirmed State = "CONFIRMED"
	StateTimedOut  State = "TIMED_OUT"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateTimedOut
}

// EventType names a command lifecycle event.
type EventType string

const (
	EventPending   EventType = "SCENE_PENDING"
	EventConfirmed EventType = "SCENE_CONFIRMED"
	EventTimeout   EventType = "SCENE_TIMEOUT"
)

// EventTopic is the in-process topic lifecycle events are published on.
const EventTopic = "scene.commands"

// Event is published once on dispatch and once on the terminal transition.
type Event struct {
	Type               EventType `json:"type"`
	CorrelationID      string    `json:"correlation_id"`
	Source             string    `json:"source,omitempty"`
	DevicesExpected    int       `json:"devices_expected"`
	DevicesConfirmed   int       `json:"devices_confirmed"`
	ConfirmedDeviceIDs []string  `json:"confirmed_device_ids"`
	LatencyMS          *int64    `json:"latency_ms,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// BatchSnapshot is a point-in-time copy of a batch.
type BatchSnapshot struct {
	CorrelationID string     `json:"correlation_id"`
	Source        string     `json:"source,omitempty"`
	State         State      `json:"state"`
	Expected      []string   `json:"expected"`
	Confirmed     []string   `json:"confirmed"`
	CreatedAt     time.Time  `json:"created_at"`
	DeadlineAt    time.Time  `json:"deadline_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// EffectKind is the operation applied to a lighting device.
type EffectKind string

const (
	EffectTurnOn        EffectKind = "turn_on"
	EffectTurnOff       EffectKind = "turn_off"
	EffectSetBrightness EffectKind = "set_brightness"
	EffectApplyScene    EffectKind = "apply_scene"
)

// Brightness bounds, in percent.
const (
	MinBrightness = 0
	MaxBrightness = 100
)

// Effect is a single lighting operation.
type Effect struct {
	Kind       EffectKind `json:"kind"`
	Brightness *int       `json:"brightness,omitempty"`
	SceneID    string     `json:"scene_id,omitempty"`
}

// Validate checks the effect kind and its parameters.
func (e Effect) Validate() error {
	switch e.Kind {
	case EffectTurnOn:
		if e.Brightness != nil {
			return validateBrightness(*e.Brightness)
		}
	case EffectTurnOff:
	case EffectSetBrightness:
		if e.Brightness == nil {
			return fmt.Errorf("%w: set_brightness requires brightness", ErrInvalidEffect)
		}
		return validateBrightness(*e.Brightness)
	case EffectApplyScene:
		if e.SceneID == "" {
			return fmt.Errorf("%w: apply_scene requires scene_id", ErrInvalidEffect)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEffect, e.Kind)
	}
	return nil
}

// Lit reports whether the effect leaves the device emitting light.
func (e Effect) Lit() bool {
	switch e.Kind {
	case EffectTurnOn:
		return e.Brightness == nil || *e.Brightness > 0
	case EffectSetBrightness:
		return e.Brightness != nil && *e.Brightness > 0
	}
	return false
}

// Dark reports whether the effect leaves the device off.
func (e Effect) Dark() bool {
	switch e.Kind {
	case EffectTurnOff:
		return true
	case EffectSetBrightness, EffectTurnOn:
		return e.Brightness != nil && *e.Brightness == 0
	}
	return false
}

// String renders the effect for logs and conflict descriptions.
func (e Effect) String() string {
	switch {
	case e.Kind == EffectApplyScene:
		return fmt.Sprintf("apply_scene(%s)", e.SceneID)
	case e.Brightness != nil:
		return fmt.Sprintf("%s(%d%%)", e.Kind, *e.Brightness)
	}
	return string(e.Kind)
}

func validateBrightness(level int) error {
	if level < MinBrightness || level > MaxBrightness {
		return fmt.Errorf("%w: brightness %d outside %d-%d", ErrInvalidEffect, level, MinBrightness, MaxBrightness)
	}
	return nil
}

// Brightness returns a pointer to level, for building effects inline.
func Brightness(level int) *int {
	return &level
}

// Action pairs a target expression with an effect.
type Action struct {
	Target string `json:"target"`
	Effect Effect `json:"effect"`
}

// Validate checks the target is present and the effect is valid.
func (a Action) Validate() error {
	if a.Target == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidEffect)
	}
	return a.Effect.Validate()
}

// commandPayload is published to graylogic/command/{protocol}/{device_id}.
type commandPayload struct {
	ID            string         `json:"id"`
	DeviceID      string         `json:"device_id"`
	CorrelationID string         `json:"correlation_id"`
	Command       string         `json:"command"`
	Parameters    map[string]any `json:"parameters"`
	Source        string         `json:"source"`
}

// ackPayload is received on graylogic/ack/{protocol}/{device_id}.
type ackPayload struct {
	DeviceID      string    `json:"device_id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Success       *bool     `json:"success"`
}
