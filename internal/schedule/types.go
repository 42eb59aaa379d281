package schedule

import (
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// TriggerKind selects how a schedule's fire time is computed.
type TriggerKind string

const (
	// TriggerTime fires at a wall-clock time of day.
	TriggerTime TriggerKind = "time"
	// TriggerSun fires relative to sunrise or sunset.
	TriggerSun TriggerKind = "sun"
)

// SunEvent is a solar event a sun trigger is anchored to.
type SunEvent string

const (
	Sunrise SunEvent = "sunrise"
	Sunset  SunEvent = "sunset"
)

// Trigger is a tagged variant: time triggers use At, sun triggers use
// Event and OffsetMinutes. Weekdays restricts either kind; empty means
// every day.
type Trigger struct {
	Kind          TriggerKind `json:"kind"`
	At            string      `json:"at,omitempty"`       // HH:MM or HH:MM:SS
	Weekdays      []string    `json:"weekdays,omitempty"` // "mon" or "monday"
	Event         SunEvent    `json:"event,omitempty"`
	OffsetMinutes int         `json:"offset_minutes,omitempty"`
}

// Action is a targeted lighting effect.
type Action = command.Action

// Schedule is a persisted time- or sun-triggered automation.
type Schedule struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	Enabled         bool       `json:"enabled"`
	Trigger         Trigger    `json:"trigger"`
	Actions         []Action   `json:"actions"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int        `json:"trigger_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DeepCopy returns a copy that shares no mutable state with s.
func (s *Schedule) DeepCopy() *Schedule {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Description != nil {
		d := *s.Description
		cp.Description = &d
	}
	if s.LastTriggeredAt != nil {
		at := *s.LastTriggeredAt
		cp.LastTriggeredAt = &at
	}
	cp.Trigger.Weekdays = slices.Clone(s.Trigger.Weekdays)
	cp.Actions = make([]Action, len(s.Actions))
	for i, a := range s.Actions {
		cp.Actions[i] = a
		if a.Effect.Brightness != nil {
			cp.Actions[i].Effect.Brightness = command.Brightness(*a.Effect.Brightness)
		}
	}
	return &cp
}

// Window is a half-open occurrence interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two windows share any instant.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}
