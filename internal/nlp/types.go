package nlp

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-lighting/internal/conflict"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Domain errors for the nlp package.
var (
	ErrUnknownIntent  = errors.New("nlp: unknown intent")
	ErrInvalidParams  = errors.New("nlp: invalid parameters")
	ErrInvalidTrigger = errors.New("nlp: invalid schedule")
	ErrNoParser       = errors.New("nlp: no parser configured")
)

// Intent names the operation a parsed command requests.
type Intent string

const (
	IntentLightOn         Intent = "light.on"
	IntentLightOff        Intent = "light.off"
	IntentLightBrightness Intent = "light.brightness"
	IntentSceneApply      Intent = "scene.apply"
)

// ParsedCommand is the structured output of the external parser.
type ParsedCommand struct {
	Intent     Intent          `json:"intent"`
	Target     string          `json:"target,omitempty"`
	Scene      string          `json:"scene,omitempty"`
	Params     map[string]any  `json:"params,omitempty"`
	Schedule   *ParsedSchedule `json:"schedule,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
}

// ParsedSchedule turns a command into a recurring schedule. Time selects a
// time trigger; otherwise Event (sunrise or sunset) selects a sun trigger.
//
// Recurrence is "daily", "weekdays", "weekends", "once" or a list of day
// names. "once" and "daily" both mean every day.
type ParsedSchedule struct {
	Time          string `json:"time,omitempty"`
	Event         string `json:"trigger,omitempty"`
	OffsetMinutes int    `json:"offset_minutes,omitempty"`
	Recurrence    any    `json:"recurrence,omitempty"`
}

// Parser turns free text into a ParsedCommand.
type Parser interface {
	Parse(ctx context.Context, text string) (*ParsedCommand, error)
}

// Result reports what Execute did.
type Result struct {
	Intent        Intent             `json:"intent"`
	Preview       string             `json:"preview"`
	Scheduled     bool               `json:"is_scheduled"`
	Executed      bool               `json:"executed"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Devices       int                `json:"devices,omitempty"`
	Schedule      *schedule.Schedule `json:"schedule,omitempty"`
	Conflicts     *conflict.Result   `json:"conflict_analysis,omitempty"`
}
