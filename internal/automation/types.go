package automation

import (
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// Scene is a saved set of lighting actions activated together. All of a
// scene's actions are dispatched under one correlation batch.
type Scene struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Description (optional)
	Description *string `json:"description,omitempty"`

	Enabled bool `json:"enabled"`

	// Actions to dispatch (ordered)
	Actions []SceneAction `json:"actions"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SceneAction applies an effect to a target expression ("room:living",
// "group:downstairs", "device:hall-pendant", ...).
type SceneAction = command.Action

// DeepCopy creates a complete independent copy of the Scene.
// This is essential for cache isolation.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}

	cpy := *s
	cpy.Description = cloneStringPtr(s.Description)

	if s.Actions != nil {
		cpy.Actions = make([]SceneAction, len(s.Actions))
		for i, action := range s.Actions {
			cpy.Actions[i] = action
			if action.Effect.Brightness != nil {
				cpy.Actions[i].Effect.Brightness = command.Brightness(*action.Effect.Brightness)
			}
		}
	}
	return &cpy
}

// Targets returns the target expressions of every action, in order.
func (s *Scene) Targets() []string {
	targets := make([]string, len(s.Actions))
	for i, a := range s.Actions {
		targets[i] = a.Target
	}
	return targets
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
