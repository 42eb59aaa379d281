package automation

import (
	"context"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// Scene activity is published on the command lifecycle topic once the
// batch's SCENE_PENDING event has gone out. It carries the batch's
// correlation ID.
const EventSceneActivated = "SCENE_ACTIVATED"

// Dispatcher sends a set of actions as one correlated command batch.
type Dispatcher interface {
	DispatchActions(ctx context.Context, source string, actions []command.Action) (command.Dispatch, error)
}

// Publisher delivers scene activity events.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// Engine activates scenes.
//
// Activation loads the scene from the registry and hands every action to
// the command dispatcher at once, so the whole scene is tracked under a
// single correlation ID and ends in exactly one CONFIRMED or TIMEOUT event.
//
// Thread Safety: ActivateScene is safe for concurrent use.
type Engine struct {
	registry   *Registry
	dispatcher Dispatcher
	publisher  Publisher
	logger     Logger
}

// NewEngine creates a new scene engine.
//
// Parameters:
//   - registry: Scene registry for loading scene definitions
//   - dispatcher: Command dispatcher that fans actions out to devices
//   - publisher: Event sink for activation events (may be nil)
//   - logger: Logger instance
func NewEngine(registry *Registry, dispatcher Dispatcher, publisher Publisher, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// ActivateScene dispatches every action of a scene.
//
// Parameters:
//   - ctx: Context for cancellation
//   - sceneID: The scene to activate
//   - triggerSource: Where the activation came from (api, nlp, schedule:<id>)
//
// Returns:
//   - command.Dispatch: correlation ID and per-device publish results
//   - error: nil on success, or:
//   - ErrSceneNotFound if scene doesn't exist
//   - ErrSceneDisabled if scene is disabled
//   - any dispatcher error (unknown target, MQTT unavailable); no batch
//     exists in that case
func (e *Engine) ActivateScene(ctx context.Context, sceneID, triggerSource string) (command.Dispatch, error) {
	scene, err := e.registry.GetScene(ctx, sceneID)
	if err != nil {
		return command.Dispatch{}, err
	}
	if !scene.Enabled {
		return command.Dispatch{}, ErrSceneDisabled
	}

	dispatch, err := e.dispatcher.DispatchActions(ctx, "scene:"+scene.ID, scene.Actions)
	if err != nil {
		e.logger.Warn("scene activation failed",
			"scene_id", scene.ID,
			"trigger_source", triggerSource,
			"error", err,
		)
		return command.Dispatch{}, err
	}

	e.logger.Info("scene activated",
		"scene_id", scene.ID,
		"scene_name", scene.Name,
		"trigger_source", triggerSource,
		"correlation_id", dispatch.CorrelationID,
		"devices", len(dispatch.Targets),
	)

	if e.publisher != nil {
		e.publisher.Publish(command.EventTopic, EventSceneActivated, map[string]any{
			"scene_id":       scene.ID,
			"scene_name":     scene.Name,
			"correlation_id": dispatch.CorrelationID,
			"trigger_source": triggerSource,
			"devices":        len(dispatch.Targets),
		})
	}
	return dispatch, nil
}
