package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-lighting/internal/automation"
	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/conflict"
	"github.com/nerrad567/gray-logic-lighting/internal/device"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Source is the trigger source recorded for NLP commands.
const Source = "nlp"

// Logger is the logging interface used by the executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher sends actions as one correlated batch.
type Dispatcher interface {
	DispatchActions(ctx context.Context, source string, actions []command.Action) (command.Dispatch, error)
}

// SceneLookup finds saved scenes.
type SceneLookup interface {
	GetScene(ctx context.Context, id string) (*automation.Scene, error)
	GetSceneBySlug(ctx context.Context, slug string) (*automation.Scene, error)
}

// SceneActivator dispatches a saved scene.
type SceneActivator interface {
	ActivateScene(ctx context.Context, sceneID, triggerSource string) (command.Dispatch, error)
}

// Submitter saves schedule candidates after a conflict check.
type Submitter interface {
	Submit(ctx context.Context, candidate *schedule.Schedule, confirm bool) (*schedule.Schedule, error)
}

// Executor runs parsed commands.
type Executor struct {
	dispatcher Dispatcher
	scenes     SceneLookup
	activator  SceneActivator
	schedules  Submitter
	parser     Parser
	logger     Logger
}

// NewExecutor creates an executor. scenes may be nil, in which case
// scene.apply is rejected.
func NewExecutor(dispatcher Dispatcher, scenes SceneLookup, activator SceneActivator, schedules Submitter) *Executor {
	return &Executor{
		dispatcher: dispatcher,
		scenes:     scenes,
		activator:  activator,
		schedules:  schedules,
		logger:     noopLogger{},
	}
}

// SetLogger sets the executor's logger.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetParser installs the text parser used by ExecuteText.
func (e *Executor) SetParser(p Parser) {
	e.parser = p
}

// ExecuteText parses text with the configured parser and executes it.
func (e *Executor) ExecuteText(ctx context.Context, text string) (Result, error) {
	if e.parser == nil {
		return Result{}, ErrNoParser
	}
	cmd, err := e.parser.Parse(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("parsing command: %w", err)
	}
	return e.Execute(ctx, cmd)
}

// Execute runs a parsed command.
//
// Immediate commands are dispatched and the batch's correlation ID is
// returned. Scheduled commands are submitted unconfirmed: on conflict the
// returned Result carries the conflict analysis and the error is the
// *conflict.BlockingError.
func (e *Executor) Execute(ctx context.Context, cmd *ParsedCommand) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: empty command", ErrInvalidParams)
	}
	res := Result{Intent: cmd.Intent, Preview: Preview(cmd), Scheduled: cmd.Schedule != nil}

	action, err := e.action(ctx, cmd)
	if err != nil {
		return res, err
	}

	if cmd.Schedule != nil {
		return e.schedule(ctx, cmd, action, res)
	}

	var dispatch command.Dispatch
	if cmd.Intent == IntentSceneApply && cmd.Target == "" && e.activator != nil {
		dispatch, err = e.activator.ActivateScene(ctx, action.Effect.SceneID, Source)
	} else {
		dispatch, err = e.dispatcher.DispatchActions(ctx, Source, []command.Action{action})
	}
	if err != nil {
		return res, err
	}

	res.Executed = true
	res.CorrelationID = dispatch.CorrelationID
	res.Devices = len(dispatch.Targets)
	e.logger.Info("nlp command executed",
		"intent", cmd.Intent,
		"target", action.Target,
		"correlation_id", dispatch.CorrelationID,
	)
	return res, nil
}

func (e *Executor) schedule(ctx context.Context, cmd *ParsedCommand, action command.Action, res Result) (Result, error) {
	candidate, err := BuildSchedule(cmd, action)
	if err != nil {
		return res, err
	}

	saved, err := e.schedules.Submit(ctx, candidate, false)
	if err != nil {
		var blocking *conflict.BlockingError
		if errors.As(err, &blocking) {
			res.Schedule = candidate
			res.Conflicts = &blocking.Result
		}
		return res, err
	}

	res.Executed = true
	res.Schedule = saved
	e.logger.Info("nlp schedule created",
		"intent", cmd.Intent,
		"schedule_id", saved.ID,
		"trigger", saved.Trigger.String(),
	)
	return res, nil
}

// action builds the single action a command stands for.
func (e *Executor) action(ctx context.Context, cmd *ParsedCommand) (command.Action, error) {
	target := NormalizeTarget(cmd.Target)

	var effect command.Effect
	switch cmd.Intent {
	case IntentLightOn:
		effect = command.Effect{Kind: command.EffectTurnOn}
	case IntentLightOff:
		effect = command.Effect{Kind: command.EffectTurnOff}
	case IntentLightBrightness:
		level, err := intParam(cmd.Params, "brightness")
		if err != nil {
			return command.Action{}, err
		}
		effect = command.Effect{Kind: command.EffectSetBrightness, Brightness: command.Brightness(level)}
	case IntentSceneApply:
		scene, err := e.findScene(ctx, cmd.Scene)
		if err != nil {
			return command.Action{}, err
		}
		effect = command.Effect{Kind: command.EffectApplyScene, SceneID: scene.ID}
		if cmd.Target == "" {
			target = device.TargetPrefixScene + scene.ID
		}
	default:
		return command.Action{}, fmt.Errorf("%w: %q", ErrUnknownIntent, cmd.Intent)
	}

	action := command.Action{Target: target, Effect: effect}
	if err := action.Validate(); err != nil {
		return command.Action{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return action, nil
}

// findScene accepts a scene ID, slug or display name.
func (e *Executor) findScene(ctx context.Context, name string) (*automation.Scene, error) {
	if e.scenes == nil {
		return nil, fmt.Errorf("%w: scenes unavailable", ErrUnknownIntent)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: scene is required", ErrInvalidParams)
	}
	if scene, err := e.scenes.GetScene(ctx, name); err == nil {
		return scene, nil
	}
	scene, err := e.scenes.GetSceneBySlug(ctx, automation.GenerateSlug(name))
	if err != nil {
		return nil, err
	}
	return scene, nil
}

// NormalizeTarget maps parser output onto a target expression. Empty means
// every device; prefixed expressions pass through; anything else becomes a
// bare lowercase id with spaces replaced by hyphens.
func NormalizeTarget(target string) string {
	t := strings.TrimSpace(target)
	switch {
	case t == "" || strings.EqualFold(t, device.TargetAll):
		return device.TargetAll
	case strings.Contains(t, ":"):
		return t
	}
	return strings.Join(strings.Fields(strings.ToLower(t)), "-")
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParams, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidParams, key)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParams, key)
	}
}
