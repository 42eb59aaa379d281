package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-lighting/internal/device"
)

// TargetResolver expands a target expression into physical devices.
type TargetResolver interface {
	Resolve(ctx context.Context, expr string) ([]device.Target, error)
}

// MQTTClient is the interface for publishing commands to protocol bridges.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// AckTimeout is passed to the tracker; <= 0 uses the tracker default.
	AckTimeout time.Duration
	// QoS for command publishes.
	QoS byte
}

// Dispatch describes a dispatched command batch.
type Dispatch struct {
	CorrelationID string          `json:"correlation_id"`
	Targets       []device.Target `json:"targets"`
	Published     int             `json:"published"`
	Failed        []string        `json:"failed,omitempty"`
}

// Dispatcher resolves targets, opens a correlation batch and publishes one
// MQTT command per device and effect, all stamped with the batch's
// correlation ID.
//
// Publish failures do not abort the dispatch: the affected devices never
// ack and the batch times out with a partial confirmed set.
type Dispatcher struct {
	resolver TargetResolver
	tracker  *Tracker
	mqtt     MQTTClient
	cfg      DispatcherConfig
	logger   Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(resolver TargetResolver, tracker *Tracker, mqtt MQTTClient, cfg DispatcherConfig, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		resolver: resolver,
		tracker:  tracker,
		mqtt:     mqtt,
		cfg:      cfg,
		logger:   logger,
	}
}

// Tracker returns the dispatcher's correlation tracker.
func (d *Dispatcher) Tracker() *Tracker {
	return d.tracker
}

// DispatchSceneCommand applies effects to every device behind target.
//
// Returns:
//   - Dispatch: correlation ID and per-device publish results
//   - error: device.ErrUnknownTarget, ErrInvalidEffect, ErrEmptyTarget or
//     ErrMQTTUnavailable; no batch exists when an error is returned
func (d *Dispatcher) DispatchSceneCommand(ctx context.Context, target string, effects []Effect) (Dispatch, error) {
	actions := make([]Action, len(effects))
	for i, e := range effects {
		actions[i] = Action{Target: target, Effect: e}
	}
	return d.DispatchActions(ctx, "command", actions)
}

// DispatchActions dispatches several targeted effects under a single
// correlation batch covering the union of their devices.
func (d *Dispatcher) DispatchActions(ctx context.Context, source string, actions []Action) (Dispatch, error) {
	if len(actions) == 0 {
		return Dispatch{}, fmt.Errorf("%w: no effects", ErrInvalidEffect)
	}
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return Dispatch{}, err
		}
	}
	if d.mqtt == nil {
		return Dispatch{}, ErrMQTTUnavailable
	}

	type resolved struct {
		action  Action
		targets []device.Target
	}
	plan := make([]resolved, 0, len(actions))
	union := make(map[string]device.Target)
	for _, a := range actions {
		targets, err := d.resolver.Resolve(ctx, a.Target)
		if err != nil {
			return Dispatch{}, err
		}
		plan = append(plan, resolved{action: a, targets: targets})
		for _, t := range targets {
			union[t.DeviceID] = t
		}
	}

	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	correlationID, err := d.tracker.DispatchWithSource(source, ids, d.cfg.AckTimeout)
	if err != nil {
		return Dispatch{}, err
	}

	result := Dispatch{CorrelationID: correlationID, Targets: make([]device.Target, 0, len(ids))}
	for _, id := range ids {
		result.Targets = append(result.Targets, union[id])
	}

	failed := make(map[string]bool)
	for _, p := range plan {
		for _, t := range p.targets {
			if err := d.publish(correlationID, source, t, p.action.Effect); err != nil {
				d.logger.Error("command publish failed",
					"correlation_id", correlationID,
					"device_id", t.DeviceID,
					"error", err,
				)
				failed[t.DeviceID] = true
				continue
			}
			result.Published++
		}
	}
	for id := range failed {
		result.Failed = append(result.Failed, id)
	}
	sort.Strings(result.Failed)

	d.logger.Info("command dispatched",
		"correlation_id", correlationID,
		"source", source,
		"devices", len(ids),
		"published", result.Published,
		"failed", len(result.Failed),
	)
	return result, nil
}

func (d *Dispatcher) publish(correlationID, source string, t device.Target, e Effect) error {
	payload, err := json.Marshal(commandPayload{
		ID:            uuid.NewString(),
		DeviceID:      t.DeviceID,
		CorrelationID: correlationID,
		Command:       string(e.Kind),
		Parameters:    effectParameters(e),
		Source:        source,
	})
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	// Flat topic scheme: graylogic/command/{protocol}/{device_id}
	topic := "graylogic/command/" + string(t.Protocol) + "/" + t.DeviceID
	if err := d.mqtt.Publish(topic, payload, d.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}

	d.logger.Debug("command published", "topic", topic, "command", e.Kind)
	return nil
}

func effectParameters(e Effect) map[string]any {
	params := make(map[string]any, 1)
	if e.Brightness != nil {
		params["level"] = *e.Brightness
	}
	if e.SceneID != "" {
		params["scene_id"] = e.SceneID
	}
	return params
}
