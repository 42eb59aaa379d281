package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-lighting/internal/device"
)

type mockResolver map[string][]device.Target

func (m mockResolver) Resolve(_ context.Context, expr string) ([]device.Target, error) {
	if targets, ok := m[expr]; ok {
		return targets, nil
	}
	return nil, &device.UnknownTargetError{Target: expr}
}

type publishedMessage struct {
	topic   string
	payload commandPayload
}

type mockMQTT struct {
	mu       sync.Mutex
	messages []publishedMessage
	failFor  map[string]bool
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, _ bool) error {
	var p commandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if m.failFor[p.DeviceID] {
		return errors.New("broker unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic: topic, payload: p})
	return nil
}

func testResolver() mockResolver {
	return mockResolver{
		"room:bedroom": {
			{DeviceID: "l-bed-1", Protocol: device.ProtocolDALI},
			{DeviceID: "l-bed-2", Protocol: device.ProtocolDALI},
			{DeviceID: "l-bed-3", Protocol: device.ProtocolZigbee},
		},
		"device:l-bed-1": {{DeviceID: "l-bed-1", Protocol: device.ProtocolDALI}},
		"device:l-porch": {{DeviceID: "l-porch", Protocol: device.ProtocolKNX}},
	}
}

func newTestDispatcher(t *testing.T, mqtt MQTTClient, timeout time.Duration) (*Dispatcher, *mockPublisher) {
	t.Helper()
	pub := newMockPublisher()
	tr := NewTracker(TrackerConfig{DefaultTimeout: time.Hour}, pub)
	t.Cleanup(tr.Close)
	return NewDispatcher(testResolver(), tr, mqtt, DispatcherConfig{AckTimeout: timeout, QoS: 1}, nil), pub
}

func TestDispatcher_PublishesOneCommandPerDevice(t *testing.T) {
	mqtt := &mockMQTT{}
	d, pub := newTestDispatcher(t, mqtt, 0)

	res, err := d.DispatchSceneCommand(context.Background(), "room:bedroom", []Effect{
		{Kind: EffectSetBrightness, Brightness: Brightness(40)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, 3, res.Published)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Targets, 3)

	require.Len(t, mqtt.messages, 3)
	topics := map[string]bool{}
	for _, m := range mqtt.messages {
		topics[m.topic] = true
		assert.Equal(t, res.CorrelationID, m.payload.CorrelationID)
		assert.Equal(t, "set_brightness", m.payload.Command)
		assert.EqualValues(t, 40, m.payload.Parameters["level"])
		assert.Equal(t, "command", m.payload.Source)
		assert.NotEmpty(t, m.payload.ID)
	}
	assert.True(t, topics["graylogic/command/dali/l-bed-1"])
	assert.True(t, topics["graylogic/command/zigbee/l-bed-3"])

	pending := pub.ofType(EventPending)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].DevicesExpected)
}

func TestDispatcher_ThreeDevicesTwoAcksTimesOut(t *testing.T) {
	mqtt := &mockMQTT{}
	d, pub := newTestDispatcher(t, mqtt, 30*time.Millisecond)
	listener := NewAckListener(d.Tracker(), nil)

	res, err := d.DispatchSceneCommand(context.Background(), "room:bedroom", []Effect{{Kind: EffectTurnOn}})
	require.NoError(t, err)

	for _, id := range []string{"l-bed-1", "l-bed-2"} {
		ack := `{"device_id":"` + id + `","correlation_id":"` + res.CorrelationID + `","success":true}`
		require.NoError(t, listener.HandleMessage("graylogic/ack/dali/"+id, []byte(ack)))
	}

	ev := pub.waitFor(t, EventTimeout)
	assert.Equal(t, res.CorrelationID, ev.CorrelationID)
	assert.Equal(t, 3, ev.DevicesExpected)
	assert.Equal(t, 2, ev.DevicesConfirmed)
	assert.Empty(t, pub.ofType(EventConfirmed))
}

func TestDispatcher_UnknownTargetCreatesNoBatch(t *testing.T) {
	mqtt := &mockMQTT{}
	d, pub := newTestDispatcher(t, mqtt, 0)

	_, err := d.DispatchSceneCommand(context.Background(), "room:attic", []Effect{{Kind: EffectTurnOff}})
	assert.ErrorIs(t, err, device.ErrUnknownTarget)
	assert.Equal(t, 0, d.Tracker().Pending())
	assert.Empty(t, pub.all())
	assert.Empty(t, mqtt.messages)
}

func TestDispatcher_InvalidEffects(t *testing.T) {
	d, _ := newTestDispatcher(t, &mockMQTT{}, 0)

	tests := []struct {
		name    string
		effects []Effect
	}{
		{"none", nil},
		{"brightness too high", []Effect{{Kind: EffectSetBrightness, Brightness: Brightness(101)}}},
		{"brightness missing", []Effect{{Kind: EffectSetBrightness}}},
		{"scene missing", []Effect{{Kind: EffectApplyScene}}},
		{"unknown kind", []Effect{{Kind: "strobe"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DispatchSceneCommand(context.Background(), "room:bedroom", tt.effects)
			assert.ErrorIs(t, err, ErrInvalidEffect)
			assert.Equal(t, 0, d.Tracker().Pending())
		})
	}
}

func TestDispatcher_NoMQTT(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, 0)
	_, err := d.DispatchSceneCommand(context.Background(), "room:bedroom", []Effect{{Kind: EffectTurnOn}})
	assert.ErrorIs(t, err, ErrMQTTUnavailable)
}

func TestDispatcher_PublishFailureLeavesBatchOpen(t *testing.T) {
	mqtt := &mockMQTT{failFor: map[string]bool{"l-bed-2": true}}
	d, _ := newTestDispatcher(t, mqtt, 0)

	res, err := d.DispatchSceneCommand(context.Background(), "room:bedroom", []Effect{{Kind: EffectTurnOn}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.Equal(t, []string{"l-bed-2"}, res.Failed)

	snap, ok := d.Tracker().Snapshot(res.CorrelationID)
	require.True(t, ok)
	assert.Equal(t, StatePending, snap.State)
	assert.Len(t, snap.Expected, 3)
}

func TestDispatcher_ActionsShareOneBatch(t *testing.T) {
	mqtt := &mockMQTT{}
	d, pub := newTestDispatcher(t, mqtt, 0)

	res, err := d.DispatchActions(context.Background(), "scene:goodnight", []Action{
		{Target: "room:bedroom", Effect: Effect{Kind: EffectTurnOff}},
		{Target: "device:l-bed-1", Effect: Effect{Kind: EffectSetBrightness, Brightness: Brightness(5)}},
		{Target: "device:l-porch", Effect: Effect{Kind: EffectApplyScene, SceneID: "porch-night"}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Targets, 4)
	assert.Equal(t, 5, res.Published)

	pending := pub.ofType(EventPending)
	require.Len(t, pending, 1)
	assert.Equal(t, 4, pending[0].DevicesExpected)
	assert.Equal(t, "scene:goodnight", pending[0].Source)

	for _, m := range mqtt.messages {
		if m.payload.Command == "apply_scene" {
			assert.Equal(t, "porch-night", m.payload.Parameters["scene_id"])
			assert.Equal(t, "graylogic/command/knx/l-porch", m.topic)
		}
	}

	for _, id := range []string{"l-bed-1", "l-bed-2", "l-bed-3", "l-porch"} {
		d.Tracker().Acknowledge(res.CorrelationID, id)
	}
	assert.Len(t, pub.ofType(EventConfirmed), 1)
}
