package events

import (
	"context"
	"encoding/json"
	"strings"
)

// MQTTPublisher is the interface for publishing to the MQTT broker.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTMirror relays bus events to graylogic/core/event/{type} so bridges
// and external tooling can follow command lifecycles.
type MQTTMirror struct {
	bus    *Bus
	mqtt   MQTTPublisher
	qos    byte
	logger Logger
}

// NewMQTTMirror creates a relay from bus to mqtt.
func NewMQTTMirror(bus *Bus, mqtt MQTTPublisher, qos byte, logger Logger) *MQTTMirror {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTMirror{bus: bus, mqtt: mqtt, qos: qos, logger: logger}
}

// Run relays events until ctx is cancelled or the bus closes.
func (m *MQTTMirror) Run(ctx context.Context) error {
	msgs, cancel := m.bus.Subscribe(AllTopics)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			m.relay(msg)
		}
	}
}

func (m *MQTTMirror) relay(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Warn("event not mirrored", "type", msg.Type, "error", err)
		return
	}
	topic := "graylogic/core/event/" + strings.ToLower(msg.Type)
	if err := m.mqtt.Publish(topic, payload, m.qos, false); err != nil {
		m.logger.Debug("event mirror publish failed", "topic", topic, "error", err)
	}
}
