package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AckTopic matches every device ack: graylogic/ack/{protocol}/{device_id}.
const AckTopic = "graylogic/ack/+/+"

// Acknowledger is the part of Tracker the listener drives.
type Acknowledger interface {
	Acknowledge(correlationID, deviceID string) bool
}

// AckListener decodes bridge acks and feeds them to a tracker.
//
// Its HandleMessage method matches the MQTT client's handler signature:
//
//	client.Subscribe(command.AckTopic, 1, listener.HandleMessage)
type AckListener struct {
	tracker Acknowledger
	logger  Logger
}

// NewAckListener creates an ack listener.
func NewAckListener(tracker Acknowledger, logger Logger) *AckListener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &AckListener{tracker: tracker, logger: logger}
}

// HandleMessage processes one ack message.
//
// The device ID falls back to the last topic segment when the payload
// omits it. Malformed payloads return ErrMalformedAck, which the MQTT
// client logs. Negative acks are logged and do not confirm.
func (l *AckListener) HandleMessage(topic string, payload []byte) error {
	var ack ackPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("%w on %s: %w", ErrMalformedAck, topic, err)
	}
	if ack.CorrelationID == "" {
		return fmt.Errorf("%w on %s: missing correlation_id", ErrMalformedAck, topic)
	}

	deviceID := ack.DeviceID
	if deviceID == "" {
		deviceID = topicDeviceID(topic)
	}
	if deviceID == "" {
		return fmt.Errorf("%w on %s: missing device_id", ErrMalformedAck, topic)
	}

	if ack.Success != nil && !*ack.Success {
		l.logger.Warn("device reported command failure",
			"correlation_id", ack.CorrelationID,
			"device_id", deviceID,
		)
		return nil
	}

	l.tracker.Acknowledge(ack.CorrelationID, deviceID)
	return nil
}

func topicDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "graylogic" || parts[1] != "ack" {
		return ""
	}
	return parts[3]
}
