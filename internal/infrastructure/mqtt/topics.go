package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots. Device topics use the flat scheme
// graylogic/{category}/{protocol}/{device_id}.
const (
	TopicPrefix       = "graylogic"
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for the lighting core's MQTT topics.
//
//	topic := mqtt.Topics{}.DeviceCommand("dali", "light-kitchen")
//	// graylogic/command/dali/light-kitchen
type Topics struct{}

// DeviceCommand returns the topic a device's bridge listens on for commands.
func (Topics) DeviceCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, deviceID)
}

// DeviceAck returns the topic a device acknowledges commands on.
func (Topics) DeviceAck(protocol, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, deviceID)
}

// AllDeviceAcks matches every device acknowledgement: graylogic/ack/+/+
func (Topics) AllDeviceAcks() string {
	return TopicPrefix + "/ack/+/+"
}

// CoreEvent returns the topic core lifecycle events are mirrored to.
//
// Example: graylogic/core/event/scene_confirmed
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, strings.ToLower(eventType))
}

// AllCoreEvents matches every mirrored core event: graylogic/core/event/+
func (Topics) AllCoreEvents() string {
	return TopicPrefixCore + "/event/+"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AckDeviceID extracts the device ID from an acknowledgement topic.
// It returns "" when topic is not of the form graylogic/ack/{protocol}/{device_id}.
func (Topics) AckDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "ack" {
		return ""
	}
	return parts[3]
}
