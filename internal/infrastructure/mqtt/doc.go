// Package mqtt provides the broker connection used to reach lighting devices.
//
// The core publishes one command per device on
// graylogic/command/{protocol}/{device_id} and listens for acknowledgements
// on graylogic/ack/+/+. Lifecycle events may be mirrored to
// graylogic/core/event/{type} for other consumers on the bus.
//
//	Lighting Core ↔ MQTT Broker ↔ Protocol Bridges ↔ Devices
//
// Connection handling:
//   - Auto-reconnect with backoff between reconnect.initial_delay and max_delay
//   - Subscriptions are restored after reconnect
//   - A retained Last Will on graylogic/system/status marks unexpected loss
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceCommand("dali", "light-kitchen")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
