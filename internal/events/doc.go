// Package events is the in-process event bus for the lighting core.
//
// Producers (the command tracker, the schedule service) publish typed
// events on named topics. Consumers (the WebSocket hub, the MQTT mirror)
// subscribe to a topic, or to every topic with AllTopics, and receive
// messages on a buffered channel.
//
// Delivery is at-most-once and non-durable: a subscriber whose buffer is
// full misses the message. Publish never blocks.
//
// Usage:
//
//	bus := events.NewBus(log)
//	msgs, cancel := bus.Subscribe(command.EventTopic)
//	defer cancel()
//
//	for msg := range msgs {
//	    fmt.Println(msg.Type, msg.Payload)
//	}
package events
