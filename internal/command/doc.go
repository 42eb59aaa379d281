// Package command dispatches lighting commands and correlates bridge acks.
//
// A dispatch resolves its target to physical devices, opens a correlation
// batch in the Tracker and publishes one MQTT command per device, each
// carrying the batch's correlation ID:
//
//	Dispatcher ──resolve──▶ device.Resolver
//	    │
//	    ├──open batch──▶ Tracker ──SCENE_PENDING──▶ Publisher
//	    │
//	    └──publish──▶ graylogic/command/{protocol}/{device_id}
//
//	graylogic/ack/+/+ ──▶ AckListener ──▶ Tracker.Acknowledge
//	    all acked      ──▶ SCENE_CONFIRMED (latency)
//	    deadline first ──▶ SCENE_TIMEOUT (partial confirmed set)
//
// Every batch ends in exactly one terminal event. Stale, duplicate and
// foreign acks are ignored.
//
// # Thread Safety
//
// Tracker, Dispatcher and AckListener are safe for concurrent use.
// Acks and deadline timers for the same batch are serialised on the
// batch's own mutex.
package command
