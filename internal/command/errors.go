package command

import "errors"

// Domain errors for the command package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, command.ErrEmptyTarget) {
//	    // nothing to dispatch
//	}
var (
	// ErrEmptyTarget is returned when a dispatch has no devices. No batch is created.
	ErrEmptyTarget = errors.New("command: empty target")

	// ErrStaleAck marks an ack for an unknown, finished or evicted batch.
	// It is only ever logged.
	ErrStaleAck = errors.New("command: stale ack")

	// ErrInvalidEffect is returned when an effect fails validation.
	ErrInvalidEffect = errors.New("command: invalid effect")

	// ErrTrackerClosed is returned when dispatching after Close.
	ErrTrackerClosed = errors.New("command: tracker closed")

	// ErrMQTTUnavailable is returned when no MQTT publisher is configured.
	ErrMQTTUnavailable = errors.New("command: MQTT unavailable")

	// ErrMalformedAck is returned for ack payloads that cannot be decoded.
	ErrMalformedAck = errors.New("command: malformed ack")
)
