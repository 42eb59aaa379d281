package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementCommandOutcomes = "command_outcomes"
	measurementConflictChecks  = "schedule_conflict_checks"
)

// RecordCommandOutcome writes the terminal state of a command batch.
//
// Parameters:
//   - correlationID: Batch correlation id (stored as a field, not a tag,
//     to keep series cardinality bounded)
//   - state: CONFIRMED or TIMED_OUT
//   - source: What issued the command (e.g. "api", "scene", "schedule")
//   - expected, confirmed: Device counts
//   - latency: Time from dispatch to the terminal transition
func (c *Client) RecordCommandOutcome(correlationID, state, source string, expected, confirmed int, latency time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(outcomePoint(correlationID, state, source, expected, confirmed, latency, time.Now()))
}

// RecordConflictCheck writes a summary of one schedule conflict check.
func (c *Client) RecordConflictCheck(scheduleID string, blocking, warning, info int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(conflictPoint(scheduleID, blocking, warning, info, time.Now()))
}

func outcomePoint(correlationID, state, source string, expected, confirmed int, latency time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementCommandOutcomes,
		map[string]string{
			"state":  state,
			"source": source,
		},
		map[string]interface{}{
			"correlation_id":    correlationID,
			"devices_expected":  expected,
			"devices_confirmed": confirmed,
			"latency_ms":        latency.Milliseconds(),
		},
		ts,
	)
}

func conflictPoint(scheduleID string, blocking, warning, info int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementConflictChecks,
		map[string]string{"schedule_id": scheduleID},
		map[string]interface{}{
			"blocking": blocking,
			"warning":  warning,
			"info":     info,
		},
		ts,
	)
}
