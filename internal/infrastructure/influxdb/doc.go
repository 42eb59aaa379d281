// Package influxdb records lighting command telemetry in InfluxDB v2.
//
// Every command batch that reaches a terminal state is written to the
// command_outcomes measurement (state, source, device counts, latency), and
// schedule conflict checks are summarised in schedule_conflict_checks.
// The integration is optional: Connect returns ErrDisabled when
// influxdb.enabled is false and callers carry on without telemetry.
package influxdb
