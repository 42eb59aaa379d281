// Package api implements the HTTP REST API and WebSocket server for the
// lighting core.
//
// This package provides:
//   - REST endpoints for devices, groups, scenes and schedules
//   - Command dispatch with correlation tracking lookups
//   - Schedule conflict checks and one-click resolutions
//   - NLP command execution
//   - WebSocket hub relaying in-process events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Events
//
// Every event published on the in-process bus is relayed to WebSocket
// clients subscribed to its topic ("scene.commands", "schedule.changed",
// or "*" for all).
//
// # Conflicts
//
// Saving a schedule that conflicts with existing schedules returns 409 with
// the full conflict result. Resubmit with "confirm": true, or apply one of
// the proposed resolutions.
//
// # Graceful Degradation
//
// The server operates without MQTT: reads, schedules and WebSocket
// connections work, only command dispatch fails with 503.
package api
