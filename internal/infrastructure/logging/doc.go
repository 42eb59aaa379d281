// Package logging provides structured logging for the lighting core.
//
// It wraps log/slog so every entry carries the service name and build
// version, and lets each subsystem tag its entries with a component:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("tracker").Info("batch confirmed", "correlation_id", id)
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets such as MQTT passwords or InfluxDB tokens.
package logging
