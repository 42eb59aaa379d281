package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the lighting core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Commands  CommandsConfig  `yaml:"commands"`
	Schedules SchedulesConfig `yaml:"schedules"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for sunrise and sunset calculations.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
// Command outcomes are written here when enabled.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CommandsConfig contains command fanout and acknowledgement tracking settings.
type CommandsConfig struct {
	// AckTimeout is how long a batch waits for every device to acknowledge (seconds).
	AckTimeout int `yaml:"ack_timeout"`

	// QoS used for per-device command publishes.
	QoS int `yaml:"qos"`
}

// SchedulesConfig contains schedule normalisation and conflict detection settings.
type SchedulesConfig struct {
	// HorizonDays bounds how far ahead trigger occurrences are expanded.
	HorizonDays int `yaml:"horizon_days"`

	// GraceWindow is the length of a time trigger occurrence window (seconds).
	GraceWindow int `yaml:"grace_window"`

	// SunGraceWindow is the length of a sun trigger occurrence window (seconds).
	SunGraceWindow int `yaml:"sun_grace_window"`

	// BrightnessTolerance is the largest brightness difference (percent)
	// that is still considered compatible.
	BrightnessTolerance int `yaml:"brightness_tolerance"`

	// SimilarityWindow is how close two time-of-day triggers must be (minutes)
	// to be reported as similar when their windows never overlap.
	SimilarityWindow int `yaml:"similarity_window"`

	// ShiftMinutes is the size of the proposed shift resolution.
	ShiftMinutes int `yaml:"shift_minutes"`

	// PendingTTL is how long a checked candidate remains resolvable (seconds).
	PendingTTL int `yaml:"pending_ttl"`

	// RunnerEnabled starts the per-minute schedule runner.
	RunnerEnabled bool `yaml:"runner_enabled"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_COMMANDS_ACK_TIMEOUT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with defaults.
// It is the starting point for Load and is used directly by tests and tools
// that run without a config file.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/lighting.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-lighting",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Commands: CommandsConfig{
			AckTimeout: 30,
			QoS:        1,
		},
		Schedules: SchedulesConfig{
			HorizonDays:         14,
			GraceWindow:         120,
			SunGraceWindow:      600,
			BrightnessTolerance: 0,
			SimilarityWindow:    30,
			ShiftMinutes:        15,
			PendingTTL:          900,
			RunnerEnabled:       true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("GRAYLOGIC_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	envInt("GRAYLOGIC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	envInt("GRAYLOGIC_API_PORT", &cfg.API.Port)

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Commands and schedules
	envInt("GRAYLOGIC_COMMANDS_ACK_TIMEOUT", &cfg.Commands.AckTimeout)
	envInt("GRAYLOGIC_SCHEDULES_BRIGHTNESS_TOLERANCE", &cfg.Schedules.BrightnessTolerance)
	envInt("GRAYLOGIC_SCHEDULES_HORIZON_DAYS", &cfg.Schedules.HorizonDays)
}

// envInt overwrites dst when the variable holds a valid integer.
func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}
	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Commands.AckTimeout < 1 {
		errs = append(errs, "commands.ack_timeout must be at least 1 second")
	}
	if c.Commands.QoS < 0 || c.Commands.QoS > 2 {
		errs = append(errs, "commands.qos must be 0, 1, or 2")
	}

	if c.Schedules.HorizonDays < 1 {
		errs = append(errs, "schedules.horizon_days must be at least 1")
	}
	if c.Schedules.GraceWindow < 1 || c.Schedules.SunGraceWindow < 1 {
		errs = append(errs, "schedules grace windows must be at least 1 second")
	}
	if c.Schedules.BrightnessTolerance < 0 || c.Schedules.BrightnessTolerance > 100 {
		errs = append(errs, "schedules.brightness_tolerance must be between 0 and 100")
	}
	if c.Schedules.ShiftMinutes < 1 {
		errs = append(errs, "schedules.shift_minutes must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAckTimeout returns the default command acknowledgement deadline.
func (c *Config) GetAckTimeout() time.Duration {
	return time.Duration(c.Commands.AckTimeout) * time.Second
}

// GetHorizon returns the conflict detection horizon.
func (c *Config) GetHorizon() time.Duration {
	return time.Duration(c.Schedules.HorizonDays) * 24 * time.Hour
}

// GetGraceWindow returns the occurrence window length for time triggers.
func (c *Config) GetGraceWindow() time.Duration {
	return time.Duration(c.Schedules.GraceWindow) * time.Second
}

// GetSunGraceWindow returns the occurrence window length for sun triggers.
func (c *Config) GetSunGraceWindow() time.Duration {
	return time.Duration(c.Schedules.SunGraceWindow) * time.Second
}

// GetSimilarityWindow returns how close similar time triggers are.
func (c *Config) GetSimilarityWindow() time.Duration {
	return time.Duration(c.Schedules.SimilarityWindow) * time.Minute
}

// GetPendingTTL returns how long checked candidates are kept for resolution.
func (c *Config) GetPendingTTL() time.Duration {
	return time.Duration(c.Schedules.PendingTTL) * time.Second
}

// GetLocation returns the site time zone, falling back to UTC.
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
