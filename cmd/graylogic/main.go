// Gray Logic Lighting - Scene Command Correlation and Schedule Conflict Service
//
// This is the main entry point for the Gray Logic lighting core. It fans
// scene commands out to protocol bridges over MQTT, correlates per-device
// acknowledgements into CONFIRMED or TIMED_OUT outcomes, and guards the
// schedule store against conflicting automations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-lighting/internal/api"
	"github.com/nerrad567/gray-logic-lighting/internal/audit"
	"github.com/nerrad567/gray-logic-lighting/internal/automation"
	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/conflict"
	"github.com/nerrad567/gray-logic-lighting/internal/device"
	"github.com/nerrad567/gray-logic-lighting/internal/events"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lighting/internal/metrics"
	"github.com/nerrad567/gray-logic-lighting/internal/nlp"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
	"github.com/nerrad567/gray-logic-lighting/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running without a subcommand serves.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "graylogic",
		Short:         "Gray Logic lighting core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"path to config.yaml (env GRAYLOGIC_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the lighting core",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), configPath, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "check-schedule <file>",
			Short: "Check a schedule definition (YAML or JSON) against saved schedules",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return checkSchedule(cmd.Context(), configPath, args[0], cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "graylogic %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic lighting core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	core, err := buildCore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer core.bus.Close()
	defer core.tracker.Close()

	// Connect to MQTT broker. Without it the core still serves reads and
	// conflict checks; dispatches fail with 503.
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Error("MQTT unavailable, commands disabled", "error", err)
		mqttClient = nil
	} else {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		listener := command.NewAckListener(core.tracker, log.Component("acks"))
		if subErr := mqttClient.Subscribe(command.AckTopic, byte(cfg.MQTT.QoS), listener.HandleMessage); subErr != nil {
			return fmt.Errorf("subscribing to acks: %w", subErr)
		}
		core.wireMQTT(mqttClient, cfg, log)
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		core.tracker.SetRecorder(influxClient)
		core.conflicts.SetRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	deps := core.apiDeps(cfg, db, log)
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return core.journal.Run(gctx) })
	if core.mirror != nil {
		g.Go(func() error { return core.mirror.Run(gctx) })
	}
	if cfg.Schedules.RunnerEnabled {
		g.Go(func() error { return core.runner.Run(gctx) })
	} else {
		log.Info("schedule runner disabled")
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic lighting core stopped")
	return nil
}

// openDatabase opens SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)
	return db, nil
}

// core holds the wired domain components.
type core struct {
	bus        *events.Bus
	devices    *device.Registry
	groups     *device.SQLiteGroupRepository
	resolver   *device.Resolver
	tracker    *command.Tracker
	dispatcher *command.Dispatcher
	scenes     *automation.Registry
	engine     *automation.Engine
	schedules  *schedule.SQLiteRepository
	normalizer *schedule.Normalizer
	conflicts  *conflict.Service
	runner     *schedule.Runner
	nlp        *nlp.Executor
	metrics    *metrics.Collector
	mirror     *events.MQTTMirror
	activity   *audit.SQLiteRepository
	journal    *audit.Journal
}

// buildCore wires registries, the correlation tracker and the conflict
// service. The dispatcher starts without MQTT; wireMQTT replaces it once
// the broker is connected.
func buildCore(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*core, error) {
	c := &core{bus: events.NewBus(log.Component("events"))}

	c.devices = device.NewRegistry(device.NewSQLiteRepository(db.DB))
	c.devices.SetLogger(log.Component("devices"))
	if err := c.devices.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("device registry initialised", "devices", c.devices.GetDeviceCount())

	c.groups = device.NewSQLiteGroupRepository(db.DB)
	c.resolver = device.NewResolver(c.devices, c.groups, nil)

	c.tracker = command.NewTracker(command.TrackerConfig{DefaultTimeout: cfg.GetAckTimeout()}, c.bus)
	c.tracker.SetLogger(log.Component("tracker"))

	c.scenes = automation.NewRegistry(automation.NewSQLiteRepository(db.DB))
	c.scenes.SetLogger(log.Component("scenes"))
	if err := c.scenes.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading scenes: %w", err)
	}
	c.resolver.SetSceneSource(c.scenes)

	c.schedules = schedule.NewSQLiteRepository(db.DB)
	c.normalizer = newNormalizer(cfg)
	detector := conflict.NewDetector(c.resolver, c.normalizer, detectorConfig(cfg))
	detector.SetLogger(log.Component("conflicts"))
	c.conflicts = conflict.NewService(detector, c.schedules, c.bus, conflict.ServiceConfig{
		PendingTTL: cfg.GetPendingTTL(),
	})
	c.conflicts.SetLogger(log.Component("conflicts"))

	c.activity = audit.NewSQLiteRepository(db.DB)
	c.journal = audit.NewJournal(c.bus, c.activity, log.Component("activity"))

	if cfg.Metrics.Enabled {
		c.metrics = metrics.New()
		c.tracker.SetMetrics(c.metrics)
		c.conflicts.SetMetrics(c.metrics)
	}

	c.wireDispatcher(nil, cfg, log)
	return c, nil
}

// wireDispatcher builds everything that publishes commands on top of mqtt.
// A nil client leaves dispatches failing with ErrMQTTUnavailable.
func (c *core) wireDispatcher(client command.MQTTClient, cfg *config.Config, log *logging.Logger) {
	c.dispatcher = command.NewDispatcher(c.resolver, c.tracker, client, command.DispatcherConfig{
		AckTimeout: cfg.GetAckTimeout(),
		QoS:        byte(cfg.Commands.QoS),
	}, log.Component("dispatcher"))

	c.engine = automation.NewEngine(c.scenes, c.dispatcher, c.bus, log.Component("scenes"))

	c.runner = schedule.NewRunner(c.schedules, c.normalizer, c.dispatcher, c.bus, log.Component("runner"))
	if c.metrics != nil {
		c.runner.SetMetrics(c.metrics)
	}

	c.nlp = nlp.NewExecutor(c.dispatcher, c.scenes, c.engine, c.conflicts)
	c.nlp.SetLogger(log.Component("nlp"))
}

// wireMQTT connects the dispatcher and the event mirror to the broker.
func (c *core) wireMQTT(client *mqtt.Client, cfg *config.Config, log *logging.Logger) {
	c.wireDispatcher(client, cfg, log)
	c.mirror = events.NewMQTTMirror(c.bus, client, byte(cfg.MQTT.QoS), log.Component("mirror"))
}

// apiDeps collects the API server dependencies.
func (c *core) apiDeps(cfg *config.Config, db *database.DB, log *logging.Logger) api.Deps {
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Devices:     c.devices,
		Groups:      c.groups,
		Dispatcher:  c.dispatcher,
		Scenes:      c.scenes,
		SceneEngine: c.engine,
		Schedules:   c.schedules,
		Conflicts:   c.conflicts,
		NLP:         c.nlp,
		Bus:         c.bus,
		Activity:    c.activity,
		DB:          db.DB,
		Version:     version,
	}
	if c.metrics != nil {
		deps.Metrics = c.metrics.Handler()
	}
	return deps
}

func newNormalizer(cfg *config.Config) *schedule.Normalizer {
	var sun schedule.SunTimes
	loc := cfg.Site.Location
	if loc.Latitude != 0 || loc.Longitude != 0 {
		sun = schedule.NewSolarClock(loc.Latitude, loc.Longitude)
	}
	return schedule.NewNormalizer(schedule.NormalizerConfig{
		Location: cfg.GetLocation(),
		Grace:    cfg.GetGraceWindow(),
		SunGrace: cfg.GetSunGraceWindow(),
	}, sun)
}

func detectorConfig(cfg *config.Config) conflict.DetectorConfig {
	return conflict.DetectorConfig{
		Horizon:             cfg.GetHorizon(),
		BrightnessTolerance: cfg.Schedules.BrightnessTolerance,
		SimilarityWindow:    cfg.GetSimilarityWindow(),
		ShiftMinutes:        cfg.Schedules.ShiftMinutes,
	}
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
