package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
	"github.com/nerrad567/gray-logic-lighting/migrations"
)

// errBlockingConflicts makes check-schedule exit non-zero.
var errBlockingConflicts = errors.New("schedule has blocking conflicts")

// migrate applies pending migrations and reports what ran.
func migrate(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only after migrate

	_, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for _, m := range pending {
		fmt.Fprintf(out, "applied %s %s\n", m.Version, m.Name)
	}
	fmt.Fprintf(out, "%d migration(s) applied to %s\n", len(pending), db.Path())
	return nil
}

// checkSchedule runs a conflict check for the schedule in path against the
// saved schedules without saving it. The result is printed as JSON.
func checkSchedule(ctx context.Context, configPath, path string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	candidate, err := loadScheduleFile(path)
	if err != nil {
		return err
	}

	log := logging.Discard()
	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only

	c, err := buildCore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer c.bus.Close()
	defer c.tracker.Close()

	res, err := c.conflicts.Check(ctx, candidate)
	if err != nil {
		return fmt.Errorf("checking schedule: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if blocking, _, _ := res.Counts(); blocking > 0 {
		return errBlockingConflicts
	}
	return nil
}

// loadScheduleFile reads a schedule definition. YAML is a superset of
// JSON, so both are accepted; the document is re-encoded as JSON to reuse
// the schedule's json field names.
func loadScheduleFile(path string) (*schedule.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing schedule file: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule file: %w", err)
	}

	s := &schedule.Schedule{Enabled: true}
	if err := json.Unmarshal(asJSON, s); err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}
	return s, nil
}
