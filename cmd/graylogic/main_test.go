package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/device"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
	"github.com/nerrad567/gray-logic-lighting/migrations"
)

// writeConfig writes a minimal config pointing at dbPath.
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	configContent := `
site:
  id: test-site
  timezone: UTC

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
  qos: 1

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18080
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want database.path validation failure", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYLOGIC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "graylogic "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lighting.db")
	configPath := writeConfig(t, dbPath)

	var out bytes.Buffer
	if err := migrate(context.Background(), configPath, &out); err != nil {
		t.Fatalf("migrate() error: %v", err)
	}
	if !strings.Contains(out.String(), "applied") {
		t.Errorf("first run output = %q", out.String())
	}

	out.Reset()
	if err := migrate(context.Background(), configPath, &out); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "0 migration(s)") {
		t.Errorf("second run output = %q, want nothing pending", out.String())
	}
}

func TestLoadScheduleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	content := `
name: Night off
trigger:
  kind: time
  at: "23:00"
  weekdays: [mon, tue]
actions:
  - target: all
    effect:
      kind: turn_off
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := loadScheduleFile(path)
	if err != nil {
		t.Fatalf("loadScheduleFile() error: %v", err)
	}
	if s.Name != "Night off" || !s.Enabled || s.Trigger.At != "23:00" || len(s.Trigger.Weekdays) != 2 {
		t.Errorf("schedule = %+v", s)
	}
	if len(s.Actions) != 1 || s.Actions[0].Effect.Kind != command.EffectTurnOff {
		t.Errorf("actions = %+v", s.Actions)
	}

	if _, err := loadScheduleFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestCheckSchedule(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lighting.db")
	configPath := writeConfig(t, dbPath)
	ctx := context.Background()

	// Seed one lamp and an existing 22:00 all-off schedule.
	db, err := database.Open(config.DatabaseConfig{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	lamp := &device.Device{ID: "lamp-1", Name: "Lamp", Slug: "lamp", Protocol: device.ProtocolDALI}
	if err := device.NewSQLiteRepository(db.DB).Create(ctx, lamp); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	existing := &schedule.Schedule{
		ID:      "all-off",
		Name:    "All off",
		Enabled: true,
		Trigger: schedule.Trigger{Kind: schedule.TriggerTime, At: "22:00"},
		Actions: []schedule.Action{{Target: "all", Effect: command.Effect{Kind: command.EffectTurnOff}}},
	}
	if err := schedule.NewSQLiteRepository(db.DB).Create(ctx, existing); err != nil {
		t.Fatalf("seeding schedule: %v", err)
	}
	db.Close() //nolint:errcheck // reopened by checkSchedule

	write := func(name, at string) string {
		path := filepath.Join(t.TempDir(), name)
		content := `{"name": "Lamp on", "trigger": {"kind": "time", "at": "` + at + `"},
			"actions": [{"target": "device:lamp-1", "effect": {"kind": "turn_on"}}]}`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	var out bytes.Buffer
	err = checkSchedule(ctx, configPath, write("clash.json", "22:00"), &out)
	if !errors.Is(err, errBlockingConflicts) {
		t.Fatalf("checkSchedule() error = %v, want errBlockingConflicts", err)
	}
	if !strings.Contains(out.String(), `"severity": "BLOCKING"`) {
		t.Errorf("output missing blocking conflict: %s", out.String())
	}

	out.Reset()
	if err := checkSchedule(ctx, configPath, write("clear.json", "08:00"), &out); err != nil {
		t.Fatalf("checkSchedule() non-overlapping error: %v", err)
	}
	if !strings.Contains(out.String(), `"has_conflicts": false`) {
		t.Errorf("output = %s", out.String())
	}

	list, err := func() ([]schedule.Schedule, error) {
		db, err := database.Open(config.DatabaseConfig{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			return nil, err
		}
		defer db.Close() //nolint:errcheck // test
		return schedule.NewSQLiteRepository(db.DB).List(ctx)
	}()
	if err != nil {
		t.Fatalf("listing schedules: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("check-schedule saved schedules: %d, want 1", len(list))
	}
}
