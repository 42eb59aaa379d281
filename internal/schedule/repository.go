package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines schedule persistence.
type Repository interface {
	// Get returns ErrScheduleNotFound if the schedule does not exist.
	Get(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]Schedule, error)
	// LoadEnabled returns only enabled schedules.
	LoadEnabled(ctx context.Context) ([]Schedule, error)
	Create(ctx context.Context, s *Schedule) error
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id string) error
	// RecordTrigger stamps last_triggered_at and increments trigger_count.
	RecordTrigger(ctx context.Context, id string, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const scheduleColumns = `id, name, description, enabled, trigger_config, actions, last_triggered_at, trigger_count, created_at, updated_at`

// Get retrieves a schedule by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	return s, nil
}

// List retrieves every schedule ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY name, id`)
}

// LoadEnabled retrieves enabled schedules ordered by name.
func (r *SQLiteRepository) LoadEnabled(ctx context.Context) ([]Schedule, error) {
	return r.query(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE enabled = 1 ORDER BY name, id`)
}

// Create inserts a schedule, generating an ID when absent.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = GenerateID()
	}
	trigger, actions, err := marshalSchedule(s)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, nullableString(s.Description), boolToInt(s.Enabled), trigger, actions,
		nullableTime(s.LastTriggeredAt), s.TriggerCount,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrScheduleExists
		}
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// Update replaces a schedule's definition. Trigger statistics are kept.
func (r *SQLiteRepository) Update(ctx context.Context, s *Schedule) error {
	trigger, actions, err := marshalSchedule(s)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET name = ?, description = ?, enabled = ?, trigger_config = ?, actions = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, nullableString(s.Description), boolToInt(s.Enabled), trigger, actions,
		s.UpdatedAt.Format(time.RFC3339), s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes a schedule.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	return expectOneRow(result)
}

// RecordTrigger updates execution statistics.
func (r *SQLiteRepository) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET last_triggered_at = ?, trigger_count = trigger_count + 1
		WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("recording schedule trigger: %w", err)
	}
	return expectOneRow(result)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var (
		s                    Schedule
		description, lastRun sql.NullString
		enabled              int
		trigger, actions     string
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&s.ID, &s.Name, &description, &enabled, &trigger, &actions,
		&lastRun, &s.TriggerCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s.Enabled = enabled != 0
	if description.Valid {
		s.Description = &description.String
	}
	if err := json.Unmarshal([]byte(trigger), &s.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshalling trigger_config: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &s.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}
	if lastRun.Valid && lastRun.String != "" {
		at, err := time.Parse(time.RFC3339, lastRun.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_triggered_at: %w", err)
		}
		s.LastTriggeredAt = &at
	}

	var err error
	if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

func marshalSchedule(s *Schedule) (trigger, actions string, err error) {
	t, err := json.Marshal(s.Trigger)
	if err != nil {
		return "", "", fmt.Errorf("marshalling trigger_config: %w", err)
	}
	list := s.Actions
	if list == nil {
		list = []Action{}
	}
	a, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(t), string(a), nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
