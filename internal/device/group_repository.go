package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GroupRepository defines device group persistence.
type GroupRepository interface {
	Create(ctx context.Context, g *DeviceGroup) error
	// GetByID returns ErrGroupNotFound if the group does not exist.
	// Explicit members are loaded into MemberIDs.
	GetByID(ctx context.Context, id string) (*DeviceGroup, error)
	List(ctx context.Context) ([]DeviceGroup, error)
	Delete(ctx context.Context, id string) error
	// SetMembers replaces the explicit member list.
	SetMembers(ctx context.Context, groupID string, deviceIDs []string) error
}

// SQLiteGroupRepository implements GroupRepository using SQLite.
type SQLiteGroupRepository struct {
	db *sql.DB
}

// NewSQLiteGroupRepository creates a SQLite-backed group repository.
func NewSQLiteGroupRepository(db *sql.DB) *SQLiteGroupRepository {
	return &SQLiteGroupRepository{db: db}
}

const groupColumns = `id, name, slug, description, type, filter_rules, created_at, updated_at`

// Create inserts a group and its explicit members in one transaction.
func (r *SQLiteGroupRepository) Create(ctx context.Context, g *DeviceGroup) error {
	if g.ID == "" {
		g.ID = GenerateID()
	}
	if g.Slug == "" {
		g.Slug = GenerateSlug(g.Name)
	}
	if err := ValidateGroup(g); err != nil {
		return err
	}

	rules, err := marshalFilterRules(g.FilterRules)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `INSERT INTO device_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Slug, nullableString(g.Description), string(g.Type), rules,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrGroupExists
		}
		return fmt.Errorf("inserting group: %w", err)
	}

	if err := insertMembers(ctx, tx, g.ID, g.MemberIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a group with its explicit members.
func (r *SQLiteGroupRepository) GetByID(ctx context.Context, id string) (*DeviceGroup, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM device_groups WHERE id = ?`, id)
	g, err := scanGroupRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group: %w", err)
	}

	g.MemberIDs, err = r.memberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// List retrieves all groups ordered by name. MemberIDs are not loaded.
func (r *SQLiteGroupRepository) List(ctx context.Context) ([]DeviceGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM device_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	groups := []DeviceGroup{}
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// Delete removes a group; memberships cascade.
func (r *SQLiteGroupRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM device_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return expectOneRow(result, ErrGroupNotFound)
}

// SetMembers replaces a group's explicit members.
func (r *SQLiteGroupRepository) SetMembers(ctx context.Context, groupID string, deviceIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clearing group members: %w", err)
	}
	if err := insertMembers(ctx, tx, groupID, deviceIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID string, deviceIDs []string) error {
	seen := make(map[string]bool, len(deviceIDs))
	order := 0
	for _, id := range deviceIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO device_group_members (group_id, device_id, sort_order) VALUES (?, ?, ?)`,
			groupID, id, order,
		); err != nil {
			return fmt.Errorf("inserting group member %s: %w", id, err)
		}
		order++
	}
	return nil
}

func (r *SQLiteGroupRepository) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id FROM device_group_members WHERE group_id = ? ORDER BY sort_order, device_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying group members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGroupRow(scanner rowScanner) (*DeviceGroup, error) {
	var g DeviceGroup
	var description, rules sql.NullString
	var groupType, createdAt, updatedAt string

	if err := scanner.Scan(&g.ID, &g.Name, &g.Slug, &description, &groupType, &rules, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	g.Type = GroupType(groupType)
	if description.Valid {
		g.Description = &description.String
	}
	if rules.Valid && rules.String != "" {
		var fr FilterRules
		if err := json.Unmarshal([]byte(rules.String), &fr); err != nil {
			return nil, fmt.Errorf("unmarshalling filter_rules: %w", err)
		}
		g.FilterRules = &fr
	}

	var err error
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &g, nil
}

func marshalFilterRules(rules *FilterRules) (sql.NullString, error) {
	if rules == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling filter_rules: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
