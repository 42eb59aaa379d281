package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for scene persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Scene, error)
	GetBySlug(ctx context.Context, slug string) (*Scene, error)
	List(ctx context.Context) ([]Scene, error)
	Create(ctx context.Context, scene *Scene) error
	Update(ctx context.Context, scene *Scene) error
	Delete(ctx context.Context, id string) error
}

// sceneColumns is the SELECT column list for scene queries.
const sceneColumns = `id, name, slug, description, enabled, actions, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a scene by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Scene, error) {
	return r.getOne(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id)
}

// GetBySlug retrieves a scene by its slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*Scene, error) {
	return r.getOne(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE slug = ?`, slug)
}

// List retrieves all scenes ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Scene, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer rows.Close()

	scenes := []Scene{}
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scene: %w", err)
		}
		scenes = append(scenes, *scene)
	}
	return scenes, rows.Err()
}

// Create inserts a new scene.
func (r *SQLiteRepository) Create(ctx context.Context, scene *Scene) error {
	actionsJSON, err := marshalActions(scene.Actions)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = now
	}
	scene.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scenes (`+sceneColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scene.ID,
		scene.Name,
		scene.Slug,
		nullableString(scene.Description),
		boolToInt(scene.Enabled),
		actionsJSON,
		scene.CreatedAt.Format(time.RFC3339),
		scene.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("inserting scene: %w", err)
	}
	return nil
}

// Update modifies an existing scene.
func (r *SQLiteRepository) Update(ctx context.Context, scene *Scene) error {
	actionsJSON, err := marshalActions(scene.Actions)
	if err != nil {
		return err
	}
	scene.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE scenes SET
			name = ?, slug = ?, description = ?, enabled = ?, actions = ?, updated_at = ?
		WHERE id = ?`,
		scene.Name,
		scene.Slug,
		nullableString(scene.Description),
		boolToInt(scene.Enabled),
		actionsJSON,
		scene.UpdatedAt.Format(time.RFC3339),
		scene.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSceneExists
		}
		return fmt.Errorf("updating scene: %w", err)
	}
	return expectAffected(result)
}

// Delete removes a scene by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scenes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting scene: %w", err)
	}
	return expectAffected(result)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (*Scene, error) {
	scene, err := scanScene(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSceneNotFound
		}
		return nil, fmt.Errorf("querying scene: %w", err)
	}
	return scene, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(scanner rowScanner) (*Scene, error) {
	var (
		scene                Scene
		description          sql.NullString
		enabled              int
		actionsJSON          string
		createdAt, updatedAt string
	)
	err := scanner.Scan(
		&scene.ID,
		&scene.Name,
		&scene.Slug,
		&description,
		&enabled,
		&actionsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		scene.Description = &description.String
	}
	scene.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(actionsJSON), &scene.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}
	if scene.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if scene.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &scene, nil
}

func marshalActions(actions []SceneAction) (string, error) {
	if actions == nil {
		actions = []SceneAction{}
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(b), nil
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSceneNotFound
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
