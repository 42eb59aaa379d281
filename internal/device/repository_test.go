package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lighting/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lighting/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db.DB
}

func TestSQLiteRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	d := light("light-kitchen", "kitchen")
	d.Tags = []string{"ceiling"}
	if err := repo.Create(ctx, &d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CreatedAt.IsZero() {
		t.Error("Create() did not stamp CreatedAt")
	}

	got, err := repo.GetByID(ctx, "light-kitchen")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Protocol != ProtocolDALI || !got.InRoom("kitchen") || !got.HasCapability(CapDim) {
		t.Errorf("GetByID() = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "ceiling" {
		t.Errorf("Tags = %v, want [ceiling]", got.Tags)
	}

	dup := light("light-kitchen", "")
	dup.Slug = "other-slug"
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrDeviceExists", err)
	}

	got.RoomID = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	inRoom, err := repo.ListByRoom(ctx, "kitchen")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(inRoom) != 0 {
		t.Errorf("ListByRoom() after unassigning = %d devices, want 0", len(inRoom))
	}

	if err := repo.Delete(ctx, "light-kitchen"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "light-kitchen"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Delete(ctx, "light-kitchen"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListOrdered(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	for _, id := range []string{"l3", "l1", "l2"} {
		d := light(id, "hall")
		if err := repo.Create(ctx, &d); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 || devices[0].ID != "l1" || devices[2].ID != "l3" {
		t.Errorf("List() = %v, want l1,l2,l3", devices)
	}
}

func TestSQLiteGroupRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	devices := NewSQLiteRepository(db)
	groups := NewSQLiteGroupRepository(db)

	for _, id := range []string{"l1", "l2", "l3"} {
		d := light(id, "")
		if err := devices.Create(ctx, &d); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	g := &DeviceGroup{Name: "Downstairs", Type: GroupTypeStatic, MemberIDs: []string{"l2", "l1", "l2"}}
	if err := groups.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := groups.GetByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.MemberIDs) != 2 || got.MemberIDs[0] != "l2" || got.MemberIDs[1] != "l1" {
		t.Errorf("MemberIDs = %v, want [l2 l1] in insertion order", got.MemberIDs)
	}

	if err := groups.SetMembers(ctx, g.ID, []string{"l3"}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}

	// Deleting a device cascades its membership.
	if err := devices.Delete(ctx, "l3"); err != nil {
		t.Fatal(err)
	}
	got, _ = groups.GetByID(ctx, g.ID)
	if len(got.MemberIDs) != 0 {
		t.Errorf("MemberIDs after device delete = %v, want empty", got.MemberIDs)
	}

	dynamic := &DeviceGroup{
		Name:        "Dimmables",
		Type:        GroupTypeDynamic,
		FilterRules: &FilterRules{Capabilities: []string{"dim"}},
	}
	if err := groups.Create(ctx, dynamic); err != nil {
		t.Fatalf("Create(dynamic) error = %v", err)
	}
	got, _ = groups.GetByID(ctx, dynamic.ID)
	if got.FilterRules == nil || got.FilterRules.Capabilities[0] != "dim" {
		t.Errorf("FilterRules = %+v", got.FilterRules)
	}

	all, err := groups.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 || all[0].Name != "Dimmables" {
		t.Errorf("List() = %v, want 2 groups ordered by name", all)
	}

	if err := groups.Create(ctx, &DeviceGroup{Name: "Downstairs", Type: GroupTypeStatic}); !errors.Is(err, ErrGroupExists) {
		t.Errorf("Create(duplicate slug) error = %v, want ErrGroupExists", err)
	}

	if err := groups.Delete(ctx, g.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := groups.GetByID(ctx, g.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrGroupNotFound", err)
	}
}
