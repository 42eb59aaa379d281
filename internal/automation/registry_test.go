package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// mockRepository is an in-memory implementation of Repository for testing.
type mockRepository struct {
	scenes map[string]*Scene
	mu     sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{scenes: make(map[string]*Scene)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenes[id]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

func (m *mockRepository) GetBySlug(_ context.Context, slug string) (*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.scenes {
		if s.Slug == slug {
			return s.DeepCopy(), nil
		}
	}
	return nil, ErrSceneNotFound
}

func (m *mockRepository) List(_ context.Context) ([]Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scenes := make([]Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		scenes = append(scenes, *s.DeepCopy())
	}
	return scenes, nil
}

func (m *mockRepository) Create(_ context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[scene.ID]; ok {
		return ErrSceneExists
	}
	for _, s := range m.scenes {
		if s.Slug == scene.Slug {
			return ErrSceneExists
		}
	}
	m.scenes[scene.ID] = scene.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[scene.ID]; !ok {
		return ErrSceneNotFound
	}
	m.scenes[scene.ID] = scene.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[id]; !ok {
		return ErrSceneNotFound
	}
	delete(m.scenes, id)
	return nil
}

// testScene returns a valid scene with two actions.
func testScene(id, name string) *Scene {
	return &Scene{
		ID:      id,
		Name:    name,
		Enabled: true,
		Actions: []SceneAction{
			{Target: "room:living", Effect: command.Effect{Kind: command.EffectSetBrightness, Brightness: command.Brightness(40)}},
			{Target: "device:hall-pendant", Effect: command.Effect{Kind: command.EffectTurnOff}},
		},
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepository())

	scene := testScene("", "Cinema Mode")
	if err := reg.CreateScene(ctx, scene); err != nil {
		t.Fatalf("CreateScene() error = %v", err)
	}
	if scene.ID == "" {
		t.Error("CreateScene() did not generate an ID")
	}
	if scene.Slug != "cinema-mode" {
		t.Errorf("Slug = %q, want %q", scene.Slug, "cinema-mode")
	}

	got, err := reg.GetScene(ctx, scene.ID)
	if err != nil {
		t.Fatalf("GetScene() error = %v", err)
	}
	if got.Name != "Cinema Mode" || len(got.Actions) != 2 {
		t.Errorf("GetScene() = %+v", got)
	}

	bySlug, err := reg.GetSceneBySlug(ctx, "cinema-mode")
	if err != nil || bySlug.ID != scene.ID {
		t.Errorf("GetSceneBySlug() = %v, %v", bySlug, err)
	}

	if _, err := reg.GetScene(ctx, "missing"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("GetScene(missing) error = %v, want ErrSceneNotFound", err)
	}
}

func TestRegistry_GetReturnsDeepCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepository())
	if err := reg.CreateScene(ctx, testScene("s1", "Evening")); err != nil {
		t.Fatalf("CreateScene() error = %v", err)
	}

	first, _ := reg.GetScene(ctx, "s1")
	*first.Actions[0].Effect.Brightness = 99
	first.Actions[1].Target = "all"

	second, _ := reg.GetScene(ctx, "s1")
	if *second.Actions[0].Effect.Brightness != 40 || second.Actions[1].Target != "device:hall-pendant" {
		t.Error("modifying a returned scene changed the cache")
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	reg := NewRegistry(newMockRepository())

	scene := testScene("s1", "Broken")
	scene.Actions[0].Effect.Brightness = command.Brightness(140)
	if err := reg.CreateScene(context.Background(), scene); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("CreateScene() error = %v, want ErrInvalidAction", err)
	}
	if reg.GetSceneCount() != 0 {
		t.Error("invalid scene was cached")
	}
}

func TestRegistry_UpdateDeleteAndList(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepository())
	for _, s := range []*Scene{testScene("b", "Bright"), testScene("a", "Away")} {
		if err := reg.CreateScene(ctx, s); err != nil {
			t.Fatalf("CreateScene() error = %v", err)
		}
	}

	list, _ := reg.ListScenes(ctx)
	if len(list) != 2 || list[0].Name != "Away" || list[1].Name != "Bright" {
		t.Fatalf("ListScenes() = %+v, want Away then Bright", list)
	}

	upd, _ := reg.GetScene(ctx, "a")
	upd.Enabled = false
	if err := reg.UpdateScene(ctx, upd); err != nil {
		t.Fatalf("UpdateScene() error = %v", err)
	}
	if got, _ := reg.GetScene(ctx, "a"); got.Enabled {
		t.Error("UpdateScene() did not refresh the cache")
	}

	if err := reg.DeleteScene(ctx, "a"); err != nil {
		t.Fatalf("DeleteScene() error = %v", err)
	}
	if reg.GetSceneCount() != 1 {
		t.Errorf("GetSceneCount() = %d, want 1", reg.GetSceneCount())
	}
	if err := reg.DeleteScene(ctx, "a"); !errors.Is(err, ErrSceneNotFound) {
		t.Errorf("DeleteScene(again) error = %v, want ErrSceneNotFound", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.scenes["s1"] = testScene("s1", "Evening")

	reg := NewRegistry(repo)
	if reg.GetSceneCount() != 0 {
		t.Fatal("cache should start empty")
	}
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.GetSceneCount() != 1 {
		t.Errorf("GetSceneCount() = %d, want 1", reg.GetSceneCount())
	}
}

func TestRegistry_SceneTargets(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepository())
	scene := testScene("s1", "Evening")
	scene.Enabled = false
	if err := reg.CreateScene(ctx, scene); err != nil {
		t.Fatalf("CreateScene() error = %v", err)
	}

	targets, err := reg.SceneTargets(ctx, "s1")
	if err != nil {
		t.Fatalf("SceneTargets() error = %v", err)
	}
	if len(targets) != 2 || targets[0] != "room:living" || targets[1] != "device:hall-pendant" {
		t.Errorf("SceneTargets() = %v", targets)
	}

	targets, err = reg.SceneTargets(ctx, "missing")
	if err != nil || targets != nil {
		t.Errorf("SceneTargets(missing) = %v, %v; want nil, nil", targets, err)
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Cinema Mode", "cinema-mode"},
		{"  Good__Night!  ", "good-night"},
		{"Wake-up 07:00", "wake-up-0700"},
	}
	for _, tt := range tests {
		if got := GenerateSlug(tt.name); got != tt.want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestValidateScene(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scene)
		wantErr error
	}{
		{"valid", func(*Scene) {}, nil},
		{"empty name", func(s *Scene) { s.Name = " " }, ErrInvalidName},
		{"bad slug", func(s *Scene) { s.Slug = "Not A Slug" }, ErrInvalidSlug},
		{"no actions", func(s *Scene) { s.Actions = nil }, ErrNoActions},
		{"missing target", func(s *Scene) { s.Actions[0].Target = "" }, ErrInvalidAction},
		{"scene without id", func(s *Scene) { s.Actions[1].Effect = command.Effect{Kind: command.EffectApplyScene} }, ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScene("s1", "Evening")
			tt.mutate(s)
			err := ValidateScene(s)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateScene() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateScene() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
