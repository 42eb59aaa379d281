package device

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type mockGroups struct {
	groups map[string]*DeviceGroup
}

func (m *mockGroups) Create(context.Context, *DeviceGroup) error { return nil }
func (m *mockGroups) List(context.Context) ([]DeviceGroup, error) {
	return nil, nil
}
func (m *mockGroups) Delete(context.Context, string) error { return nil }
func (m *mockGroups) SetMembers(context.Context, string, []string) error {
	return nil
}
func (m *mockGroups) GetByID(_ context.Context, id string) (*DeviceGroup, error) {
	if g, ok := m.groups[id]; ok {
		return g, nil
	}
	return nil, ErrGroupNotFound
}

type mockScenes map[string][]string

func (m mockScenes) SceneTargets(_ context.Context, id string) ([]string, error) {
	return m[id], nil
}

type failingScenes struct{}

func (failingScenes) SceneTargets(context.Context, string) ([]string, error) {
	return nil, errors.New("database locked")
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	pendant := light("l-pendant", "kitchen")
	pendant.Tags = []string{"Feature"}
	strip := light("l-strip", "kitchen")
	strip.Capabilities = []Capability{CapOnOff}
	bedside := light("l-bedside", "bedroom")
	bedside.Protocol = ProtocolZigbee
	porch := light("l-porch", "")
	porch.Protocol = ProtocolKNX
	porch.Tags = []string{"outdoor"}

	reg := NewRegistry(NewMockRepository(pendant, strip, bedside, porch))
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatal(err)
	}

	groups := &mockGroups{groups: map[string]*DeviceGroup{
		"downstairs": {ID: "downstairs", Name: "Downstairs", Type: GroupTypeStatic, MemberIDs: []string{"l-pendant", "l-porch", "gone"}},
		"dimmable": {ID: "dimmable", Name: "Dimmable", Type: GroupTypeDynamic, FilterRules: &FilterRules{
			Capabilities: []string{"dim"},
			ExcludeTags:  []string{"outdoor"},
		}},
		"kitchen-feature": {ID: "kitchen-feature", Name: "Kitchen feature", Type: GroupTypeHybrid, FilterRules: &FilterRules{
			ScopeType: "room",
			ScopeID:   "kitchen",
			Tags:      []string{"feature"},
		}, MemberIDs: []string{"l-bedside"}},
		"empty": {ID: "empty", Name: "Empty", Type: GroupTypeStatic},
	}}

	scenes := mockScenes{
		"evening": {"room:kitchen", "device:l-porch"},
		"loop-a":  {"scene:loop-b", "device:l-strip"},
		"loop-b":  {"scene:loop-a"},
	}
	return NewResolver(reg, groups, scenes)
}

func TestResolver_Resolve(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		expr string
		want []string
	}{
		{"all", []string{"l-bedside", "l-pendant", "l-porch", "l-strip"}},
		{"ALL", []string{"l-bedside", "l-pendant", "l-porch", "l-strip"}},
		{"device:l-porch", []string{"l-porch"}},
		{"room:kitchen", []string{"l-pendant", "l-strip"}},
		{"group:downstairs", []string{"l-pendant", "l-porch"}},
		{"group:dimmable", []string{"l-bedside", "l-pendant"}},
		{"group:kitchen-feature", []string{"l-bedside", "l-pendant"}},
		{"scene:evening", []string{"l-pendant", "l-porch", "l-strip"}},
		{"scene:loop-a", []string{"l-strip"}},
		{"  l-bedside ", []string{"l-bedside"}},
		{"bedroom", []string{"l-bedside"}},
		{"downstairs", []string{"l-pendant", "l-porch"}},
		{"evening", []string{"l-pendant", "l-porch", "l-strip"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.ResolveIDs(context.Background(), tt.expr)
			if err != nil {
				t.Fatalf("ResolveIDs(%q) error = %v", tt.expr, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveIDs(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestResolver_CarriesProtocol(t *testing.T) {
	r := newTestResolver(t)

	targets, err := r.Resolve(context.Background(), "group:downstairs")
	if err != nil {
		t.Fatal(err)
	}
	want := []Target{
		{DeviceID: "l-pendant", Protocol: ProtocolDALI},
		{DeviceID: "l-porch", Protocol: ProtocolKNX},
	}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("Resolve() = %v, want %v", targets, want)
	}
}

func TestResolver_UnknownTarget(t *testing.T) {
	r := newTestResolver(t)

	for _, expr := range []string{"", "room:attic", "device:nope", "group:empty", "group:missing", "scene:missing", "garage"} {
		t.Run(expr, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), expr)
			if !errors.Is(err, ErrUnknownTarget) {
				t.Fatalf("Resolve(%q) error = %v, want ErrUnknownTarget", expr, err)
			}
			var ute *UnknownTargetError
			if !errors.As(err, &ute) || ute.Target != expr {
				t.Errorf("error target = %v, want %q", ute, expr)
			}
		})
	}
}

func TestResolver_NoGroupOrSceneSource(t *testing.T) {
	reg := NewRegistry(NewMockRepository(light("l1", "hall")))
	r := NewResolver(reg, nil, nil)

	if _, err := r.Resolve(context.Background(), "group:any"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Resolve(group) error = %v, want ErrUnknownTarget", err)
	}
	if _, err := r.Resolve(context.Background(), "scene:any"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Resolve(scene) error = %v, want ErrUnknownTarget", err)
	}

	r.SetSceneSource(mockScenes{"hall": {"room:hall"}})
	ids, err := r.ResolveIDs(context.Background(), "scene:hall")
	if err != nil || len(ids) != 1 {
		t.Errorf("ResolveIDs(scene) = %v, %v", ids, err)
	}
}

func TestResolver_SceneSourceError(t *testing.T) {
	reg := NewRegistry(NewMockRepository(light("l1", "hall")))
	r := NewResolver(reg, nil, failingScenes{})

	_, err := r.Resolve(context.Background(), "scene:evening")
	if err == nil || errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Resolve() error = %v, want storage error", err)
	}
}

func TestResolver_CancelledContext(t *testing.T) {
	r := newTestResolver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Resolve(ctx, "all"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}
