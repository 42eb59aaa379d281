package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is an in-memory Repository.
type MockRepository struct {
	mu        sync.Mutex
	devices   map[string]*Device
	listCalls int
	createErr error
}

func NewMockRepository(devices ...Device) *MockRepository {
	m := &MockRepository{devices: make(map[string]*Device)}
	for i := range devices {
		m.devices[devices[i].ID] = devices[i].DeepCopy()
	}
	return m
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	all, _ := m.List(ctx)
	var out []Device
	for _, d := range all {
		if d.InRoom(roomID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockRepository) Create(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.devices[d.ID]; ok {
		return ErrDeviceExists
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; !ok {
		return ErrDeviceNotFound
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func strPtr(s string) *string { return &s }

func light(id, room string) Device {
	d := Device{
		ID:           id,
		Name:         "Light " + id,
		Slug:         id,
		Protocol:     ProtocolDALI,
		Capabilities: []Capability{CapOnOff, CapDim},
	}
	if room != "" {
		d.RoomID = strPtr(room)
	}
	return d
}

func TestRegistry_RefreshAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository(light("l1", "kitchen"), light("l2", "bedroom"))
	reg := NewRegistry(repo)

	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.GetDeviceCount() != 2 {
		t.Errorf("GetDeviceCount() = %d, want 2", reg.GetDeviceCount())
	}

	d, err := reg.GetDevice(ctx, "l1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}

	// Mutating the copy must not leak into the cache.
	d.Capabilities[0] = CapColour
	*d.RoomID = "garage"

	again, _ := reg.GetDevice(ctx, "l1")
	if again.Capabilities[0] != CapOnOff || *again.RoomID != "kitchen" {
		t.Errorf("cache was mutated through returned copy: %+v", again)
	}

	if _, err := reg.GetDevice(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ListIsSortedAndCached(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository(light("c", ""), light("a", ""), light("b", ""))
	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatal(err)
	}
	calls := repo.listCalls

	devices, err := reg.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 3 || devices[0].ID != "a" || devices[2].ID != "c" {
		t.Errorf("ListDevices() = %v, want sorted a,b,c", devices)
	}
	if repo.listCalls != calls {
		t.Error("ListDevices() hit the repository after the cache was loaded")
	}
}

func TestRegistry_FallsBackBeforeRefresh(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository(light("l1", "kitchen")))

	devices, err := reg.GetDevicesByRoom(ctx, "kitchen")
	if err != nil {
		t.Fatalf("GetDevicesByRoom() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("GetDevicesByRoom() = %d devices, want 1", len(devices))
	}
}

func TestRegistry_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatal(err)
	}

	d := &Device{Name: "Desk Lamp", Protocol: ProtocolZigbee, Capabilities: []Capability{CapOnOff}}
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if d.ID == "" || d.Slug != "desk-lamp" {
		t.Errorf("CreateDevice() did not generate id/slug: %+v", d)
	}

	d.Name = "Study Lamp"
	if err := reg.UpdateDevice(ctx, d); err != nil {
		t.Fatalf("UpdateDevice() error = %v", err)
	}
	got, _ := reg.GetDevice(ctx, d.ID)
	if got.Slug != "study-lamp" {
		t.Errorf("slug after rename = %q, want study-lamp", got.Slug)
	}

	if err := reg.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if _, err := reg.GetDevice(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() after delete error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	reg := NewRegistry(NewMockRepository())
	err := reg.CreateDevice(context.Background(), &Device{Name: "X", Protocol: "carrier-pigeon"})
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("CreateDevice() error = %v, want ErrInvalidDevice", err)
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := map[string]string{
		"Kitchen Pendant":      "kitchen-pendant",
		"  Hall__Light  #2 ":   "hall-light-2",
		"Living-Room Lamp!":    "living-room-lamp",
		"ÜBER light":           "ber-light",
		"---":                  "",
	}
	for in, want := range tests {
		if got := GenerateSlug(in); got != want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateGroup(t *testing.T) {
	tests := []struct {
		name    string
		group   DeviceGroup
		wantErr bool
	}{
		{"static", DeviceGroup{Name: "Downstairs", Type: GroupTypeStatic}, false},
		{"dynamic without rules", DeviceGroup{Name: "Dimmables", Type: GroupTypeDynamic}, true},
		{"room scope without id", DeviceGroup{Name: "R", Type: GroupTypeDynamic, FilterRules: &FilterRules{ScopeType: "room"}}, true},
		{"bad scope", DeviceGroup{Name: "R", Type: GroupTypeHybrid, FilterRules: &FilterRules{ScopeType: "area"}}, true},
		{"unknown type", DeviceGroup{Name: "R", Type: "magic"}, true},
		{"empty name", DeviceGroup{Type: GroupTypeStatic}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroup(&tt.group)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGroup() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
