package device

import (
	"slices"
	"time"
)

// Protocol identifies the bridge a device is reached through.
// It selects the MQTT command topic graylogic/command/{protocol}/{device_id}.
type Protocol string

const (
	ProtocolDALI   Protocol = "dali"
	ProtocolKNX    Protocol = "knx"
	ProtocolZigbee Protocol = "zigbee"
	ProtocolMQTT   Protocol = "mqtt"
)

// Capability is a lighting feature a device supports.
type Capability string

const (
	CapOnOff      Capability = "on_off"
	CapDim        Capability = "dim"
	CapColourTemp Capability = "colour_temp"
	CapColour     Capability = "colour"
)

// Device is a physical, individually addressable lighting device.
type Device struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	RoomID       *string      `json:"room_id,omitempty"`
	Protocol     Protocol     `json:"protocol"`
	Capabilities []Capability `json:"capabilities"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DeepCopy returns a copy that shares no mutable state with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.RoomID != nil {
		room := *d.RoomID
		cp.RoomID = &room
	}
	cp.Capabilities = slices.Clone(d.Capabilities)
	cp.Tags = slices.Clone(d.Tags)
	return &cp
}

// InRoom reports whether the device is assigned to roomID.
func (d *Device) InRoom(roomID string) bool {
	return d.RoomID != nil && *d.RoomID == roomID
}

// HasCapability reports whether the device supports c.
func (d *Device) HasCapability(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

// Target is a resolved physical command destination.
type Target struct {
	DeviceID string   `json:"device_id"`
	Protocol Protocol `json:"protocol"`
}

// GroupType defines how a device group resolves its members.
type GroupType string

const (
	// GroupTypeStatic resolves from the explicit member list only.
	GroupTypeStatic GroupType = "static"
	// GroupTypeDynamic resolves from filter rules only.
	GroupTypeDynamic GroupType = "dynamic"
	// GroupTypeHybrid resolves from filter rules unioned with explicit members.
	GroupTypeHybrid GroupType = "hybrid"
)

// FilterRules defines dynamic membership. Non-empty fields are ANDed.
type FilterRules struct {
	ScopeType    string   `json:"scope_type,omitempty"` // "site" or "room"
	ScopeID      string   `json:"scope_id,omitempty"`   // room ID for room scope
	Capabilities []string `json:"capabilities,omitempty"`
	Tags         []string `json:"tags,omitempty"`         // ANY of these tags
	ExcludeTags  []string `json:"exclude_tags,omitempty"` // none of these tags
}

// DeviceGroup is a named, resolvable collection of devices.
type DeviceGroup struct { //nolint:revive // device.DeviceGroup reads better than device.Group at call sites
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description *string      `json:"description,omitempty"`
	Type        GroupType    `json:"type"`
	FilterRules *FilterRules `json:"filter_rules,omitempty"`
	MemberIDs   []string     `json:"member_ids,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
