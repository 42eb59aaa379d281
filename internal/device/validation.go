package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	maxNameLength = 100
	maxSlugLength = 100
)

var validProtocols = map[Protocol]bool{
	ProtocolDALI:   true,
	ProtocolKNX:    true,
	ProtocolZigbee: true,
	ProtocolMQTT:   true,
}

var validCapabilities = map[Capability]bool{
	CapOnOff:      true,
	CapDim:        true,
	CapColourTemp: true,
	CapColour:     true,
}

// ValidateDevice checks required fields and enumerations.
func ValidateDevice(d *Device) error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if err := validateName(d.Name); err != nil {
		return err
	}
	if d.Slug == "" || len(d.Slug) > maxSlugLength {
		return fmt.Errorf("%w: slug must be 1-%d characters", ErrInvalidDevice, maxSlugLength)
	}
	if !validProtocols[d.Protocol] {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidDevice, d.Protocol)
	}
	for _, c := range d.Capabilities {
		if !validCapabilities[c] {
			return fmt.Errorf("%w: unknown capability %q", ErrInvalidDevice, c)
		}
	}
	if d.RoomID != nil && strings.TrimSpace(*d.RoomID) == "" {
		return fmt.Errorf("%w: room_id cannot be blank", ErrInvalidDevice)
	}
	return nil
}

// ValidateGroup checks a group definition.
func ValidateGroup(g *DeviceGroup) error {
	if strings.TrimSpace(g.Name) == "" || len(g.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidGroup, maxNameLength)
	}
	switch g.Type {
	case GroupTypeStatic:
	case GroupTypeDynamic, GroupTypeHybrid:
		if g.FilterRules == nil {
			return fmt.Errorf("%w: %s group requires filter_rules", ErrInvalidGroup, g.Type)
		}
		switch g.FilterRules.ScopeType {
		case "", "site":
		case "room":
			if g.FilterRules.ScopeID == "" {
				return fmt.Errorf("%w: room scope requires scope_id", ErrInvalidGroup)
			}
		default:
			return fmt.Errorf("%w: unknown scope_type %q", ErrInvalidGroup, g.FilterRules.ScopeType)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidGroup, g.Type)
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidDevice, maxNameLength)
	}
	return nil
}

// GenerateSlug creates a URL-safe slug from a name.
func GenerateSlug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// GenerateID creates a new UUID.
func GenerateID() string {
	return uuid.New().String()
}
