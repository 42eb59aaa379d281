package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ResolveGroup expands a group into its devices.
//
// Explicit members (static, hybrid) are unioned with devices matching the
// filter rules (dynamic, hybrid), then exclude_tags is applied. Members that
// no longer exist are skipped. The result is deduplicated and ordered by ID.
func ResolveGroup(ctx context.Context, group *DeviceGroup, registry *Registry) ([]Device, error) {
	if group == nil {
		return nil, fmt.Errorf("%w: group is required", ErrInvalidGroup)
	}

	merged := make(map[string]Device)

	if group.Type == GroupTypeStatic || group.Type == GroupTypeHybrid {
		for _, id := range group.MemberIDs {
			d, err := registry.GetDevice(ctx, id)
			if err != nil {
				if errors.Is(err, ErrDeviceNotFound) {
					continue
				}
				return nil, fmt.Errorf("loading device %s: %w", id, err)
			}
			merged[d.ID] = *d
		}
	}

	if group.Type == GroupTypeDynamic || group.Type == GroupTypeHybrid {
		base, err := dynamicBase(ctx, registry, group.FilterRules)
		if err != nil {
			return nil, err
		}
		for _, d := range base {
			if matchesRules(&d, group.FilterRules) {
				merged[d.ID] = d
			}
		}
	}

	devices := make([]Device, 0, len(merged))
	for _, d := range merged {
		if group.FilterRules != nil && hasAnyTag(&d, group.FilterRules.ExcludeTags) {
			continue
		}
		devices = append(devices, d)
	}
	sortByID(devices)
	return devices, nil
}

func dynamicBase(ctx context.Context, registry *Registry, rules *FilterRules) ([]Device, error) {
	if rules == nil || rules.ScopeType == "" || rules.ScopeType == "site" {
		return registry.ListDevices(ctx)
	}
	if rules.ScopeType == "room" {
		return registry.GetDevicesByRoom(ctx, rules.ScopeID)
	}
	return nil, fmt.Errorf("%w: unknown scope_type %q", ErrInvalidGroup, rules.ScopeType)
}

// matchesRules requires every listed capability and at least one listed tag.
func matchesRules(d *Device, rules *FilterRules) bool {
	if rules == nil {
		return true
	}
	for _, c := range rules.Capabilities {
		if c != "" && !d.HasCapability(Capability(strings.ToLower(strings.TrimSpace(c)))) {
			return false
		}
	}
	if len(rules.Tags) > 0 && !hasAnyTag(d, rules.Tags) {
		return false
	}
	return true
}

func hasAnyTag(d *Device, tags []string) bool {
	for _, want := range tags {
		want = normaliseTag(want)
		if want == "" {
			continue
		}
		for _, have := range d.Tags {
			if normaliseTag(have) == want {
				return true
			}
		}
	}
	return false
}

func normaliseTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
