package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Target expression prefixes accepted by Resolver.Resolve.
const (
	TargetAll         = "all"
	TargetPrefixDev   = "device:"
	TargetPrefixRoom  = "room:"
	TargetPrefixGroup = "group:"
	TargetPrefixScene = "scene:"
)

// SceneSource exposes the target expressions referenced by a saved scene.
// Unknown scenes yield (nil, nil).
type SceneSource interface {
	SceneTargets(ctx context.Context, sceneID string) ([]string, error)
}

// Resolver expands logical targets (room, group, device, scene or "all")
// into the physical devices a command must reach.
//
// Resolution is a pure read of the registry and group store. It never
// returns an empty set: a target that matches nothing yields an
// *UnknownTargetError.
type Resolver struct {
	devices *Registry
	groups  GroupRepository
	scenes  SceneSource
}

// NewResolver creates a fanout resolver. groups and scenes may be nil, in
// which case group and scene targets are unknown.
func NewResolver(devices *Registry, groups GroupRepository, scenes SceneSource) *Resolver {
	return &Resolver{devices: devices, groups: groups, scenes: scenes}
}

// SetSceneSource installs the scene lookup after construction. Scenes depend
// on the resolver to dispatch, so the two are wired in two steps.
func (r *Resolver) SetSceneSource(scenes SceneSource) {
	r.scenes = scenes
}

// Resolve returns the deduplicated targets for expr ordered by device ID.
//
// Accepted forms:
//   - "all"
//   - "device:<id>", "room:<id>", "group:<id>", "scene:<id>"
//   - a bare id, tried as device, room, group then scene
//
// Returns:
//   - []Target: at least one target
//   - error: *UnknownTargetError (matches ErrUnknownTarget) when nothing resolves
func (r *Resolver) Resolve(ctx context.Context, expr string) ([]Target, error) {
	found := make(map[string]Device)
	if err := r.resolveInto(ctx, strings.TrimSpace(expr), found, map[string]bool{}); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &UnknownTargetError{Target: expr}
	}

	targets := make([]Target, 0, len(found))
	for _, d := range found {
		targets = append(targets, Target{DeviceID: d.ID, Protocol: d.Protocol})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].DeviceID < targets[j].DeviceID })
	return targets, nil
}

// ResolveIDs is Resolve reduced to device IDs.
func (r *Resolver) ResolveIDs(ctx context.Context, expr string) ([]string, error) {
	targets, err := r.Resolve(ctx, expr)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.DeviceID
	}
	return ids, nil
}

// resolveInto adds the devices for expr to found. visitedScenes breaks
// scene reference cycles.
func (r *Resolver) resolveInto(ctx context.Context, expr string, found map[string]Device, visitedScenes map[string]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch {
	case expr == "":
		return nil
	case strings.EqualFold(expr, TargetAll):
		devices, err := r.devices.ListDevices(ctx)
		if err != nil {
			return fmt.Errorf("listing devices: %w", err)
		}
		addAll(found, devices)
		return nil
	case strings.HasPrefix(expr, TargetPrefixDev):
		return r.addDevice(ctx, strings.TrimPrefix(expr, TargetPrefixDev), found)
	case strings.HasPrefix(expr, TargetPrefixRoom):
		return r.addRoom(ctx, strings.TrimPrefix(expr, TargetPrefixRoom), found)
	case strings.HasPrefix(expr, TargetPrefixGroup):
		return r.addGroup(ctx, strings.TrimPrefix(expr, TargetPrefixGroup), found)
	case strings.HasPrefix(expr, TargetPrefixScene):
		return r.addScene(ctx, strings.TrimPrefix(expr, TargetPrefixScene), found, visitedScenes)
	}

	// Bare id: first kind that yields devices wins.
	before := len(found)
	steps := []func() error{
		func() error { return r.addDevice(ctx, expr, found) },
		func() error { return r.addRoom(ctx, expr, found) },
		func() error { return r.addGroup(ctx, expr, found) },
		func() error { return r.addScene(ctx, expr, found, visitedScenes) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
		if len(found) > before {
			return nil
		}
	}
	return nil
}

func (r *Resolver) addDevice(ctx context.Context, id string, found map[string]Device) error {
	d, err := r.devices.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil
		}
		return fmt.Errorf("loading device %s: %w", id, err)
	}
	found[d.ID] = *d
	return nil
}

func (r *Resolver) addRoom(ctx context.Context, roomID string, found map[string]Device) error {
	devices, err := r.devices.GetDevicesByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("listing room %s: %w", roomID, err)
	}
	addAll(found, devices)
	return nil
}

func (r *Resolver) addGroup(ctx context.Context, groupID string, found map[string]Device) error {
	if r.groups == nil {
		return nil
	}
	group, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil
		}
		return fmt.Errorf("loading group %s: %w", groupID, err)
	}
	devices, err := ResolveGroup(ctx, group, r.devices)
	if err != nil {
		return err
	}
	addAll(found, devices)
	return nil
}

func (r *Resolver) addScene(ctx context.Context, sceneID string, found map[string]Device, visited map[string]bool) error {
	if r.scenes == nil || visited[sceneID] {
		return nil
	}
	visited[sceneID] = true

	targets, err := r.scenes.SceneTargets(ctx, sceneID)
	if err != nil {
		return fmt.Errorf("loading scene %s: %w", sceneID, err)
	}
	for _, t := range targets {
		if err := r.resolveInto(ctx, t, found, visited); err != nil {
			return err
		}
	}
	return nil
}

func addAll(found map[string]Device, devices []Device) {
	for _, d := range devices {
		found[d.ID] = d
	}
}
