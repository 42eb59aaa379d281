// Package device holds the lighting device registry, device groups and the
// fanout resolver that turns a logical target into physical devices.
//
// A command names a target such as "room:kitchen", "group:downstairs",
// "scene:evening", "device:light-desk" or "all". The Resolver expands it
// against the cached registry:
//
//	resolver := device.NewResolver(registry, groupRepo, sceneRegistry)
//	targets, err := resolver.Resolve(ctx, "room:kitchen")
//	if errors.Is(err, device.ErrUnknownTarget) {
//	    // nothing matched; no command is sent
//	}
//
// Groups are static (explicit members), dynamic (filter rules over room
// scope, capabilities and tags) or hybrid (both).
package device
