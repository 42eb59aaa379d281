// Package automation provides saved lighting scenes for Gray Logic.
//
// A scene is a named list of actions, each applying an effect to a target
// expression. Activating a scene dispatches all of its actions as one
// correlated command batch:
//
//	┌──────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                  │
//	│  ┌──────────────┐    ┌───────────────┐               │
//	│  │   Registry   │───▶│  Repository   │               │
//	│  │(registry.go) │    │(repository.go)│               │
//	│  └──────────────┘    └───────────────┘               │
//	│        │                                             │
//	│        ▼                                             │
//	│  command.Dispatcher ── one batch, one correlation ID │
//	└──────────────────────────────────────────────────────┘
//
// The Registry also implements device.SceneSource so "scene:<id>" targets
// resolve to the devices a scene touches.
//
// # Thread Safety
//
// Registry and Engine are safe for concurrent use from multiple goroutines.
//
// # Usage
//
//	repo := automation.NewSQLiteRepository(db)
//	registry := automation.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	resolver.SetSceneSource(registry)
//
//	engine := automation.NewEngine(registry, dispatcher, bus, log)
//	dispatch, err := engine.ActivateScene(ctx, "cinema-mode", "api")
package automation
