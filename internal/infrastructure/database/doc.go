// Package database provides the SQLite connection and schema migrations
// for the lighting core.
//
// Devices, groups, scenes and schedules are persisted here. Command batches
// are deliberately not persisted: they live only in the correlation tracker.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
