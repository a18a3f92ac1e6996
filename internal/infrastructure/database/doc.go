// Package database provides SQLite storage for the light node.
//
// The node keeps two things in SQLite: the credential row (when the
// sqlite storage backend is selected) and the connectivity event journal.
// Both schemas ship as embedded forward-only migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The database file is chmod 0600 because it can contain a network secret.
package database
