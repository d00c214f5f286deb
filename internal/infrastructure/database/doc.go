// Package database provides the SQLite connection behind the device's
// secure store and delivery log.
//
// This package manages:
//   - Database connection with WAL mode and a single writer
//   - Forward-only schema migrations loaded from an fs.FS
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - The file holds the device endpoint identity; treat backups accordingly
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named NNNN_description.sql and are never edited once
// released. A factory reset clears rows, not schema.
package database
