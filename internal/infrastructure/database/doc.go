// Package database provides SQLite connectivity for the reading history.
//
// This package manages:
//   - Database connection with WAL mode so dashboard reads proceed while a
//     capture batch is written
//   - Schema migrations embedded by the migrations package
//   - A single-connection pool, which serialises batch inserts against reads
//   - Transaction helpers (InTx, RunInTx)
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each is applied in its own transaction.
package database
