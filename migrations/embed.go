// Package migrations embeds the reading history schema into the binary.
package migrations

import (
	"embed"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// FS exposes the embedded files for tests in other packages.
var FS = migrationsFS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
