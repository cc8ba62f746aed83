// Package migrations compiles the schema migration SQL into the binary,
// so a deployment never depends on loose .sql files.
package migrations

import (
	"embed"

	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Hands the embedded files to the migration runner. Importers pull
	// this in with a blank import.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
