// Package migrations embeds the light node schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
