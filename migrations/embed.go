// Package migrations embeds the SQL migration scripts.
package migrations

import "embed"

// FS exposes the migration files to the migrator.
//
//go:embed *.sql
var FS embed.FS
