// Package migrations embeds the SQLite schema migrations.
package migrations

import "embed"

// FS holds the versioned migration files, named NNN_name.up.sql.
//
//go:embed *.up.sql
var FS embed.FS
