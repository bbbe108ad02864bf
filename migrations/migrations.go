// Package migrations embeds the SQL schema migrations applied by
// golang-migrate at startup and by cmd/migrate.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
